// Package dispatcher binds channel descriptors to transport operations for
// one side of the process pair.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/serialize"
	"github.com/morezero/typed-ipc/pkg/transport"
)

const logPrefix = "dispatcher:dispatch"

// DecodeErrorFunc is told about an inbound message dropped because its
// arguments could not be deserialized.
type DecodeErrorFunc func(wire string, err error)

// BindParams is the input of Bind.
type BindParams struct {
	Descriptor schema.Descriptor
	Wire       string
	Side       Side
	// Main is required when Side is SideMain.
	Main transport.Main
	// Renderer is required when Side is SideRenderer.
	Renderer transport.Renderer
	// Adapter is optional; nil passes arguments through untouched.
	Adapter *serialize.Adapter
	// OnDecodeError is optional; nil logs a warning.
	OnDecodeError DecodeErrorFunc
}

// Bind builds the binding for one descriptor on one side. It performs no I/O.
func Bind(p BindParams) (Binding, error) {
	if p.Wire == "" {
		return nil, p.configError("empty wire name")
	}
	if err := p.Descriptor.Validate(); err != nil {
		return nil, p.configError(err.Error())
	}
	b := p.base()

	switch p.Side {
	case SideRenderer:
		if p.Renderer == nil {
			return nil, p.configError("no renderer transport")
		}
		switch p.Descriptor.Renderer {
		case schema.RendererInvoke:
			return &Invoker{base: b, t: p.Renderer}, nil
		case schema.RendererSend:
			return &Sender{base: b, t: p.Renderer}, nil
		case schema.RendererOn:
			return &Listener{base: b, t: p.Renderer}, nil
		case schema.RendererOnce:
			return &OnceListener{base: b, t: p.Renderer}, nil
		}
		return nil, p.configError(fmt.Sprintf("unknown renderer operation %s", p.Descriptor.Renderer))
	case SideMain:
		if p.Main == nil {
			return nil, p.configError("no main transport")
		}
		switch p.Descriptor.Main {
		case schema.MainHandle:
			return &Responder{base: b, t: p.Main}, nil
		case schema.MainHandleOnce:
			return &OnceResponder{base: b, t: p.Main}, nil
		case schema.MainOn:
			return &Reactor{base: b, t: p.Main}, nil
		case schema.MainOnce:
			return &OnceReactor{base: b, t: p.Main}, nil
		case schema.MainSendTo:
			return &Pusher{base: b, t: p.Main}, nil
		}
		return nil, p.configError(fmt.Sprintf("unknown main operation %s", p.Descriptor.Main))
	}
	return nil, p.configError(fmt.Sprintf("unknown side %s", p.Side))
}

func (p BindParams) configError(reason string) *ConfigError {
	return &ConfigError{Wire: p.Wire, Side: p.Side, Descriptor: p.Descriptor, Reason: reason}
}

func (p BindParams) base() base {
	onErr := p.OnDecodeError
	if onErr == nil {
		onErr = logDecodeError
	}
	return base{wire: p.Wire, desc: p.Descriptor, adapter: p.Adapter, onDecodeError: onErr}
}

func logDecodeError(wire string, err error) {
	slog.Warn(fmt.Sprintf("%s - dropping message on %q: %v", logPrefix, wire, err))
}

// base carries what every binding closes over.
type base struct {
	wire          string
	desc          schema.Descriptor
	adapter       *serialize.Adapter
	onDecodeError DecodeErrorFunc
}

func (b base) binding() {}

// Wire returns the resolved wire name.
func (b base) Wire() string { return b.wire }

// Descriptor returns the bound descriptor.
func (b base) Descriptor() schema.Descriptor { return b.desc }

func (b base) encode(args []any) ([]any, error) {
	return b.adapter.Encode(b.wire, args)
}

// reactor wraps h so that undecodable messages are dropped and reported.
func (b base) reactor(h transport.Handler) transport.Handler {
	return func(ev transport.Event, args []any) {
		decoded, err := b.adapter.Decode(b.wire, args)
		if err != nil {
			b.onDecodeError(b.wire, err)
			return
		}
		h(ev, decoded)
	}
}

// responder wraps fn so that undecodable requests are answered with an
// invalid-argument error.
func (b base) responder(fn transport.Responder) transport.Responder {
	return func(ctx context.Context, ev transport.Event, args []any) (any, error) {
		decoded, err := b.adapter.Decode(b.wire, args)
		if err != nil {
			return nil, &transport.RemoteError{Channel: b.wire, Code: transport.CodeInvalidArgs, Message: err.Error()}
		}
		return fn(ctx, ev, decoded)
	}
}
