package registry

import (
	"context"
	"fmt"

	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/serialize"
	"github.com/morezero/typed-ipc/pkg/transport"
)

// The helpers below give each declaration a payload-typed call surface. A
// typed payload travels as the single argument of the wire call.

func bindingOf[B dispatcher.Binding](r *Result, leaf schema.Leaf, want string) (B, error) {
	var zero B
	b, err := r.BindingFor(leaf)
	if err != nil {
		return zero, err
	}
	typed, ok := b.(B)
	if !ok {
		return zero, &dispatcher.ConfigError{
			Wire:       b.Wire(),
			Side:       r.Side,
			Descriptor: b.Descriptor(),
			Reason:     fmt.Sprintf("%s is not available on this side", want),
		}
	}
	return typed, nil
}

func payloadOf[P any](args []any) (P, error) {
	if len(args) == 0 {
		var zero P
		return zero, nil
	}
	return serialize.Convert[P](args[0])
}

// Invoke sends p on a request channel from the renderer and waits for the
// typed result.
func Invoke[P, R any](ctx context.Context, r *Result, decl *schema.RequestDecl[P, R], p P) (R, error) {
	var zero R
	b, err := bindingOf[*dispatcher.Invoker](r, decl, "invoke")
	if err != nil {
		return zero, err
	}
	v, err := b.Invoke(ctx, p)
	if err != nil {
		return zero, err
	}
	out, err := serialize.Convert[R](v)
	if err != nil {
		return zero, fmt.Errorf("%s - result of %q: %w", logPrefix, b.Wire(), err)
	}
	return out, nil
}

// Send sends p on a signal channel from the renderer.
func Send[P any](r *Result, decl *schema.SignalDecl[P], p P) error {
	b, err := bindingOf[*dispatcher.Sender](r, decl, "send")
	if err != nil {
		return err
	}
	return b.Send(p)
}

// Listen registers fn on the renderer for pushes from main. For a once
// declaration the listener removes itself and the returned teardown is nil.
func Listen[P any](r *Result, decl *schema.PushDecl[P], fn func(transport.Event, P)) (transport.Teardown, error) {
	b, err := r.BindingFor(decl)
	if err != nil {
		return nil, err
	}
	h := typedHandler(r, b.Wire(), fn)
	switch lb := b.(type) {
	case *dispatcher.Listener:
		return lb.Listen(h)
	case *dispatcher.OnceListener:
		return nil, lb.ListenOnce(h)
	}
	return nil, &dispatcher.ConfigError{Wire: b.Wire(), Side: r.Side, Descriptor: b.Descriptor(), Reason: "listen is not available on this side"}
}

// Handle registers fn as main's responder for a request channel. For a once
// declaration the responder removes itself and the returned teardown is nil.
func Handle[P, R any](r *Result, decl *schema.RequestDecl[P, R], fn func(context.Context, transport.Event, P) (R, error)) (transport.Teardown, error) {
	b, err := r.BindingFor(decl)
	if err != nil {
		return nil, err
	}
	wire := b.Wire()
	responder := func(ctx context.Context, ev transport.Event, args []any) (any, error) {
		p, err := payloadOf[P](args)
		if err != nil {
			return nil, &transport.RemoteError{Channel: wire, Code: transport.CodeInvalidArgs, Message: err.Error()}
		}
		return fn(ctx, ev, p)
	}
	switch rb := b.(type) {
	case *dispatcher.Responder:
		return rb.Handle(responder)
	case *dispatcher.OnceResponder:
		return nil, rb.HandleOnce(responder)
	}
	return nil, &dispatcher.ConfigError{Wire: wire, Side: r.Side, Descriptor: b.Descriptor(), Reason: "handle is not available on this side"}
}

// React registers fn on main for signals from renderers. For a once
// declaration the reactor removes itself and the returned teardown is nil.
func React[P any](r *Result, decl *schema.SignalDecl[P], fn func(transport.Event, P)) (transport.Teardown, error) {
	b, err := r.BindingFor(decl)
	if err != nil {
		return nil, err
	}
	h := typedHandler(r, b.Wire(), fn)
	switch rb := b.(type) {
	case *dispatcher.Reactor:
		return rb.React(h)
	case *dispatcher.OnceReactor:
		return nil, rb.ReactOnce(h)
	}
	return nil, &dispatcher.ConfigError{Wire: b.Wire(), Side: r.Side, Descriptor: b.Descriptor(), Reason: "react is not available on this side"}
}

// Push sends p from main to one renderer.
func Push[P any](r *Result, decl *schema.PushDecl[P], target transport.Target, p P) error {
	b, err := bindingOf[*dispatcher.Pusher](r, decl, "push")
	if err != nil {
		return err
	}
	return b.Push(target, p)
}

func typedHandler[P any](r *Result, wire string, fn func(transport.Event, P)) transport.Handler {
	return func(ev transport.Event, args []any) {
		p, err := payloadOf[P](args)
		if err != nil {
			r.onDecodeError(wire, err)
			return
		}
		fn(ev, p)
	}
}
