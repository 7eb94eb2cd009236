package dispatcher

import (
	"context"

	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/transport"
)

// Binding is one descriptor bound to one wire name on one side. The set of
// implementations is closed.
type Binding interface {
	Wire() string
	Descriptor() schema.Descriptor
	binding()
}

// Invoker sends requests from a renderer.
type Invoker struct {
	base
	t transport.Renderer
}

// Invoke sends args and waits for main's answer. It blocks until main
// answers, ctx ends or the transport fails.
func (b *Invoker) Invoke(ctx context.Context, args ...any) (any, error) {
	wire, err := b.encode(args)
	if err != nil {
		return nil, err
	}
	return b.t.Invoke(ctx, b.wire, wire...)
}

// Sender sends fire-and-forget signals from a renderer.
type Sender struct {
	base
	t transport.Renderer
}

// Send publishes args to main.
func (b *Sender) Send(args ...any) error {
	wire, err := b.encode(args)
	if err != nil {
		return err
	}
	return b.t.Send(b.wire, wire...)
}

// Listener registers persistent renderer-side reactors.
type Listener struct {
	base
	t transport.Renderer
}

// Listen registers h until the returned teardown is called.
func (b *Listener) Listen(h transport.Handler) (transport.Teardown, error) {
	return b.t.On(b.wire, b.reactor(h))
}

// OnceListener registers single-shot renderer-side reactors.
type OnceListener struct {
	base
	t transport.Renderer
}

// ListenOnce registers h for the next message only.
func (b *OnceListener) ListenOnce(h transport.Handler) error {
	return b.t.Once(b.wire, b.reactor(h))
}

// Responder registers the persistent main-side responder.
type Responder struct {
	base
	t transport.Main
}

// Handle registers fn until the returned teardown is called.
func (b *Responder) Handle(fn transport.Responder) (transport.Teardown, error) {
	return b.t.Handle(b.wire, b.responder(fn))
}

// OnceResponder registers a main-side responder for one request.
type OnceResponder struct {
	base
	t transport.Main
}

// HandleOnce registers fn; it is removed after answering once.
func (b *OnceResponder) HandleOnce(fn transport.Responder) error {
	return b.t.HandleOnce(b.wire, b.responder(fn))
}

// Reactor registers persistent main-side reactors.
type Reactor struct {
	base
	t transport.Main
}

// React registers h until the returned teardown is called.
func (b *Reactor) React(h transport.Handler) (transport.Teardown, error) {
	return b.t.On(b.wire, b.reactor(h))
}

// OnceReactor registers single-shot main-side reactors.
type OnceReactor struct {
	base
	t transport.Main
}

// ReactOnce registers h for the next message only.
func (b *OnceReactor) ReactOnce(h transport.Handler) error {
	return b.t.Once(b.wire, b.reactor(h))
}

// Pusher sends signals from main to one renderer.
type Pusher struct {
	base
	t transport.Main
}

// Push sends args to target. The target is borrowed; a closed target surfaces
// the transport's error.
func (b *Pusher) Push(target transport.Target, args ...any) error {
	wire, err := b.encode(args)
	if err != nil {
		return err
	}
	return b.t.SendTo(target, b.wire, wire...)
}
