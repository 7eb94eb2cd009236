package schema

import (
	"errors"
	"fmt"
)

const logPrefix = "schema:descriptor"

// ErrInvalidDescriptor is returned for descriptors whose direction and
// operation pairing was not produced by one of the constructors.
var ErrInvalidDescriptor = errors.New("invalid channel descriptor")

// Descriptor is the runtime part of a channel declaration. It carries no type
// information and no reference to a transport.
type Descriptor struct {
	Direction Direction
	Renderer  RendererOp
	Main      MainOp
	// Name overrides the path-derived wire name when set.
	Name string
}

// pairing is one valid {renderer op, main op} combination for a direction.
type pairing struct {
	direction Direction
	renderer  RendererOp
	main      MainOp
}

var validPairings = map[pairing]bool{
	{RendererToMainRequest, RendererInvoke, MainHandle}:     true,
	{RendererToMainRequest, RendererInvoke, MainHandleOnce}: true,
	{RendererToMainSignal, RendererSend, MainOn}:            true,
	{RendererToMainSignal, RendererSend, MainOnce}:          true,
	{MainToRendererSignal, RendererOn, MainSendTo}:          true,
	{MainToRendererSignal, RendererOnce, MainSendTo}:        true,
}

// Validate reports whether d is one of the six constructor-produced pairings.
func (d Descriptor) Validate() error {
	if validPairings[pairing{d.Direction, d.Renderer, d.Main}] {
		return nil
	}
	return fmt.Errorf("%s - %w: direction=%s renderer=%s main=%s",
		logPrefix, ErrInvalidDescriptor, d.Direction, d.Renderer, d.Main)
}

// Once reports whether the receiving side deregisters after the first delivery.
func (d Descriptor) Once() bool {
	return d.Main == MainHandleOnce || d.Main == MainOnce || d.Renderer == RendererOnce
}

// Option customizes a declaration.
type Option func(*Descriptor)

// WithName sets an explicit wire name, bypassing path derivation.
func WithName(name string) Option {
	return func(d *Descriptor) {
		d.Name = name
	}
}

func newDescriptor(dir Direction, r RendererOp, m MainOp, opts []Option) Descriptor {
	d := Descriptor{Direction: dir, Renderer: r, Main: m}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// RequestDecl declares a renderer to main request with payload P and result R.
// The type parameters exist only for compile-time checking.
type RequestDecl[P, R any] struct {
	desc Descriptor
}

func (*RequestDecl[P, R]) node() {}

// Descriptor returns the runtime descriptor.
func (d *RequestDecl[P, R]) Descriptor() Descriptor { return d.desc }

// SignalDecl declares a fire-and-forget renderer to main signal with payload P.
type SignalDecl[P any] struct {
	desc Descriptor
}

func (*SignalDecl[P]) node() {}

// Descriptor returns the runtime descriptor.
func (d *SignalDecl[P]) Descriptor() Descriptor { return d.desc }

// PushDecl declares a main to renderer signal with payload P.
type PushDecl[P any] struct {
	desc Descriptor
}

func (*PushDecl[P]) node() {}

// Descriptor returns the runtime descriptor.
func (d *PushDecl[P]) Descriptor() Descriptor { return d.desc }

// Request declares a request answered by a persistent main-side responder.
func Request[P, R any](opts ...Option) *RequestDecl[P, R] {
	return &RequestDecl[P, R]{desc: newDescriptor(RendererToMainRequest, RendererInvoke, MainHandle, opts)}
}

// RequestOnce declares a request whose main-side responder deregisters after
// answering once.
func RequestOnce[P, R any](opts ...Option) *RequestDecl[P, R] {
	return &RequestDecl[P, R]{desc: newDescriptor(RendererToMainRequest, RendererInvoke, MainHandleOnce, opts)}
}

// SignalToMain declares a renderer send with a persistent main-side reactor.
func SignalToMain[P any](opts ...Option) *SignalDecl[P] {
	return &SignalDecl[P]{desc: newDescriptor(RendererToMainSignal, RendererSend, MainOn, opts)}
}

// SignalToMainOnce declares a renderer send with a single-shot main-side reactor.
func SignalToMainOnce[P any](opts ...Option) *SignalDecl[P] {
	return &SignalDecl[P]{desc: newDescriptor(RendererToMainSignal, RendererSend, MainOnce, opts)}
}

// SignalToRenderer declares a main push with a persistent renderer-side reactor.
func SignalToRenderer[P any](opts ...Option) *PushDecl[P] {
	return &PushDecl[P]{desc: newDescriptor(MainToRendererSignal, RendererOn, MainSendTo, opts)}
}

// SignalToRendererOnce declares a main push with a single-shot renderer-side reactor.
func SignalToRendererOnce[P any](opts ...Option) *PushDecl[P] {
	return &PushDecl[P]{desc: newDescriptor(MainToRendererSignal, RendererOnce, MainSendTo, opts)}
}
