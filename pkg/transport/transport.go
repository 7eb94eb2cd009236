// Package transport defines the message-passing capabilities the channel
// registry consumes. The transport owns every listener list; callers never
// keep a parallel registry.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel transport errors.
var (
	// ErrNoResponder is returned by Invoke when nothing handles the channel.
	ErrNoResponder = errors.New("no responder registered for channel")
	// ErrHandlerExists is returned when a channel already has a responder.
	ErrHandlerExists = errors.New("responder already registered for channel")
	// ErrTargetClosed is returned when pushing to a renderer that is gone.
	ErrTargetClosed = errors.New("target renderer is closed")
	// ErrClosed is returned by an endpoint after Close.
	ErrClosed = errors.New("transport endpoint closed")
)

// Target identifies one renderer. Handles are borrowed: the registry never
// manages their lifecycle.
type Target interface {
	ID() string
}

// TargetID is a Target identified only by its id.
type TargetID string

// ID returns the id.
func (t TargetID) ID() string { return string(t) }

// Event describes one delivery.
type Event struct {
	Channel string
	// Sender is the originating renderer for deliveries to main, and nil for
	// deliveries to a renderer.
	Sender Target
}

// Handler reacts to a delivered argument sequence.
type Handler func(ev Event, args []any)

// Responder answers a request. A returned error is delivered to the invoking
// side as a *RemoteError.
type Responder func(ctx context.Context, ev Event, args []any) (any, error)

// Teardown stops further deliveries to the one handler it was returned for.
type Teardown func()

// Main is the capability set of the privileged process.
type Main interface {
	SendTo(target Target, channel string, args ...any) error
	Handle(channel string, r Responder) (Teardown, error)
	HandleOnce(channel string, r Responder) error
	On(channel string, h Handler) (Teardown, error)
	Once(channel string, h Handler) error
	RemoveHandler(channel string) error
	RemoveAllListeners(channel string) error
}

// Renderer is the capability set of a sandboxed process.
type Renderer interface {
	ID() string
	Send(channel string, args ...any) error
	// Invoke blocks the calling goroutine until main answers, ctx ends or the
	// transport fails. No timeout is imposed.
	Invoke(ctx context.Context, channel string, args ...any) (any, error)
	On(channel string, h Handler) (Teardown, error)
	Once(channel string, h Handler) error
	RemoveAllListeners(channel string) error
}

// RemoteError is a responder failure carried back to the invoking renderer.
type RemoteError struct {
	Channel string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("error invoking remote method %q: %s: %s", e.Channel, e.Code, e.Message)
}

// Remote error codes.
const (
	CodeHandlerError = "HANDLER_ERROR"
	CodeInvalidArgs  = "INVALID_ARGUMENT"
	CodeInternal     = "INTERNAL_ERROR"
)

// NewRemoteError converts a responder error into a RemoteError, keeping an
// existing RemoteError's code.
func NewRemoteError(channel string, err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		return &RemoteError{Channel: channel, Code: re.Code, Message: re.Message}
	}
	return &RemoteError{Channel: channel, Code: CodeHandlerError, Message: err.Error()}
}
