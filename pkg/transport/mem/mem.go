// Package mem is an in-process transport pair: one main endpoint and any
// number of renderer endpoints on a shared Bus. Every endpoint has its own
// event loop, so deliveries on one endpoint run one at a time, in send order.
package mem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/morezero/typed-ipc/pkg/transport"
)

const logPrefix = "mem:mem"

// Bus connects one main endpoint to its renderers.
type Bus struct {
	main *Main

	mu        sync.RWMutex
	renderers map[string]*Renderer
}

// NewBus creates a bus with a running main endpoint.
func NewBus() *Bus {
	b := &Bus{renderers: make(map[string]*Renderer)}
	b.main = &Main{
		bus:      b,
		loop:     newLoop(),
		handlers: make(map[string]*responder),
	}
	return b
}

// Main returns the main-process endpoint.
func (b *Bus) Main() *Main { return b.main }

// NewRenderer attaches a renderer endpoint with a fresh id.
func (b *Bus) NewRenderer() *Renderer {
	r := &Renderer{
		id:   uuid.NewString(),
		bus:  b,
		loop: newLoop(),
	}
	b.mu.Lock()
	b.renderers[r.id] = r
	b.mu.Unlock()
	slog.Debug(fmt.Sprintf("%s - renderer %s attached", logPrefix, r.id))
	return r
}

func (b *Bus) renderer(id string) *Renderer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.renderers[id]
}

func (b *Bus) detach(id string) {
	b.mu.Lock()
	delete(b.renderers, id)
	b.mu.Unlock()
}

// Close closes every renderer and then the main endpoint, and waits for their
// queued work to finish. It must not be called from a handler.
func (b *Bus) Close() {
	b.mu.RLock()
	rs := make([]*Renderer, 0, len(b.renderers))
	for _, r := range b.renderers {
		rs = append(rs, r)
	}
	b.mu.RUnlock()
	for _, r := range rs {
		r.Close()
		r.loop.wait()
	}
	b.main.close()
	b.main.loop.wait()
}

type responder struct {
	fn   transport.Responder
	once bool
}

type result struct {
	value any
	err   error
}

// Main is the privileged endpoint.
type Main struct {
	bus       *Bus
	loop      *loop
	listeners listeners

	mu       sync.Mutex
	handlers map[string]*responder
	closed   atomic.Bool
}

var _ transport.Main = (*Main)(nil)

// SendTo pushes args to one renderer. Sending to a closed or unknown
// renderer returns transport.ErrTargetClosed.
func (m *Main) SendTo(target transport.Target, channel string, args ...any) error {
	if target == nil {
		return fmt.Errorf("%s - send %q: %w", logPrefix, channel, transport.ErrTargetClosed)
	}
	r := m.bus.renderer(target.ID())
	if r == nil || !r.deliver(channel, transport.Event{Channel: channel}, args) {
		return fmt.Errorf("%s - send %q to %s: %w", logPrefix, channel, target.ID(), transport.ErrTargetClosed)
	}
	return nil
}

// Handle registers the responder for channel. A channel has at most one.
func (m *Main) Handle(channel string, fn transport.Responder) (transport.Teardown, error) {
	entry, err := m.setResponder(channel, fn, false)
	if err != nil {
		return nil, err
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.handlers[channel] == entry {
			delete(m.handlers, channel)
		}
	}, nil
}

// HandleOnce registers a responder that is removed when it receives a request.
func (m *Main) HandleOnce(channel string, fn transport.Responder) error {
	_, err := m.setResponder(channel, fn, true)
	return err
}

func (m *Main) setResponder(channel string, fn transport.Responder, once bool) (*responder, error) {
	if m.closed.Load() {
		return nil, transport.ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[channel]; ok {
		return nil, fmt.Errorf("%s - handle %q: %w", logPrefix, channel, transport.ErrHandlerExists)
	}
	entry := &responder{fn: fn, once: once}
	m.handlers[channel] = entry
	return entry, nil
}

// On registers a persistent listener.
func (m *Main) On(channel string, h transport.Handler) (transport.Teardown, error) {
	if m.closed.Load() {
		return nil, transport.ErrClosed
	}
	l := m.listeners.add(channel, h, false)
	return func() { m.listeners.remove(channel, l) }, nil
}

// Once registers a listener that receives at most one message.
func (m *Main) Once(channel string, h transport.Handler) error {
	if m.closed.Load() {
		return transport.ErrClosed
	}
	m.listeners.add(channel, h, true)
	return nil
}

// RemoveHandler removes the responder for channel, if any.
func (m *Main) RemoveHandler(channel string) error {
	m.mu.Lock()
	delete(m.handlers, channel)
	m.mu.Unlock()
	return nil
}

// RemoveAllListeners removes every listener on channel.
func (m *Main) RemoveAllListeners(channel string) error {
	m.listeners.removeAll(channel)
	return nil
}

// ListenerCount reports the listeners currently registered on channel.
func (m *Main) ListenerCount(channel string) int {
	return m.listeners.count(channel)
}

func (m *Main) deliver(channel string, ev transport.Event, args []any) bool {
	claimed := m.listeners.claim(channel)
	return m.loop.post(func() { dispatch(claimed, ev, args) })
}

// claimResponder picks the responder for one request; once-responders are
// removed so that no later request reaches them.
func (m *Main) claimResponder(channel string) *responder {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.handlers[channel]
	if entry != nil && entry.once {
		delete(m.handlers, channel)
	}
	return entry
}

func (m *Main) request(ctx context.Context, ev transport.Event, args []any) (any, error) {
	if m.closed.Load() {
		return nil, transport.ErrClosed
	}
	entry := m.claimResponder(ev.Channel)
	if entry == nil {
		return nil, fmt.Errorf("%s - invoke %q: %w", logPrefix, ev.Channel, transport.ErrNoResponder)
	}

	done := make(chan result, 1)
	posted := m.loop.post(func() {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- result{err: &transport.RemoteError{
						Channel: ev.Channel, Code: transport.CodeInternal, Message: fmt.Sprint(r),
					}}
				}
			}()
			v, err := entry.fn(ctx, ev, args)
			done <- result{value: v, err: err}
		}()
	})
	if !posted {
		return nil, transport.ErrClosed
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, transport.NewRemoteError(ev.Channel, res.err)
		}
		return res.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Main) close() {
	if m.closed.Swap(true) {
		return
	}
	m.loop.close()
}

// Renderer is a sandboxed endpoint. It doubles as its own target handle.
type Renderer struct {
	id        string
	bus       *Bus
	loop      *loop
	listeners listeners
	closed    atomic.Bool
}

var (
	_ transport.Renderer = (*Renderer)(nil)
	_ transport.Target   = (*Renderer)(nil)
)

// ID returns the renderer id.
func (r *Renderer) ID() string { return r.id }

// Send delivers args to main without waiting.
func (r *Renderer) Send(channel string, args ...any) error {
	if r.closed.Load() {
		return transport.ErrClosed
	}
	if !r.bus.main.deliver(channel, transport.Event{Channel: channel, Sender: r}, args) {
		return transport.ErrClosed
	}
	return nil
}

// Invoke sends a request to main and waits for its answer or for ctx.
func (r *Renderer) Invoke(ctx context.Context, channel string, args ...any) (any, error) {
	if r.closed.Load() {
		return nil, transport.ErrClosed
	}
	return r.bus.main.request(ctx, transport.Event{Channel: channel, Sender: r}, args)
}

// On registers a persistent listener.
func (r *Renderer) On(channel string, h transport.Handler) (transport.Teardown, error) {
	if r.closed.Load() {
		return nil, transport.ErrClosed
	}
	l := r.listeners.add(channel, h, false)
	return func() { r.listeners.remove(channel, l) }, nil
}

// Once registers a listener that receives at most one message.
func (r *Renderer) Once(channel string, h transport.Handler) error {
	if r.closed.Load() {
		return transport.ErrClosed
	}
	r.listeners.add(channel, h, true)
	return nil
}

// RemoveAllListeners removes every listener on channel.
func (r *Renderer) RemoveAllListeners(channel string) error {
	r.listeners.removeAll(channel)
	return nil
}

// ListenerCount reports the listeners currently registered on channel.
func (r *Renderer) ListenerCount(channel string) int {
	return r.listeners.count(channel)
}

func (r *Renderer) deliver(channel string, ev transport.Event, args []any) bool {
	if r.closed.Load() {
		return false
	}
	claimed := r.listeners.claim(channel)
	return r.loop.post(func() { dispatch(claimed, ev, args) })
}

// Close detaches the renderer; later pushes to it fail with ErrTargetClosed.
func (r *Renderer) Close() {
	if r.closed.Swap(true) {
		return
	}
	r.bus.detach(r.id)
	r.loop.close()
	slog.Debug(fmt.Sprintf("%s - renderer %s closed", logPrefix, r.id))
}
