// Package comms carries the channel registry over COMMS (NATS): main listens
// on <prefix>.main.<channel>, each renderer on <prefix>.renderer.<id>.<channel>.
package comms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/typed-ipc/pkg/commsutil"
	"github.com/morezero/typed-ipc/pkg/transport"
)

const mainLogPrefix = "comms:main"

// Options configures an endpoint. Nil or zero values use defaults.
type Options struct {
	// Prefix is the first subject token. Empty means commsutil.DefaultPrefix.
	Prefix string
	// ID is the renderer id. Empty means a fresh uuid. Ignored by main.
	ID string
}

func (o *Options) prefix() string {
	if o == nil || o.Prefix == "" {
		return commsutil.DefaultPrefix
	}
	return o.Prefix
}

// subscriptions tracks live subscriptions per channel for removal.
type subscriptions struct {
	mu        sync.Mutex
	byChannel map[string]map[*comms.Subscription]struct{}
}

func (s *subscriptions) add(channel string, sub *comms.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byChannel == nil {
		s.byChannel = make(map[string]map[*comms.Subscription]struct{})
	}
	if s.byChannel[channel] == nil {
		s.byChannel[channel] = make(map[*comms.Subscription]struct{})
	}
	s.byChannel[channel][sub] = struct{}{}
}

// forget drops sub without unsubscribing; it reports whether it was tracked.
func (s *subscriptions) forget(channel string, sub *comms.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.byChannel[channel]
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.byChannel, channel)
	}
	return true
}

func (s *subscriptions) remove(channel string, sub *comms.Subscription) error {
	if !s.forget(channel, sub) {
		return nil
	}
	return unsubscribe(sub)
}

func (s *subscriptions) removeAll(channel string) error {
	s.mu.Lock()
	set := s.byChannel[channel]
	delete(s.byChannel, channel)
	s.mu.Unlock()

	var errs []error
	for sub := range set {
		errs = append(errs, unsubscribe(sub))
	}
	return errors.Join(errs...)
}

func (s *subscriptions) channelSubs(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byChannel[channel])
}

func (s *subscriptions) channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.byChannel))
	for ch := range s.byChannel {
		out = append(out, ch)
	}
	return out
}

// unsubscribe ignores subscriptions that already ended, such as once
// subscriptions whose auto-unsubscribe limit was reached.
func unsubscribe(sub *comms.Subscription) error {
	err := sub.Unsubscribe()
	if errors.Is(err, comms.ErrBadSubscription) || errors.Is(err, comms.ErrConnectionClosed) {
		return nil
	}
	return err
}

// subscribeOnce subscribes fn for exactly one message. The subscription is
// tracked before any message can reach the callback.
func subscribeOnce(nc *comms.Conn, subs *subscriptions, channel, subject string, fn func(*comms.Msg)) (*comms.Subscription, error) {
	var (
		fired atomic.Bool
		mu    sync.Mutex
		sub   *comms.Subscription
	)
	mu.Lock()
	defer mu.Unlock()

	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		mu.Lock()
		self := sub
		mu.Unlock()
		subs.forget(channel, self)
		fn(msg)
	})
	if err != nil {
		return nil, err
	}
	if err := sub.AutoUnsubscribe(1); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	subs.add(channel, sub)
	return sub, nil
}

// Main is the privileged endpoint over one COMMS connection. The connection
// is borrowed; Close only removes this endpoint's subscriptions.
type Main struct {
	nc     *comms.Conn
	prefix string
	ctx    context.Context
	cancel context.CancelFunc

	// hmu serializes responder registration so a channel keeps one responder.
	hmu       sync.Mutex
	handlers  subscriptions
	listeners subscriptions
}

var _ transport.Main = (*Main)(nil)

// NewMain creates the main endpoint.
func NewMain(nc *comms.Conn, opts *Options) *Main {
	ctx, cancel := context.WithCancel(context.Background())
	return &Main{nc: nc, prefix: opts.prefix(), ctx: ctx, cancel: cancel}
}

// SendTo publishes args to one renderer. COMMS publishing does not know
// whether the renderer is still there; connection failures are returned.
func (m *Main) SendTo(target transport.Target, channel string, args ...any) error {
	if target == nil || target.ID() == "" {
		return fmt.Errorf("%s - send %q: %w", mainLogPrefix, channel, transport.ErrTargetClosed)
	}
	data, err := commsutil.EncodeArgs(args)
	if err != nil {
		return fmt.Errorf("%s - failed to encode args for %q: %w", mainLogPrefix, channel, err)
	}
	subject := commsutil.BuildRendererSubject(m.prefix, target.ID(), channel)
	if err := m.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", mainLogPrefix, subject, err)
	}
	return nil
}

// Handle registers the responder for channel.
func (m *Main) Handle(channel string, fn transport.Responder) (transport.Teardown, error) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	if m.handlers.channelSubs(channel) > 0 {
		return nil, fmt.Errorf("%s - handle %q: %w", mainLogPrefix, channel, transport.ErrHandlerExists)
	}
	subject := commsutil.BuildMainSubject(m.prefix, channel)
	sub, err := m.nc.Subscribe(subject, func(msg *comms.Msg) {
		go m.respond(channel, fn, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", mainLogPrefix, subject, err)
	}
	m.handlers.add(channel, sub)
	slog.Debug(fmt.Sprintf("%s - Handling %s", mainLogPrefix, subject))
	return func() {
		if err := m.handlers.remove(channel, sub); err != nil {
			slog.Warn(fmt.Sprintf("%s - teardown %s: %v", mainLogPrefix, subject, err))
		}
	}, nil
}

// HandleOnce registers a responder for exactly one request.
func (m *Main) HandleOnce(channel string, fn transport.Responder) error {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	if m.handlers.channelSubs(channel) > 0 {
		return fmt.Errorf("%s - handle %q: %w", mainLogPrefix, channel, transport.ErrHandlerExists)
	}
	subject := commsutil.BuildMainSubject(m.prefix, channel)
	_, err := subscribeOnce(m.nc, &m.handlers, channel, subject, func(msg *comms.Msg) {
		go m.respond(channel, fn, msg)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", mainLogPrefix, subject, err)
	}
	return nil
}

// On registers a persistent listener.
func (m *Main) On(channel string, h transport.Handler) (transport.Teardown, error) {
	subject := commsutil.BuildMainSubject(m.prefix, channel)
	sub, err := m.nc.Subscribe(subject, func(msg *comms.Msg) {
		m.react(channel, h, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", mainLogPrefix, subject, err)
	}
	m.listeners.add(channel, sub)
	return func() {
		if err := m.listeners.remove(channel, sub); err != nil {
			slog.Warn(fmt.Sprintf("%s - teardown %s: %v", mainLogPrefix, subject, err))
		}
	}, nil
}

// Once registers a listener for exactly one message.
func (m *Main) Once(channel string, h transport.Handler) error {
	subject := commsutil.BuildMainSubject(m.prefix, channel)
	_, err := subscribeOnce(m.nc, &m.listeners, channel, subject, func(msg *comms.Msg) {
		m.react(channel, h, msg)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", mainLogPrefix, subject, err)
	}
	return nil
}

// RemoveHandler removes the responder for channel.
func (m *Main) RemoveHandler(channel string) error {
	return m.handlers.removeAll(channel)
}

// RemoveAllListeners removes every listener on channel.
func (m *Main) RemoveAllListeners(channel string) error {
	return m.listeners.removeAll(channel)
}

// Close removes every subscription of this endpoint and cancels the context
// handed to running responders.
func (m *Main) Close() error {
	m.cancel()
	var errs []error
	for _, ch := range m.handlers.channels() {
		errs = append(errs, m.handlers.removeAll(ch))
	}
	for _, ch := range m.listeners.channels() {
		errs = append(errs, m.listeners.removeAll(ch))
	}
	return errors.Join(errs...)
}

func (m *Main) react(channel string, h transport.Handler, msg *comms.Msg) {
	args, err := commsutil.DecodeArgs(msg.Data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping undecodable message on %q: %v", mainLogPrefix, channel, err))
		return
	}
	h(transport.Event{Channel: channel, Sender: senderOf(msg)}, args)
}

func (m *Main) respond(channel string, fn transport.Responder, msg *comms.Msg) {
	reply := m.answer(channel, fn, msg)
	data, err := commsutil.EncodePayload(reply)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply for %q: %v", mainLogPrefix, channel, err))
		data, _ = commsutil.EncodePayload(errorReply(transport.CodeInternal, "failed to encode reply"))
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond on %q: %v", mainLogPrefix, channel, err))
	}
}

func (m *Main) answer(channel string, fn transport.Responder, msg *comms.Msg) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = errorReply(transport.CodeInternal, fmt.Sprint(r))
		}
	}()

	args, err := commsutil.DecodeArgs(msg.Data)
	if err != nil {
		return errorReply(transport.CodeInvalidArgs, fmt.Sprintf("failed to decode args: %v", err))
	}
	value, err := fn(m.ctx, transport.Event{Channel: channel, Sender: senderOf(msg)}, args)
	if err != nil {
		re := transport.NewRemoteError(channel, err)
		return errorReply(re.Code, re.Message)
	}
	result, err := commsutil.EncodePayload(value)
	if err != nil {
		return errorReply(transport.CodeInternal, fmt.Sprintf("failed to encode result: %v", err))
	}
	return &Reply{Ok: true, Result: result}
}

func senderOf(msg *comms.Msg) transport.Target {
	if msg.Header == nil {
		return nil
	}
	if id := msg.Header.Get(HeaderSender); id != "" {
		return transport.TargetID(id)
	}
	return nil
}
