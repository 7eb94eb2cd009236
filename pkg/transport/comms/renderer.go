package comms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/typed-ipc/pkg/commsutil"
	"github.com/morezero/typed-ipc/pkg/serialize"
	"github.com/morezero/typed-ipc/pkg/transport"
)

const rendererLogPrefix = "comms:renderer"

// Renderer is a sandboxed endpoint over one COMMS connection.
type Renderer struct {
	nc        *comms.Conn
	prefix    string
	id        string
	listeners subscriptions
}

var (
	_ transport.Renderer = (*Renderer)(nil)
	_ transport.Target   = (*Renderer)(nil)
)

// NewRenderer creates a renderer endpoint. Main addresses it by ID.
func NewRenderer(nc *comms.Conn, opts *Options) *Renderer {
	id := ""
	if opts != nil {
		id = opts.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Renderer{nc: nc, prefix: opts.prefix(), id: id}
}

// ID returns the renderer id.
func (r *Renderer) ID() string { return r.id }

func (r *Renderer) message(channel string, args []any) (*comms.Msg, error) {
	data, err := commsutil.EncodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode args for %q: %w", rendererLogPrefix, channel, err)
	}
	msg := comms.NewMsg(commsutil.BuildMainSubject(r.prefix, channel))
	msg.Header.Set(HeaderSender, r.id)
	msg.Data = data
	return msg, nil
}

// Send publishes args to main without waiting.
func (r *Renderer) Send(channel string, args ...any) error {
	msg, err := r.message(channel, args)
	if err != nil {
		return err
	}
	if err := r.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", rendererLogPrefix, msg.Subject, err)
	}
	return nil
}

// Invoke requests an answer from main. The result is returned undecoded as a
// serialize.JSONValue (or nil for a null result).
func (r *Renderer) Invoke(ctx context.Context, channel string, args ...any) (any, error) {
	msg, err := r.message(channel, args)
	if err != nil {
		return nil, err
	}
	resp, err := r.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		if errors.Is(err, comms.ErrNoResponders) {
			return nil, fmt.Errorf("%s - invoke %q: %w", rendererLogPrefix, channel, transport.ErrNoResponder)
		}
		return nil, fmt.Errorf("%s - invoke %q: %w", rendererLogPrefix, channel, err)
	}

	var reply Reply
	if err := commsutil.DecodePayload(resp.Data, &reply); err != nil {
		return nil, fmt.Errorf("%s - failed to decode reply for %q: %w", rendererLogPrefix, channel, err)
	}
	if !reply.Ok {
		re := &transport.RemoteError{Channel: channel, Code: transport.CodeInternal, Message: "request failed"}
		if reply.Error != nil {
			re.Code, re.Message = reply.Error.Code, reply.Error.Message
		}
		return nil, re
	}
	if len(reply.Result) == 0 || string(reply.Result) == "null" {
		return nil, nil
	}
	return serialize.JSONValue(reply.Result), nil
}

// On registers a persistent listener.
func (r *Renderer) On(channel string, h transport.Handler) (transport.Teardown, error) {
	subject := commsutil.BuildRendererSubject(r.prefix, r.id, channel)
	sub, err := r.nc.Subscribe(subject, func(msg *comms.Msg) {
		r.react(channel, h, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", rendererLogPrefix, subject, err)
	}
	r.listeners.add(channel, sub)
	return func() {
		if err := r.listeners.remove(channel, sub); err != nil {
			slog.Warn(fmt.Sprintf("%s - teardown %s: %v", rendererLogPrefix, subject, err))
		}
	}, nil
}

// Once registers a listener for exactly one message.
func (r *Renderer) Once(channel string, h transport.Handler) error {
	subject := commsutil.BuildRendererSubject(r.prefix, r.id, channel)
	_, err := subscribeOnce(r.nc, &r.listeners, channel, subject, func(msg *comms.Msg) {
		r.react(channel, h, msg)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", rendererLogPrefix, subject, err)
	}
	return nil
}

// RemoveAllListeners removes every listener on channel.
func (r *Renderer) RemoveAllListeners(channel string) error {
	return r.listeners.removeAll(channel)
}

// Close removes every subscription of this endpoint.
func (r *Renderer) Close() error {
	var errs []error
	for _, ch := range r.listeners.channels() {
		errs = append(errs, r.listeners.removeAll(ch))
	}
	return errors.Join(errs...)
}

func (r *Renderer) react(channel string, h transport.Handler, msg *comms.Msg) {
	args, err := commsutil.DecodeArgs(msg.Data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping undecodable message on %q: %v", rendererLogPrefix, channel, err))
		return
	}
	h(transport.Event{Channel: channel}, args)
}
