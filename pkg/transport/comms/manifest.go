package comms

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/typed-ipc/pkg/commsutil"
	"github.com/morezero/typed-ipc/pkg/manifest"
)

const manifestLogPrefix = "comms:manifest"

// ServeManifest answers manifest requests on <prefix>.manifest with m.
func ServeManifest(nc *comms.Conn, prefix string, m *manifest.Manifest) (*comms.Subscription, error) {
	data, err := commsutil.EncodePayload(m)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode manifest: %w", manifestLogPrefix, err)
	}
	subject := commsutil.BuildManifestSubject(prefix)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		if err := msg.Respond(data); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to respond on %s: %v", manifestLogPrefix, subject, err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", manifestLogPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Serving manifest %s on %s", manifestLogPrefix, m.Version, subject))
	return sub, nil
}

// FetchManifest requests main's manifest.
func FetchManifest(ctx context.Context, nc *comms.Conn, prefix string) (*manifest.Manifest, error) {
	subject := commsutil.BuildManifestSubject(prefix)
	resp, err := nc.RequestWithContext(ctx, subject, nil)
	if err != nil {
		return nil, fmt.Errorf("%s - manifest request on %s: %w", manifestLogPrefix, subject, err)
	}
	var m manifest.Manifest
	if err := commsutil.DecodePayload(resp.Data, &m); err != nil {
		return nil, fmt.Errorf("%s - failed to decode manifest: %w", manifestLogPrefix, err)
	}
	return &m, nil
}
