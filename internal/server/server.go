// Package server hosts the main side of the application channels: it answers
// renderer requests, reacts to renderer signals, and pushes clock ticks to
// renderers that announced themselves ready.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/typed-ipc/internal/appschema"
	"github.com/morezero/typed-ipc/internal/config"
	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/manifest"
	"github.com/morezero/typed-ipc/pkg/registry"
	"github.com/morezero/typed-ipc/pkg/transport"
)

const logPrefix = "server:server"

// Server is the main-process host.
type Server struct {
	cfg      *config.Config
	schema   *appschema.Schema
	res      *registry.Result
	manifest *manifest.Manifest
	healthy  func() bool
	started  time.Time

	mu        sync.Mutex
	renderers map[string]*peer
	seq       int
	logged    int
}

// peer is a renderer that announced itself ready.
type peer struct {
	target transport.Target
	seen   time.Time
}

// NewServerParams holds the dependencies of NewServer.
type NewServerParams struct {
	Config *config.Config
	Main   transport.Main
	// Healthy reports transport health for /health. Nil means always healthy.
	Healthy func() bool
}

// NewServer binds the application schema on the main side and registers its
// handlers.
func NewServer(p NewServerParams) (*Server, error) {
	cfg := p.Config
	ser, err := cfg.NewSerializer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		schema:    appschema.New(),
		healthy:   p.Healthy,
		started:   time.Now(),
		renderers: make(map[string]*peer),
	}
	if s.healthy == nil {
		s.healthy = func() bool { return true }
	}

	tree := s.schema.Tree()
	s.res, err = registry.Generate(tree, dispatcher.SideMain, registry.Transports{Main: p.Main}, &registry.Options{
		Separator:  cfg.Separator,
		Serializer: ser,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to generate registry: %w", logPrefix, err)
	}
	s.manifest, err = manifest.Build(tree, cfg.SchemaVersion, cfg.Separator)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build manifest: %w", logPrefix, err)
	}
	if err := s.register(); err != nil {
		return nil, err
	}
	return s, nil
}

// Manifest returns the manifest main serves.
func (s *Server) Manifest() *manifest.Manifest { return s.manifest }

func (s *Server) register() error {
	sc := s.schema
	if _, err := registry.Handle(s.res, sc.Ping, s.handlePing); err != nil {
		return fmt.Errorf("%s - register ping: %w", logPrefix, err)
	}
	if _, err := registry.Handle(s.res, sc.Add, s.handleAdd); err != nil {
		return fmt.Errorf("%s - register add: %w", logPrefix, err)
	}
	if _, err := registry.Handle(s.res, sc.Setup, s.handleSetup); err != nil {
		return fmt.Errorf("%s - register setup: %w", logPrefix, err)
	}
	if _, err := registry.React(s.res, sc.Log, s.onLog); err != nil {
		return fmt.Errorf("%s - register log: %w", logPrefix, err)
	}
	if _, err := registry.React(s.res, sc.Ready, s.onReady); err != nil {
		return fmt.Errorf("%s - register ready: %w", logPrefix, err)
	}
	if _, err := registry.React(s.res, sc.FirstPaint, s.onFirstPaint); err != nil {
		return fmt.Errorf("%s - register firstPaint: %w", logPrefix, err)
	}
	return nil
}

func (s *Server) handlePing(_ context.Context, _ transport.Event, msg string) (string, error) {
	return "pong: " + msg, nil
}

func (s *Server) handleAdd(_ context.Context, _ transport.Event, a appschema.AddArgs) (int, error) {
	return a.A + a.B, nil
}

// handleSetup answers once; later renderers get no responder.
func (s *Server) handleSetup(_ context.Context, ev transport.Event, in appschema.SetupArgs) (appschema.Session, error) {
	session := appschema.Session{
		ID:        uuid.NewString(),
		Separator: s.cfg.Separator,
		Version:   s.manifest.Version,
	}
	slog.Info(fmt.Sprintf("%s - Session %s opened for %q by %s", logPrefix, session.ID, in.Title, senderID(ev)))
	return session, nil
}

func (s *Server) onLog(ev transport.Event, e appschema.LogEntry) {
	s.mu.Lock()
	s.logged++
	s.mu.Unlock()

	msg := fmt.Sprintf("%s - [%s] %s", logPrefix, senderID(ev), e.Message)
	switch e.Level {
	case "debug":
		slog.Debug(msg)
	case "warn":
		slog.Warn(msg)
	case "error":
		slog.Error(msg)
	default:
		slog.Info(msg)
	}
}

// onReady records or refreshes a renderer. Renderers repeat app::ready to stay
// alive when IPC_RENDERER_TTL is set.
func (s *Server) onReady(ev transport.Event, _ struct{}) {
	if ev.Sender == nil {
		return
	}
	id := ev.Sender.ID()
	s.mu.Lock()
	p, known := s.renderers[id]
	if !known {
		p = &peer{target: ev.Sender}
		s.renderers[id] = p
	}
	p.seen = time.Now()
	n := len(s.renderers)
	s.mu.Unlock()
	if !known {
		slog.Info(fmt.Sprintf("%s - Renderer %s ready (%d connected)", logPrefix, id, n))
	}
}

func (s *Server) onFirstPaint(ev transport.Event, p appschema.Paint) {
	slog.Info(fmt.Sprintf("%s - First paint by %s after %s", logPrefix, senderID(ev), p.Elapsed))
}

func senderID(ev transport.Event) string {
	if ev.Sender == nil {
		return "unknown"
	}
	return ev.Sender.ID()
}

// Renderers returns the ids of ready renderers, sorted.
func (s *Server) Renderers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.renderers))
	for id := range s.renderers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) targets() []transport.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Target, 0, len(s.renderers))
	for _, p := range s.renderers {
		out = append(out, p.target)
	}
	return out
}

// expire forgets renderers not heard from within the TTL before now.
func (s *Server) expire(now time.Time) {
	ttl := s.cfg.RendererTTL
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.renderers {
		if now.Sub(p.seen) > ttl {
			delete(s.renderers, id)
			slog.Info(fmt.Sprintf("%s - Renderer %s expired after %s without app::ready", logPrefix, id, ttl))
		}
	}
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.renderers, id)
	s.mu.Unlock()
}

// Tick pushes one tick to every ready renderer. Renderers that expired or
// whose target is closed are forgotten.
func (s *Server) Tick(now time.Time) {
	s.expire(now)

	s.mu.Lock()
	s.seq++
	tick := appschema.Tick{Seq: s.seq, At: now}
	s.mu.Unlock()

	for _, t := range s.targets() {
		err := registry.Push(s.res, s.schema.Tick, t, tick)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrTargetClosed):
			slog.Info(fmt.Sprintf("%s - Renderer %s is gone", logPrefix, t.ID()))
			s.forget(t.ID())
		default:
			slog.Warn(fmt.Sprintf("%s - tick to %s: %v", logPrefix, t.ID(), err))
		}
	}
}

// RunTicker calls Tick every interval until ctx ends.
func (s *Server) RunTicker(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Tick(now)
		}
	}
}

// Shutdown tells every ready renderer that main is going away and removes
// main's handlers.
func (s *Server) Shutdown(reason string) {
	for _, t := range s.targets() {
		if err := registry.Push(s.res, s.schema.Shutdown, t, reason); err != nil {
			slog.Warn(fmt.Sprintf("%s - shutdown notice to %s: %v", logPrefix, t.ID(), err))
		}
	}
	for _, wire := range s.res.Channels.Flatten() {
		if err := s.res.ClearListeners(wire); err != nil {
			slog.Warn(fmt.Sprintf("%s - clear %s: %v", logPrefix, wire, err))
		}
	}
}

// Status is the body of /health.
type Status struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Renderers []string `json:"renderers"`
	Logged    int      `json:"logged"`
	Uptime    string   `json:"uptime"`
	Timestamp string   `json:"timestamp"`
}

// Status reports host health.
func (s *Server) Status() *Status {
	st := &Status{
		Status:    "healthy",
		Version:   s.manifest.Version,
		Renderers: s.Renderers(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	st.Logged = s.logged
	s.mu.Unlock()
	if !s.healthy() {
		st.Status = "unhealthy"
	}
	return st
}

// HTTPHandler serves the status pages.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/channels", s.handleChannels)
	mux.HandleFunc("/manifest", s.handleManifest)
	return mux
}
