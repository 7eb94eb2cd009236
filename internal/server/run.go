package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/typed-ipc/internal/config"
	"github.com/morezero/typed-ipc/pkg/commsutil"
	"github.com/morezero/typed-ipc/pkg/transport/comms"
)

// SetupLogging installs the default slog handler at the named level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the host over COMMS, blocks until a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting ipc-host", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connect to COMMS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Bind the schema on the main side
	main := comms.NewMain(nc, &comms.Options{Prefix: cfg.SubjectPrefix})
	s, err := NewServer(NewServerParams{Config: cfg, Main: main, Healthy: nc.IsConnected})
	if err != nil {
		main.Close()
		nc.Close()
		return err
	}

	// Step 3: Serve the manifest renderers check against
	manifestSub, err := comms.ServeManifest(nc, cfg.SubjectPrefix, s.Manifest())
	if err != nil {
		main.Close()
		nc.Close()
		return err
	}

	// Step 4: Clock ticks and HTTP status
	go s.RunTicker(ctx, cfg.TickInterval)

	httpServer := &http.Server{Addr: cfg.ListenAddr(), Handler: s.HTTPHandler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP status server listening on %s", logPrefix, httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - ipc-host is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	cancel()
	s.Shutdown(sig.String())
	_ = manifestSub.Unsubscribe()
	_ = httpServer.Shutdown(context.Background())
	if err := main.Close(); err != nil {
		slog.Warn(fmt.Sprintf("%s - close main endpoint: %v", logPrefix, err))
	}
	_ = nc.Drain()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
