// Package main is the entrypoint for ipc-host.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/morezero/typed-ipc/internal/appschema"
	"github.com/morezero/typed-ipc/internal/config"
	"github.com/morezero/typed-ipc/internal/server"
	"github.com/morezero/typed-ipc/pkg/commsutil"
	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/manifest"
	"github.com/morezero/typed-ipc/pkg/registry"
	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/transport/comms"
)

const usage = `Usage: ipc-host [command]
       ipc-host serve              Host the main side of the application channels (NATS, HTTP).
       ipc-host broker             Run an embedded NATS broker for local development.
       ipc-host channels           Print the wire-name tree as JSON.
       ipc-host manifest [file]    Write the schema manifest (default: stdout).
       ipc-host call <a> <b>       Act as a renderer: check the manifest, then invoke math::add.

Commands:
  serve           (default) Start the main-process host.
  broker          Start nats-server on BROKER_HOST:BROKER_PORT until interrupted.
  channels        Resolve the schema with IPC_SEPARATOR and print the names.
  manifest [file] Write the manifest renderers can pin via IPC_MANIFEST_FILE.
  call <a> <b>    Invoke math::add through COMMS, bounded by IPC_REQUEST_TIMEOUT.

Environment: COMMS_URL, IPC_SUBJECT_PREFIX, IPC_SEPARATOR, IPC_SERIALIZER (none|json|cbor),
IPC_SCHEMA_VERSION, IPC_RENDERER_ID, IPC_MANIFEST_FILE, IPC_HTTP_ADDR.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "broker":
		if err := runBroker(); err != nil {
			log.Fatalf("ipc-host broker: %v", err)
		}
		return
	case "channels":
		if err := runChannels(); err != nil {
			log.Fatalf("ipc-host channels: %v", err)
		}
		return
	case "manifest":
		file := ""
		if len(args) > 1 {
			file = args[1]
		}
		if err := runManifest(file); err != nil {
			log.Fatalf("ipc-host manifest: %v", err)
		}
		return
	case "call":
		if len(args) < 3 {
			log.Fatalf("ipc-host call: require two integers")
		}
		a, b, err := parseOperands(args[1], args[2])
		if err != nil {
			log.Fatalf("ipc-host call: %v", err)
		}
		if err := runCall(a, b); err != nil {
			log.Fatalf("ipc-host call: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("ipc-host: %v", err)
	}
}

func parseOperands(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("operand %q: %w", a, err)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("operand %q: %w", b, err)
	}
	return x, y, nil
}

func runBroker() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForBroker(); err != nil {
		return err
	}
	server.SetupLogging(cfg.LogLevel)

	ns, err := commsserver.NewServer(&commsserver.Options{Host: cfg.BrokerHost, Port: cfg.BrokerPort, NoSigs: true})
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("broker not ready on %s:%d", cfg.BrokerHost, cfg.BrokerPort)
	}
	slog.Info(fmt.Sprintf("ipc-host - Broker listening on %s", ns.ClientURL()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	ns.Shutdown()
	ns.WaitForShutdown()
	return nil
}

func runChannels() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := channelsJSON(cfg.Separator)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// channelsJSON resolves the application schema into its nested wire-name tree.
func channelsJSON(sep string) ([]byte, error) {
	names, err := schema.Resolve(appschema.New().Tree(), &schema.ResolveOptions{Separator: sep})
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(names, "", "  ")
}

func localManifest(cfg *config.Config) (*manifest.Manifest, error) {
	return manifest.Build(appschema.New().Tree(), cfg.SchemaVersion, cfg.Separator)
}

func runManifest(file string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := localManifest(cfg)
	if err != nil {
		return err
	}
	if file == "" {
		file = "/dev/stdout"
	}
	return manifest.WriteFile(file, m)
}

func runCall(a, b int) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForCall(); err != nil {
		return err
	}
	server.SetupLogging(cfg.LogLevel)
	ser, err := cfg.NewSerializer()
	if err != nil {
		return err
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-renderer")
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	local, err := localManifest(cfg)
	if err != nil {
		return err
	}
	if cfg.ManifestFile != "" {
		if local, err = manifest.Load(cfg.ManifestFile); err != nil {
			return err
		}
	}
	remote, err := comms.FetchManifest(ctx, nc, cfg.SubjectPrefix)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}
	if err := manifest.Check(local, remote); err != nil {
		return err
	}

	sc := appschema.New()
	r := comms.NewRenderer(nc, &comms.Options{Prefix: cfg.SubjectPrefix, ID: cfg.RendererID})
	defer r.Close()
	res, err := registry.Generate(sc.Tree(), dispatcher.SideRenderer, registry.Transports{Renderer: r}, &registry.Options{
		Separator:  cfg.Separator,
		Serializer: ser,
	})
	if err != nil {
		return err
	}

	sum, err := registry.Invoke(ctx, res, sc.Add, appschema.AddArgs{A: a, B: b})
	if err != nil {
		return err
	}
	if err := registry.Send(res, sc.Log, appschema.LogEntry{Level: "info", Message: fmt.Sprintf("computed %d + %d", a, b)}); err != nil {
		slog.Warn(fmt.Sprintf("ipc-host - log signal: %v", err))
	}
	if err := nc.Flush(); err != nil {
		slog.Warn(fmt.Sprintf("ipc-host - flush: %v", err))
	}
	fmt.Println(sum)
	return nil
}
