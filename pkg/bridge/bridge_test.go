package bridge

import (
	"errors"
	"testing"

	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/registry"
	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/transport"
	"github.com/morezero/typed-ipc/pkg/transport/mem"
)

const bridgeTestPrefix = "bridge:bridge_test"

func rendererResult(t *testing.T) (*registry.Result, *mem.Renderer) {
	t.Helper()
	bus := mem.NewBus()
	t.Cleanup(bus.Close)
	r := bus.NewRenderer()
	tree := schema.Branch{"clock": schema.Branch{"tick": schema.SignalToRenderer[int]()}}
	res, err := registry.Generate(tree, dispatcher.SideRenderer, registry.Transports{Renderer: r}, nil)
	if err != nil {
		t.Fatalf("%s - Generate: %v", bridgeTestPrefix, err)
	}
	return res, r
}

func TestExposeAndLoad(t *testing.T) {
	res, r := rendererResult(t)
	w := NewWorld()
	if err := ExposeIPC(w, res, nil); err != nil {
		t.Fatalf("%s - ExposeIPC: %v", bridgeTestPrefix, err)
	}

	ipc, err := LoadIPC(w, nil)
	if err != nil {
		t.Fatalf("%s - LoadIPC: %v", bridgeTestPrefix, err)
	}
	if wire, _ := ipc.Channels.Lookup("clock", "tick"); wire != "clock::tick" {
		t.Errorf("%s - wire = %q, want clock::tick", bridgeTestPrefix, wire)
	}
	leaf, ok := ipc.Renderer["clock"].(registry.BoundBranch)["tick"].(registry.BoundLeaf)
	if !ok {
		t.Fatalf("%s - clock.tick is not a bound leaf", bridgeTestPrefix)
	}
	if _, err := leaf.Binding.(*dispatcher.Listener).Listen(func(transport.Event, []any) {}); err != nil {
		t.Fatalf("%s - Listen: %v", bridgeTestPrefix, err)
	}
	if err := ipc.ClearListeners("clock::tick"); err != nil {
		t.Fatalf("%s - ClearListeners: %v", bridgeTestPrefix, err)
	}
	if n := r.ListenerCount("clock::tick"); n != 0 {
		t.Errorf("%s - listeners = %d, want 0", bridgeTestPrefix, n)
	}
}

func TestExposeIPC_CustomNamesAndConflicts(t *testing.T) {
	res, _ := rendererResult(t)
	w := NewWorld()
	names := &ExposeNames{Renderer: "ipc"}
	if err := ExposeIPC(w, res, names); err != nil {
		t.Fatalf("%s - ExposeIPC: %v", bridgeTestPrefix, err)
	}
	if _, ok := w.Get("ipc"); !ok {
		t.Errorf("%s - custom renderer name not exposed", bridgeTestPrefix)
	}
	if _, ok := w.Get("__ipc_channels"); !ok {
		t.Errorf("%s - default channels name not exposed", bridgeTestPrefix)
	}
	if err := ExposeIPC(w, res, names); !errors.Is(err, ErrAlreadyExposed) {
		t.Errorf("%s - second ExposeIPC err = %v, want ErrAlreadyExposed", bridgeTestPrefix, err)
	}
}

func TestExposeIPC_RejectsMainSide(t *testing.T) {
	bus := mem.NewBus()
	defer bus.Close()
	res, err := registry.Generate(schema.Branch{}, dispatcher.SideMain, registry.Transports{Main: bus.Main()}, nil)
	if err != nil {
		t.Fatalf("%s - Generate: %v", bridgeTestPrefix, err)
	}
	var ce *dispatcher.ConfigError
	if err := ExposeIPC(NewWorld(), res, nil); !errors.As(err, &ce) {
		t.Errorf("%s - err = %v, want *ConfigError", bridgeTestPrefix, err)
	}
}

func TestLoadIPC_Errors(t *testing.T) {
	w := NewWorld()
	if _, err := LoadIPC(w, nil); !errors.Is(err, ErrNotExposed) {
		t.Errorf("%s - empty world err = %v, want ErrNotExposed", bridgeTestPrefix, err)
	}
	_ = w.ExposeInMainWorld("__ipc_renderer", "not a tree")
	if _, err := LoadIPC(w, nil); err == nil {
		t.Errorf("%s - expected type error", bridgeTestPrefix)
	}
}
