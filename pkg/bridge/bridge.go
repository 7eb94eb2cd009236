// Package bridge publishes a renderer-side registry result to the restricted
// context through one explicit call and reads it back through one accessor.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/registry"
	"github.com/morezero/typed-ipc/pkg/schema"
)

const logPrefix = "bridge:bridge"

// Sentinel bridge errors.
var (
	ErrAlreadyExposed = errors.New("name already exposed")
	ErrNotExposed     = errors.New("name not exposed")
)

// Exposer installs a value into the restricted context under name.
type Exposer interface {
	ExposeInMainWorld(name string, value any) error
}

// Getter reads a value the privileged side exposed.
type Getter interface {
	Get(name string) (any, bool)
}

// World is an in-process restricted namespace. Names are write-once.
type World struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	_ Exposer = (*World)(nil)
	_ Getter  = (*World)(nil)
)

// NewWorld returns an empty namespace.
func NewWorld() *World {
	return &World{values: make(map[string]any)}
}

// ExposeInMainWorld installs value under name.
func (w *World) ExposeInMainWorld(name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.values[name]; ok {
		return fmt.Errorf("%s - %w: %s", logPrefix, ErrAlreadyExposed, name)
	}
	w.values[name] = value
	return nil
}

// Get returns the value exposed under name.
func (w *World) Get(name string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.values[name]
	return v, ok
}

// ExposeNames are the keys the three published values live under.
type ExposeNames struct {
	Renderer       string
	Channels       string
	ClearListeners string
}

// DefaultExposeNames returns the default keys.
func DefaultExposeNames() ExposeNames {
	return ExposeNames{
		Renderer:       "__ipc_renderer",
		Channels:       "__ipc_channels",
		ClearListeners: "__ipc_clearListeners",
	}
}

func (n *ExposeNames) orDefault() ExposeNames {
	d := DefaultExposeNames()
	if n == nil {
		return d
	}
	out := *n
	if out.Renderer == "" {
		out.Renderer = d.Renderer
	}
	if out.Channels == "" {
		out.Channels = d.Channels
	}
	if out.ClearListeners == "" {
		out.ClearListeners = d.ClearListeners
	}
	return out
}

// ClearFunc removes every listener registered on one channel.
type ClearFunc func(channel string) error

// Exposed is what the restricted context sees.
type Exposed struct {
	Renderer       registry.BoundBranch
	Channels       schema.NameBranch
	ClearListeners ClearFunc
}

// ExposeIPC publishes the bound tree, the wire names and the cleanup function
// of a renderer-side result. Main-side results are never exposed.
func ExposeIPC(x Exposer, res *registry.Result, names *ExposeNames) error {
	if res == nil {
		return fmt.Errorf("%s - nil registry result", logPrefix)
	}
	if res.Side != dispatcher.SideRenderer {
		return &dispatcher.ConfigError{Side: res.Side, Reason: "only renderer-side results can be exposed"}
	}
	n := names.orDefault()
	values := []struct {
		name  string
		value any
	}{
		{n.Renderer, res.Bound},
		{n.Channels, res.Channels},
		{n.ClearListeners, ClearFunc(res.ClearListeners)},
	}
	for _, v := range values {
		if err := x.ExposeInMainWorld(v.name, v.value); err != nil {
			return fmt.Errorf("%s - failed to expose %s: %w", logPrefix, v.name, err)
		}
	}
	return nil
}

// LoadIPC reads back what ExposeIPC published.
func LoadIPC(g Getter, names *ExposeNames) (*Exposed, error) {
	n := names.orDefault()
	var (
		out Exposed
		err error
	)
	if out.Renderer, err = load[registry.BoundBranch](g, n.Renderer); err != nil {
		return nil, err
	}
	if out.Channels, err = load[schema.NameBranch](g, n.Channels); err != nil {
		return nil, err
	}
	if out.ClearListeners, err = load[ClearFunc](g, n.ClearListeners); err != nil {
		return nil, err
	}
	return &out, nil
}

func load[T any](g Getter, name string) (T, error) {
	var zero T
	v, ok := g.Get(name)
	if !ok {
		return zero, fmt.Errorf("%s - %w: %s", logPrefix, ErrNotExposed, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s - %s holds %T, want %T", logPrefix, name, v, zero)
	}
	return t, nil
}
