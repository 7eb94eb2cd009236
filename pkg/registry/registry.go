// Package registry turns a schema tree into a bound dispatch tree for one side
// of the process pair.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/typed-ipc/pkg/dispatcher"
	"github.com/morezero/typed-ipc/pkg/schema"
	"github.com/morezero/typed-ipc/pkg/serialize"
	"github.com/morezero/typed-ipc/pkg/transport"
)

const logPrefix = "registry:registry"

// Sentinel registry errors.
var (
	// ErrNotFound is returned when a path or declaration is not in the tree.
	ErrNotFound = errors.New("channel not found")
	// ErrAmbiguous is returned when one declaration value appears under more
	// than one wire name and so cannot identify a single binding.
	ErrAmbiguous = errors.New("declaration bound to several wire names")
	// ErrChannelRequired is returned by ClearListeners for an empty channel.
	ErrChannelRequired = errors.New("channel name required")
)

// Transports holds the endpoint for the side being generated. Only the one
// matching the side is used.
type Transports struct {
	Main     transport.Main
	Renderer transport.Renderer
}

// Options configures Generate. A nil Options uses the defaults.
type Options struct {
	// Separator joins path segments. Empty means schema.DefaultSeparator.
	Separator string
	// Serializer is applied to every argument sequence; nil passes arguments
	// through untouched.
	Serializer serialize.Serializer
	// OnDecodeError is told about inbound messages dropped because they could
	// not be decoded. Nil logs a warning.
	OnDecodeError dispatcher.DecodeErrorFunc
}

func (o *Options) separator() string {
	if o == nil || o.Separator == "" {
		return schema.DefaultSeparator
	}
	return o.Separator
}

// BoundNode is either a BoundBranch or a BoundLeaf.
type BoundNode interface {
	boundNode()
}

// BoundBranch mirrors a schema.Branch.
type BoundBranch map[string]BoundNode

func (BoundBranch) boundNode() {}

// BoundLeaf holds the binding that replaced one declaration.
type BoundLeaf struct {
	Binding dispatcher.Binding
}

func (BoundLeaf) boundNode() {}

// Result is the output of Generate.
type Result struct {
	Side dispatcher.Side
	// Bound has the shape of the schema tree with every declaration bound.
	Bound BoundBranch
	// Channels has the shape of the schema tree with every declaration
	// replaced by its wire name.
	Channels schema.NameBranch

	transports    Transports
	byLeaf        map[schema.Leaf]dispatcher.Binding
	ambiguous     map[schema.Leaf]bool
	onDecodeError dispatcher.DecodeErrorFunc
}

// Generate resolves tree and binds every declaration for side. It performs no
// I/O; registration happens only when a binding is used. Two calls share no
// state beyond the transport they are given.
func Generate(tree schema.Branch, side dispatcher.Side, t Transports, opts *Options) (*Result, error) {
	sep := opts.separator()
	channels, err := schema.Resolve(tree, &schema.ResolveOptions{Separator: sep})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to resolve schema: %w", logPrefix, err)
	}

	var (
		adapter *serialize.Adapter
		onErr   dispatcher.DecodeErrorFunc
	)
	if opts != nil {
		adapter = serialize.NewAdapter(opts.Serializer)
		onErr = opts.OnDecodeError
	}

	res := &Result{
		Side:          side,
		Bound:         BoundBranch{},
		Channels:      channels,
		transports:    t,
		byLeaf:        make(map[schema.Leaf]dispatcher.Binding),
		ambiguous:     make(map[schema.Leaf]bool),
		onDecodeError: onErr,
	}
	if res.onDecodeError == nil {
		res.onDecodeError = func(wire string, err error) {
			slog.Warn(fmt.Sprintf("%s - dropping message on %q: %v", logPrefix, wire, err))
		}
	}

	err = schema.Walk(tree, sep, func(path []string, wire string, leaf schema.Leaf) error {
		b, err := dispatcher.Bind(dispatcher.BindParams{
			Descriptor:    leaf.Descriptor(),
			Wire:          wire,
			Side:          side,
			Main:          t.Main,
			Renderer:      t.Renderer,
			Adapter:       adapter,
			OnDecodeError: res.onDecodeError,
		})
		if err != nil {
			return fmt.Errorf("%s - failed to bind %s: %w", logPrefix, strings.Join(path, "."), err)
		}
		res.Bound.set(path, BoundLeaf{Binding: b})
		res.index(leaf, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Bound.mirrorBranches(tree)

	slog.Debug(fmt.Sprintf("%s - Bound %d declarations for side %s", logPrefix, len(res.byLeaf), side))
	return res, nil
}

func (r *Result) index(leaf schema.Leaf, b dispatcher.Binding) {
	if prev, ok := r.byLeaf[leaf]; ok {
		if prev.Wire() != b.Wire() {
			r.ambiguous[leaf] = true
		}
		return
	}
	r.byLeaf[leaf] = b
}

func (b BoundBranch) set(path []string, leaf BoundLeaf) {
	cur := b
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(BoundBranch)
		if !ok {
			next = BoundBranch{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = leaf
}

// mirrorBranches adds the empty branches Walk never reports.
func (b BoundBranch) mirrorBranches(tree schema.Branch) {
	for key, node := range tree {
		sub, ok := node.(schema.Branch)
		if !ok {
			continue
		}
		next, ok := b[key].(BoundBranch)
		if !ok {
			next = BoundBranch{}
			b[key] = next
		}
		next.mirrorBranches(sub)
	}
}

// Lookup returns the binding at path.
func (r *Result) Lookup(path ...string) (dispatcher.Binding, error) {
	var node BoundNode = r.Bound
	for _, key := range path {
		br, ok := node.(BoundBranch)
		if !ok {
			return nil, fmt.Errorf("%s - %w: %s", logPrefix, ErrNotFound, strings.Join(path, "."))
		}
		if node, ok = br[key]; !ok {
			return nil, fmt.Errorf("%s - %w: %s", logPrefix, ErrNotFound, strings.Join(path, "."))
		}
	}
	leaf, ok := node.(BoundLeaf)
	if !ok {
		return nil, fmt.Errorf("%s - %w: %s is a branch", logPrefix, ErrNotFound, strings.Join(path, "."))
	}
	return leaf.Binding, nil
}

// BindingFor returns the binding generated for a declaration value.
func (r *Result) BindingFor(leaf schema.Leaf) (dispatcher.Binding, error) {
	if leaf == nil {
		return nil, fmt.Errorf("%s - %w: nil declaration", logPrefix, ErrNotFound)
	}
	if r.ambiguous[leaf] {
		return nil, fmt.Errorf("%s - %w", logPrefix, ErrAmbiguous)
	}
	b, ok := r.byLeaf[leaf]
	if !ok {
		return nil, fmt.Errorf("%s - %w: declaration not in schema", logPrefix, ErrNotFound)
	}
	return b, nil
}

// ClearListeners removes every listener registered on channel through this
// side's transport. On the main side the channel's responder is removed too.
// There is no form that clears every channel.
func (r *Result) ClearListeners(channel string) error {
	if channel == "" {
		return fmt.Errorf("%s - %w", logPrefix, ErrChannelRequired)
	}
	switch r.Side {
	case dispatcher.SideMain:
		if r.transports.Main == nil {
			return &dispatcher.ConfigError{Wire: channel, Side: r.Side, Reason: "no main transport"}
		}
		return errors.Join(
			r.transports.Main.RemoveAllListeners(channel),
			r.transports.Main.RemoveHandler(channel),
		)
	case dispatcher.SideRenderer:
		if r.transports.Renderer == nil {
			return &dispatcher.ConfigError{Wire: channel, Side: r.Side, Reason: "no renderer transport"}
		}
		return r.transports.Renderer.RemoveAllListeners(channel)
	}
	return &dispatcher.ConfigError{Wire: channel, Side: r.Side, Reason: "unknown side"}
}
