package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTree is returned for trees containing nil nodes or empty keys.
var ErrInvalidTree = errors.New("invalid schema tree")

// Node is either a Branch or a Leaf. The set of implementations is closed.
type Node interface {
	node()
}

// Leaf is a channel declaration placed in a tree.
type Leaf interface {
	Node
	Descriptor() Descriptor
}

// Branch namespaces its children. It contributes only path segments.
type Branch map[string]Node

func (Branch) node() {}

// A bare Descriptor is a valid, untyped leaf.
func (Descriptor) node() {}

// Descriptor returns d itself so that a bare Descriptor satisfies Leaf.
func (d Descriptor) Descriptor() Descriptor { return d }

// Visitor is called once per leaf with its key path and resolved wire name.
type Visitor func(path []string, wire string, leaf Leaf) error

// Walk visits every leaf of tree depth-first in sorted key order. A non-nil
// error from fn stops the walk and is returned unchanged.
func Walk(tree Branch, sep string, fn Visitor) error {
	if sep == "" {
		sep = DefaultSeparator
	}
	return walk(tree, nil, sep, fn)
}

func walk(b Branch, path []string, sep string, fn Visitor) error {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("%s - %w: empty key under %q", treeLogPrefix, ErrInvalidTree, strings.Join(path, sep))
		}
		childPath := append(path[:len(path):len(path)], key)

		switch child := b[key].(type) {
		case Branch:
			if err := walk(child, childPath, sep, fn); err != nil {
				return err
			}
		case Leaf:
			if isNilLeaf(child) {
				return fmt.Errorf("%s - %w: nil declaration at %q", treeLogPrefix, ErrInvalidTree, strings.Join(childPath, sep))
			}
			if err := fn(childPath, wireName(childPath, sep, child.Descriptor()), child); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s - %w: nil node at %q", treeLogPrefix, ErrInvalidTree, strings.Join(childPath, sep))
		}
	}
	return nil
}

const treeLogPrefix = "schema:tree"

func wireName(path []string, sep string, d Descriptor) string {
	if d.Name != "" {
		return d.Name
	}
	return strings.Join(path, sep)
}

// isNilLeaf catches typed nil pointers such as (*RequestDecl[P, R])(nil).
func isNilLeaf(l Leaf) bool {
	switch v := l.(type) {
	case interface{ isNil() bool }:
		return v.isNil()
	default:
		return false
	}
}

func (d *RequestDecl[P, R]) isNil() bool { return d == nil }
func (d *SignalDecl[P]) isNil() bool     { return d == nil }
func (d *PushDecl[P]) isNil() bool       { return d == nil }
