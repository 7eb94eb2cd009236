package schema

import "strings"

// NameNode is a node of a resolved wire-name tree: NameBranch or NameLeaf.
type NameNode interface {
	nameNode()
}

// NameLeaf is the resolved wire name of one channel.
type NameLeaf string

func (NameLeaf) nameNode() {}

// NameBranch mirrors a schema Branch with every leaf replaced by its wire name.
// It marshals to JSON as a nested object of strings.
type NameBranch map[string]NameNode

func (NameBranch) nameNode() {}

// Lookup returns the wire name at path.
func (b NameBranch) Lookup(path ...string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	var cur NameNode = b
	for _, key := range path {
		branch, ok := cur.(NameBranch)
		if !ok {
			return "", false
		}
		if cur, ok = branch[key]; !ok {
			return "", false
		}
	}
	leaf, ok := cur.(NameLeaf)
	return string(leaf), ok
}

// Flatten returns every wire name keyed by its dot-joined key path.
func (b NameBranch) Flatten() map[string]string {
	out := make(map[string]string)
	flatten(b, "", out)
	return out
}

func flatten(b NameBranch, prefix string, out map[string]string) {
	for key, child := range b {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch c := child.(type) {
		case NameLeaf:
			out[path] = string(c)
		case NameBranch:
			flatten(c, path, out)
		}
	}
}

// set places wire at path, creating intermediate branches.
func (b NameBranch) set(path []string, wire string) {
	cur := b
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(NameBranch)
		if !ok {
			next = NameBranch{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = NameLeaf(wire)
}

// String renders the flattened names one per line, sorted by path.
func (b NameBranch) String() string {
	flat := b.Flatten()
	lines := make([]string, 0, len(flat))
	for path, wire := range flat {
		lines = append(lines, path+" = "+wire)
	}
	sortStrings(lines)
	return strings.Join(lines, "\n")
}
