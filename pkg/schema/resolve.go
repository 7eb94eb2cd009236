package schema

import "sort"

// DefaultSeparator joins key paths into wire names.
const DefaultSeparator = "::"

// ResolveOptions configures Resolve. A nil value uses defaults.
type ResolveOptions struct {
	// Separator joins path segments. Empty means DefaultSeparator.
	Separator string
}

// Resolve derives the wire name of every leaf in tree. A leaf with an explicit
// name resolves to that name verbatim; any other leaf resolves to its key path
// joined by the separator. The result has the same shape as tree and depends
// only on the key paths, so resolving the same tree twice yields equal trees.
func Resolve(tree Branch, opts *ResolveOptions) (NameBranch, error) {
	sep := DefaultSeparator
	if opts != nil && opts.Separator != "" {
		sep = opts.Separator
	}

	names := NameBranch{}
	err := Walk(tree, sep, func(path []string, wire string, _ Leaf) error {
		names.set(path, wire)
		return nil
	})
	if err != nil {
		return nil, err
	}
	keepEmptyBranches(tree, names)
	return names, nil
}

// keepEmptyBranches mirrors branches without leaves as empty name branches so the
// output stays isomorphic to the input.
func keepEmptyBranches(tree Branch, names NameBranch) {
	for key, child := range tree {
		b, ok := child.(Branch)
		if !ok {
			continue
		}
		sub, ok := names[key].(NameBranch)
		if !ok {
			sub = NameBranch{}
			names[key] = sub
		}
		keepEmptyBranches(b, sub)
	}
}

func sortStrings(s []string) { sort.Strings(s) }
