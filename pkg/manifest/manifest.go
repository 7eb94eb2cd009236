// Package manifest describes a resolved schema as data so that the two
// processes can confirm they were built from compatible declarations.
package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/morezero/typed-ipc/pkg/schema"
)

const logPrefix = "manifest:manifest"

// ErrWireCollision is returned when two leaves share a wire name but disagree
// on direction or once-ness.
var ErrWireCollision = errors.New("conflicting declarations share a wire name")

// Entry describes one wire name.
type Entry struct {
	Direction schema.Direction `json:"direction"`
	Once      bool             `json:"once"`
	Path      string           `json:"path"`
}

// Manifest is the data form of a resolved schema.
type Manifest struct {
	Version   string           `json:"version"`
	Separator string           `json:"separator"`
	Channels  map[string]Entry `json:"channels"`
}

// Build describes tree. version must be a semantic version.
func Build(tree schema.Branch, version, sep string) (*Manifest, error) {
	if _, err := semver.NewVersion(version); err != nil {
		return nil, fmt.Errorf("%s - invalid schema version %q: %w", logPrefix, version, err)
	}
	if sep == "" {
		sep = schema.DefaultSeparator
	}

	m := &Manifest{Version: version, Separator: sep, Channels: make(map[string]Entry)}
	err := schema.Walk(tree, sep, func(path []string, wire string, leaf schema.Leaf) error {
		d := leaf.Descriptor()
		entry := Entry{Direction: d.Direction, Once: d.Once(), Path: strings.Join(path, ".")}
		if prev, ok := m.Channels[wire]; ok {
			if prev.Direction != entry.Direction || prev.Once != entry.Once {
				return fmt.Errorf("%s - %w: %q at %s and %s", logPrefix, ErrWireCollision, wire, prev.Path, entry.Path)
			}
			return nil
		}
		m.Channels[wire] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MismatchError lists every incompatibility found by Check.
type MismatchError struct {
	Problems []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s - incompatible schemas: %s", logPrefix, strings.Join(e.Problems, "; "))
}

// Check verifies that remote can serve local: the versions share a major, and
// every channel local declares exists remotely with the same direction and
// once-ness. Channels only remote declares are ignored. Pre-release remote
// versions never match.
func Check(local, remote *Manifest) error {
	if local == nil || remote == nil {
		return fmt.Errorf("%s - nil manifest", logPrefix)
	}
	var problems []string

	lv, err := semver.NewVersion(local.Version)
	if err != nil {
		return fmt.Errorf("%s - invalid local version %q: %w", logPrefix, local.Version, err)
	}
	rv, err := semver.NewVersion(remote.Version)
	if err != nil {
		return fmt.Errorf("%s - invalid remote version %q: %w", logPrefix, remote.Version, err)
	}
	constraint, err := semver.NewConstraint(fmt.Sprintf(">= %d.0.0, < %d.0.0", lv.Major(), lv.Major()+1))
	if err != nil {
		return fmt.Errorf("%s - build constraint: %w", logPrefix, err)
	}
	if !constraint.Check(rv) {
		problems = append(problems, fmt.Sprintf("version %s does not match major %d", rv, lv.Major()))
	}

	wires := make([]string, 0, len(local.Channels))
	for wire := range local.Channels {
		wires = append(wires, wire)
	}
	sort.Strings(wires)
	for _, wire := range wires {
		want := local.Channels[wire]
		got, ok := remote.Channels[wire]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%q missing", wire))
		case got.Direction != want.Direction:
			problems = append(problems, fmt.Sprintf("%q is %s, want %s", wire, got.Direction, want.Direction))
		case got.Once != want.Once:
			problems = append(problems, fmt.Sprintf("%q once=%v, want %v", wire, got.Once, want.Once))
		}
	}

	if len(problems) > 0 {
		return &MismatchError{Problems: problems}
	}
	return nil
}
