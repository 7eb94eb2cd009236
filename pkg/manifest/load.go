package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

const loadLogPrefix = "manifest:load"

// ErrNoManifest is returned by Load when no path holds a readable manifest.
var ErrNoManifest = errors.New("no manifest file found")

// Load reads the first readable manifest among paths. Missing files are
// skipped; files that do not parse are logged and skipped.
func Load(paths ...string) (*Manifest, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse manifest file %s: %v", loadLogPrefix, p, err))
			continue
		}
		slog.Info(fmt.Sprintf("%s - Loaded manifest %s from %s", loadLogPrefix, m.Version, p))
		return &m, nil
	}
	return nil, fmt.Errorf("%s - %w", loadLogPrefix, ErrNoManifest)
}

// WriteFile stores m as indented JSON at path.
func WriteFile(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%s - failed to encode manifest: %w", loadLogPrefix, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%s - failed to write %s: %w", loadLogPrefix, path, err)
	}
	return nil
}
