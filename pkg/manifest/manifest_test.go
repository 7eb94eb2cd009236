package manifest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/morezero/typed-ipc/pkg/schema"
)

const manifestTestPrefix = "manifest:manifest_test"

func tree() schema.Branch {
	return schema.Branch{
		"math": schema.Branch{"add": schema.Request[[]int, int]()},
		"app": schema.Branch{
			"setup": schema.RequestOnce[string, bool](),
			"log":   schema.SignalToMain[string](schema.WithName("app.log")),
		},
		"clock": schema.Branch{"tick": schema.SignalToRenderer[int64]()},
	}
}

func mustBuild(t *testing.T, tr schema.Branch, version string) *Manifest {
	t.Helper()
	m, err := Build(tr, version, "")
	if err != nil {
		t.Fatalf("%s - Build: %v", manifestTestPrefix, err)
	}
	return m
}

func TestBuild(t *testing.T) {
	m := mustBuild(t, tree(), "1.2.0")
	if m.Separator != "::" {
		t.Errorf("%s - Separator = %q", manifestTestPrefix, m.Separator)
	}
	tests := []struct {
		wire string
		want Entry
	}{
		{"math::add", Entry{Direction: schema.RendererToMainRequest, Path: "math.add"}},
		{"app::setup", Entry{Direction: schema.RendererToMainRequest, Once: true, Path: "app.setup"}},
		{"app.log", Entry{Direction: schema.RendererToMainSignal, Path: "app.log"}},
		{"clock::tick", Entry{Direction: schema.MainToRendererSignal, Path: "clock.tick"}},
	}
	for _, tt := range tests {
		if got := m.Channels[tt.wire]; got != tt.want {
			t.Errorf("%s - Channels[%q] = %+v, want %+v", manifestTestPrefix, tt.wire, got, tt.want)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(tree(), "not-a-version", ""); err == nil {
		t.Error("manifest:manifest_test - expected error for invalid version")
	}
	collide := schema.Branch{
		"a": schema.Request[int, int](schema.WithName("x")),
		"b": schema.SignalToMain[int](schema.WithName("x")),
	}
	if _, err := Build(collide, "1.0.0", ""); !errors.Is(err, ErrWireCollision) {
		t.Errorf("%s - err = %v, want ErrWireCollision", manifestTestPrefix, err)
	}
	alias := schema.Branch{
		"a": schema.SignalToMain[int](schema.WithName("x")),
		"b": schema.SignalToMain[string](schema.WithName("x")),
	}
	if _, err := Build(alias, "1.0.0", ""); err != nil {
		t.Errorf("%s - same-shape alias should be accepted: %v", manifestTestPrefix, err)
	}
}

func TestCheck(t *testing.T) {
	local := mustBuild(t, tree(), "1.2.0")

	extra := tree()
	extra["more"] = schema.SignalToMain[int]()

	changed := tree()
	changed["math"] = schema.Branch{"add": schema.SignalToMain[int]()}

	missing := tree()
	delete(missing, "clock")

	tests := []struct {
		name    string
		remote  *Manifest
		wantErr string
	}{
		{"identical", mustBuild(t, tree(), "1.2.0"), ""},
		{"newer minor", mustBuild(t, tree(), "1.9.3"), ""},
		{"older minor same major", mustBuild(t, tree(), "1.0.0"), ""},
		{"remote has extra channels", mustBuild(t, extra, "1.2.0"), ""},
		{"major mismatch", mustBuild(t, tree(), "2.0.0"), "does not match major 1"},
		{"direction mismatch", mustBuild(t, changed, "1.2.0"), `"math::add" is renderer-to-main-signal`},
		{"missing channel", mustBuild(t, missing, "1.2.0"), `"clock::tick" missing`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(local, tt.remote)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("%s - unexpected error: %v", manifestTestPrefix, err)
				}
				return
			}
			var mm *MismatchError
			if !errors.As(err, &mm) {
				t.Fatalf("%s - err = %v, want *MismatchError", manifestTestPrefix, err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s - err = %q, want substring %q", manifestTestPrefix, err, tt.wantErr)
			}
		})
	}
}

func TestManifest_JSON(t *testing.T) {
	m := mustBuild(t, schema.Branch{"ping": schema.Request[string, string]()}, "1.0.0")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("%s - marshal: %v", manifestTestPrefix, err)
	}
	want := `{"version":"1.0.0","separator":"::","channels":{"ping":{"direction":"renderer-to-main-request","once":false,"path":"ping"}}}`
	if string(data) != want {
		t.Errorf("%s - JSON = %s\nwant %s", manifestTestPrefix, data, want)
	}
	var back Manifest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("%s - unmarshal: %v", manifestTestPrefix, err)
	}
	if err := Check(m, &back); err != nil {
		t.Errorf("%s - decoded manifest incompatible: %v", manifestTestPrefix, err)
	}
}
