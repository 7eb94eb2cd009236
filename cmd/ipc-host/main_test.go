package main

import (
	"encoding/json"
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/ipc-host:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "broker", "channels", "manifest", "call", "COMMS_URL", "IPC_SERIALIZER"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestParseOperands(t *testing.T) {
	a, b, err := parseOperands("2", "3")
	if err != nil || a != 2 || b != 3 {
		t.Errorf("%s - parseOperands = %d, %d, %v", mainTestPrefix, a, b, err)
	}
	if _, _, err := parseOperands("two", "3"); err == nil {
		t.Errorf("%s - expected error for non-integer operand", mainTestPrefix)
	}
}

func TestChannelsJSON_NestedWireNames(t *testing.T) {
	tests := []struct {
		sep     string
		wantAdd string
	}{
		{"::", "math::add"},
		{".", "math.add"},
	}
	for _, tt := range tests {
		data, err := channelsJSON(tt.sep)
		if err != nil {
			t.Fatalf("%s - channelsJSON(%q): %v", mainTestPrefix, tt.sep, err)
		}
		var tree map[string]map[string]string
		if err := json.Unmarshal(data, &tree); err != nil {
			t.Fatalf("%s - output is not a nested JSON object: %v\n%s", mainTestPrefix, err, data)
		}
		if got := tree["math"]["add"]; got != tt.wantAdd {
			t.Errorf("%s - math.add = %q, want %q", mainTestPrefix, got, tt.wantAdd)
		}
		if got := tree["app"]["shutdown"]; got != "shutdown" {
			t.Errorf("%s - app.shutdown = %q, want shutdown", mainTestPrefix, got)
		}
	}
}
