package schema

import (
	"errors"
	"testing"
)

func TestConstructors_Pairings(t *testing.T) {
	tests := []struct {
		name     string
		leaf     Leaf
		dir      Direction
		renderer RendererOp
		main     MainOp
		once     bool
	}{
		{"request", Request[int, int](), RendererToMainRequest, RendererInvoke, MainHandle, false},
		{"requestOnce", RequestOnce[int, int](), RendererToMainRequest, RendererInvoke, MainHandleOnce, true},
		{"signalToMain", SignalToMain[int](), RendererToMainSignal, RendererSend, MainOn, false},
		{"signalToMainOnce", SignalToMainOnce[int](), RendererToMainSignal, RendererSend, MainOnce, true},
		{"signalToRenderer", SignalToRenderer[int](), MainToRendererSignal, RendererOn, MainSendTo, false},
		{"signalToRendererOnce", SignalToRendererOnce[int](), MainToRendererSignal, RendererOnce, MainSendTo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.leaf.Descriptor()
			if d.Direction != tt.dir || d.Renderer != tt.renderer || d.Main != tt.main {
				t.Errorf("schema:descriptor_test - got %s/%s/%s, want %s/%s/%s",
					d.Direction, d.Renderer, d.Main, tt.dir, tt.renderer, tt.main)
			}
			if d.Once() != tt.once {
				t.Errorf("schema:descriptor_test - Once() = %v, want %v", d.Once(), tt.once)
			}
			if d.Name != "" {
				t.Errorf("schema:descriptor_test - Name = %q, want empty", d.Name)
			}
			if err := d.Validate(); err != nil {
				t.Errorf("schema:descriptor_test - Validate() = %v", err)
			}
		})
	}
}

func TestDescriptor_ValidateRejectsForeignPairings(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
	}{
		{"zero value", Descriptor{}},
		{"request with send", Descriptor{Direction: RendererToMainRequest, Renderer: RendererSend, Main: MainHandle}},
		{"push with handle", Descriptor{Direction: MainToRendererSignal, Renderer: RendererOn, Main: MainHandle}},
		{"unknown direction", Descriptor{Direction: Direction(42), Renderer: RendererInvoke, Main: MainHandle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.d.Validate(); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("schema:descriptor_test - Validate() = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestWithName(t *testing.T) {
	d := SignalToRendererOnce[string](WithName("clock::tick")).Descriptor()
	if d.Name != "clock::tick" {
		t.Errorf("schema:descriptor_test - Name = %q, want clock::tick", d.Name)
	}
}

func TestDirection_TextRoundTrip(t *testing.T) {
	for _, d := range []Direction{RendererToMainRequest, RendererToMainSignal, MainToRendererSignal} {
		text, err := d.MarshalText()
		if err != nil {
			t.Fatalf("schema:descriptor_test - MarshalText: %v", err)
		}
		var back Direction
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("schema:descriptor_test - UnmarshalText(%s): %v", text, err)
		}
		if back != d {
			t.Errorf("schema:descriptor_test - round trip %s -> %s", d, back)
		}
	}
	var d Direction
	if err := d.UnmarshalText([]byte("sideways")); err == nil {
		t.Error("schema:descriptor_test - expected error for unknown direction")
	}
}
