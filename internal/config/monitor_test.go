package config

import (
	"ConveyorVision/internal/belt"
	"strings"
	"testing"
	"time"
)

func TestNewMonitorConfigDefaults(t *testing.T) {
	cfg, err := NewMonitorConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg != belt.DefaultConfig() {
		t.Errorf("config without env differs from defaults: %+v", cfg)
	}
}

func TestNewMonitorConfigOverrides(t *testing.T) {
	t.Setenv("BELT_WIDTH_MM", "1600")
	t.Setenv("BELT_NOMINAL_SPEED_MPS", "2.5")
	t.Setenv("SPEED_WINDOW", "60")
	t.Setenv("FLOW_AXIS", "y")
	t.Setenv("FALLBACK_FRAME_INTERVAL", "40ms")

	cfg, err := NewMonitorConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BeltWidthMM != 1600 || cfg.NominalSpeedMPS != 2.5 {
		t.Errorf("belt = %v mm at %v m/s", cfg.BeltWidthMM, cfg.NominalSpeedMPS)
	}
	if cfg.SpeedWindow != 60 || cfg.FlowAxis != belt.FlowAxisY || cfg.FallbackFrameInterval != 40*time.Millisecond {
		t.Errorf("config = %+v", cfg)
	}
}

func TestNewMonitorConfigErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"not a number", "BELT_WIDTH_MM", "wide", "BELT_WIDTH_MM"},
		{"bad window", "SPEED_WINDOW", "1.5", "SPEED_WINDOW"},
		{"bad interval", "FALLBACK_FRAME_INTERVAL", "fast", "FALLBACK_FRAME_INTERVAL"},
		{"inverted ladder", "ALIGNMENT_WARNING_PCT", "15", "alignment warning threshold"},
		{"unknown axis", "FLOW_AXIS", "z", "FlowAxis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := NewMonitorConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestNewVisionBackend(t *testing.T) {
	t.Setenv("VISION_BACKEND", "")
	b, err := NewVisionBackend()
	if err != nil || b == nil {
		t.Fatalf("default backend: %v", err)
	}

	t.Setenv("VISION_BACKEND", "native")
	if b, err := NewVisionBackend(); err != nil || b.Name() != "native" {
		t.Errorf("native backend = %v, %v", b, err)
	}

	t.Setenv("VISION_BACKEND", "tensor-cores")
	if _, err := NewVisionBackend(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestValidatorUsesJSONNames(t *testing.T) {
	cfg := belt.DefaultConfig()
	cfg.BeltWidthMM = 0

	err := NewValidator().Struct(cfg)
	if err == nil || !strings.Contains(err.Error(), "belt_width_mm") {
		t.Errorf("err = %v", err)
	}
}
