package belt

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero belt width", func(c *Config) { c.BeltWidthMM = 0 }},
		{"inverted alignment", func(c *Config) { c.AlignmentWarningPct = 10; c.AlignmentCriticalPct = 5 }},
		{"speed ladder", func(c *Config) { c.SpeedWarningHighPct = 130 }},
		{"tear ladder", func(c *Config) { c.TearModerateMM = 400 }},
		{"bad axis", func(c *Config) { c.FlowAxis = "z" }},
		{"canny order", func(c *Config) { c.CannyHigh = 10 }},
		{"zero window", func(c *Config) { c.SpeedWindow = 0 }},
		{"zero interval", func(c *Config) { c.FallbackFrameInterval = 0 * time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
