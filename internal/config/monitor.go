package config

import (
	"ConveyorVision/internal/belt"
	"ConveyorVision/pkg/vision"
	"fmt"
	"os"
	"strconv"
	"time"
)

// NewMonitorConfig starts from the built-in belt defaults and applies any
// overrides found in the environment.
func NewMonitorConfig() (belt.Config, error) {
	cfg := belt.DefaultConfig()

	floats := []struct {
		key string
		dst *float64
	}{
		{"BELT_WIDTH_MM", &cfg.BeltWidthMM},
		{"BELT_NOMINAL_SPEED_MPS", &cfg.NominalSpeedMPS},
		{"ALIGNMENT_WARNING_PCT", &cfg.AlignmentWarningPct},
		{"ALIGNMENT_CRITICAL_PCT", &cfg.AlignmentCriticalPct},
		{"SPEED_CRITICAL_LOW_PCT", &cfg.SpeedCriticalLowPct},
		{"SPEED_WARNING_LOW_PCT", &cfg.SpeedWarningLowPct},
		{"SPEED_WARNING_HIGH_PCT", &cfg.SpeedWarningHighPct},
		{"SPEED_CRITICAL_HIGH_PCT", &cfg.SpeedCriticalHighPct},
		{"FLOW_NOISE_PX", &cfg.FlowNoisePx},
		{"EDGE_SLOPE_THRESHOLD", &cfg.EdgeSlopeThreshold},
		{"EDGE_DEAD_ZONE_PX", &cfg.EdgeDeadZonePx},
		{"TEAR_MIN_LENGTH_MM", &cfg.TearMinLengthMM},
		{"TEAR_MIN_WIDTH_MM", &cfg.TearMinWidthMM},
		{"TEAR_MINOR_MM", &cfg.TearMinorMM},
		{"TEAR_MODERATE_MM", &cfg.TearModerateMM},
		{"TEAR_CRITICAL_MM", &cfg.TearCriticalMM},
		{"TEAR_FALLBACK_MM_PER_PX", &cfg.TearFallbackMMPerPx},
		{"OBSTRUCTION_MIN_CONFIDENCE", &cfg.ObstructionMinConfidence},
	}
	for _, f := range floats {
		raw := os.Getenv(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}

	if raw := os.Getenv("SPEED_WINDOW"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("SPEED_WINDOW: %w", err)
		}
		cfg.SpeedWindow = v
	}

	if raw := os.Getenv("FLOW_AXIS"); raw != "" {
		cfg.FlowAxis = belt.FlowAxis(raw)
	}

	if raw := os.Getenv("FALLBACK_FRAME_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("FALLBACK_FRAME_INTERVAL: %w", err)
		}
		cfg.FallbackFrameInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewVisionBackend picks the image kernels named by VISION_BACKEND
// ("native" by default, "gocv" when built with the gocv tag).
func NewVisionBackend() (vision.Backend, error) {
	name := os.Getenv("VISION_BACKEND")
	if name == "" {
		return vision.Default(), nil
	}
	return vision.ByName(name)
}
