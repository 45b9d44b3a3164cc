package belt

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type FlowAxis string

const (
	FlowAxisX FlowAxis = "x"
	FlowAxisY FlowAxis = "y"
)

// Config is the per-Monitor tuning surface. Lengths are millimetres and
// speeds metres per second unless the field name says otherwise.
type Config struct {
	BeltWidthMM     float64 `json:"belt_width_mm" validate:"gt=0"`
	NominalSpeedMPS float64 `json:"nominal_speed_mps" validate:"gt=0"`

	AlignmentWarningPct  float64 `json:"alignment_warning_pct" validate:"gt=0"`
	AlignmentCriticalPct float64 `json:"alignment_critical_pct" validate:"gt=0"`
	DirectionDeadZonePx  float64 `json:"direction_dead_zone_px" validate:"gte=0"`

	SpeedCriticalLowPct   float64       `json:"speed_critical_low_pct" validate:"gte=0"`
	SpeedWarningLowPct    float64       `json:"speed_warning_low_pct" validate:"gt=0"`
	SpeedWarningHighPct   float64       `json:"speed_warning_high_pct" validate:"gt=0"`
	SpeedCriticalHighPct  float64       `json:"speed_critical_high_pct" validate:"gt=0"`
	SpeedWindow           int           `json:"speed_window" validate:"gte=1,lte=1000"`
	FlowNoisePx           float64       `json:"flow_noise_px" validate:"gte=0"`
	FlowAxis              FlowAxis      `json:"flow_axis" validate:"oneof=x y"`
	MovingThresholdMPS    float64       `json:"moving_threshold_mps" validate:"gte=0"`
	FallbackFrameInterval time.Duration `json:"fallback_frame_interval" validate:"gt=0"`

	EdgeSlopeThreshold float64 `json:"edge_slope_threshold" validate:"gt=0"`
	EdgeDeadZonePx     float64 `json:"edge_dead_zone_px" validate:"gte=0"`
	HoughThreshold     int     `json:"hough_threshold" validate:"gte=1"`
	HoughMaxLineGap    int     `json:"hough_max_line_gap" validate:"gte=0"`
	CannyLow           float64 `json:"canny_low" validate:"gte=0"`
	CannyHigh          float64 `json:"canny_high" validate:"gtfield=CannyLow"`

	TearMinLengthMM          float64 `json:"tear_min_length_mm" validate:"gte=0"`
	TearMinWidthMM           float64 `json:"tear_min_width_mm" validate:"gte=0"`
	TearMinorMM              float64 `json:"tear_minor_mm" validate:"gt=0"`
	TearModerateMM           float64 `json:"tear_moderate_mm" validate:"gt=0"`
	TearCriticalMM           float64 `json:"tear_critical_mm" validate:"gt=0"`
	TearMinAreaPx            float64 `json:"tear_min_area_px" validate:"gte=0"`
	TearIntensityDelta       float64 `json:"tear_intensity_delta" validate:"gte=0"`
	TearEdgeDensity          float64 `json:"tear_edge_density" validate:"gte=0,lte=1"`
	TearFallbackMMPerPx      float64 `json:"tear_fallback_mm_per_px" validate:"gt=0"`
	CauseStripPx             int     `json:"cause_strip_px" validate:"gte=1"`
	ObstructionMinConfidence float64 `json:"obstruction_min_confidence" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		BeltWidthMM:     1200,
		NominalSpeedMPS: 1.5,

		AlignmentWarningPct:  5,
		AlignmentCriticalPct: 10,
		DirectionDeadZonePx:  5,

		SpeedCriticalLowPct:   50,
		SpeedWarningLowPct:    80,
		SpeedWarningHighPct:   110,
		SpeedCriticalHighPct:  120,
		SpeedWindow:           30,
		FlowNoisePx:           0.5,
		FlowAxis:              FlowAxisX,
		MovingThresholdMPS:    0.05,
		FallbackFrameInterval: time.Second / 30,

		EdgeSlopeThreshold: 2,
		EdgeDeadZonePx:     50,
		HoughThreshold:     100,
		HoughMaxLineGap:    50,
		CannyLow:           50,
		CannyHigh:          150,

		TearMinLengthMM:          10,
		TearMinWidthMM:           2,
		TearMinorMM:              50,
		TearModerateMM:           150,
		TearCriticalMM:           300,
		TearMinAreaPx:            50,
		TearIntensityDelta:       20,
		TearEdgeDensity:          0.3,
		TearFallbackMMPerPx:      0.5,
		CauseStripPx:             50,
		ObstructionMinConfidence: 0.5,
	}
}

var validate = validator.New()

// Validate checks field ranges and that every threshold ladder is strictly
// increasing.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("belt config: %w", err)
	}

	var errs []error
	if c.AlignmentWarningPct >= c.AlignmentCriticalPct {
		errs = append(errs, errors.New("alignment warning threshold must be below critical"))
	}
	if !(c.SpeedCriticalLowPct < c.SpeedWarningLowPct &&
		c.SpeedWarningLowPct < c.SpeedWarningHighPct &&
		c.SpeedWarningHighPct < c.SpeedCriticalHighPct) {
		errs = append(errs, errors.New("speed thresholds must increase: critical-low < warning-low < warning-high < critical-high"))
	}
	if !(c.TearMinorMM < c.TearModerateMM && c.TearModerateMM < c.TearCriticalMM) {
		errs = append(errs, errors.New("tear thresholds must increase: minor < moderate < critical"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("belt config: %w", errors.Join(errs...))
	}
	return nil
}
