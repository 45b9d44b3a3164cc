package belt

import (
	"math"
	"time"

	"ConveyorVision/pkg/vision"
)

const (
	nominalBandLow  = 95
	nominalBandHigh = 105
)

// SpeedEstimator derives belt speed from optical flow between consecutive
// frames. It keeps the previous grayscale frame and a bounded history.
type SpeedEstimator struct {
	backend vision.Backend
	cfg     Config
	history *History
	prev    *vision.Gray
	prevAt  time.Time
}

func NewSpeedEstimator(backend vision.Backend, cfg Config) *SpeedEstimator {
	return &SpeedEstimator{
		backend: backend,
		cfg:     cfg,
		history: NewHistory(cfg.SpeedWindow),
	}
}

func (s *SpeedEstimator) History() *History {
	return s.history
}

func (s *SpeedEstimator) Reset() {
	s.prev = nil
	s.prevAt = time.Time{}
	s.history.Clear()
}

func (s *SpeedEstimator) remember(g *vision.Gray, at time.Time) {
	s.prev = g
	s.prevAt = at
}

// Estimate measures speed for the frame g captured at the given time.
func (s *SpeedEstimator) Estimate(g *vision.Gray, at time.Time, cal *Calibration) (SpeedReading, error) {
	prev, prevAt := s.prev, s.prevAt
	s.remember(g, at)

	if prev == nil || prev.Width != g.Width || prev.Height != g.Height {
		return s.insufficient(ErrInsufficientHistory), ErrInsufficientHistory
	}

	pxPerMetre, err := cal.PixelsPerMetre()
	if err != nil {
		return s.insufficient(err), err
	}

	flow, err := s.backend.DenseFlow(prev, g)
	if err != nil {
		err = &FrameProcessingError{Component: "speed", Err: err}
		return degradedSpeed(s.history.Len(), err), err
	}

	displacement := MeanFlow(flow, s.cfg.FlowAxis, s.cfg.FlowNoisePx)

	elapsed := at.Sub(prevAt)
	if elapsed <= 0 {
		elapsed = s.cfg.FallbackFrameInterval
	}
	speed := displacement / elapsed.Seconds() / pxPerMetre

	s.history.Push(speed)
	return s.reading(speed), nil
}

func (s *SpeedEstimator) reading(speed float64) SpeedReading {
	avg := s.history.Mean()
	variation := 0.0
	if avg != 0 {
		variation = s.history.StdDev() / math.Abs(avg) * 100
	}

	pct := speed / s.cfg.NominalSpeedMPS * 100
	moving := math.Abs(speed) > s.cfg.MovingThresholdMPS

	direction := TravelStopped
	if moving {
		direction = TravelForward
		if speed < 0 {
			direction = TravelReverse
		}
	}

	return SpeedReading{
		CurrentMPS:       math.Abs(speed),
		AverageMPS:       math.Abs(avg),
		PercentOfNominal: pct,
		VariationPct:     variation,
		IsMoving:         moving,
		IsAtNominal:      pct >= nominalBandLow && pct <= nominalBandHigh,
		Direction:        direction,
		Severity:         SpeedSeverity(pct, s.cfg),
		Confidence:       math.Max(0, 1-variation/50),
		Samples:          s.history.Len(),
	}
}

func (s *SpeedEstimator) insufficient(cause error) SpeedReading {
	return SpeedReading{
		Direction:        TravelUnknown,
		Severity:         SeverityWarning,
		Samples:          s.history.Len(),
		InsufficientData: true,
		Failure:          failureName(cause),
	}
}

func degradedSpeed(samples int, cause error) SpeedReading {
	return SpeedReading{
		Direction: TravelUnknown,
		Severity:  SeverityCritical,
		Samples:   samples,
		Failure:   failureName(cause),
	}
}

// SpeedSeverity applies the four percentage thresholds around nominal.
func SpeedSeverity(pct float64, cfg Config) Severity {
	switch {
	case pct < cfg.SpeedCriticalLowPct || pct > cfg.SpeedCriticalHighPct:
		return SeverityCritical
	case pct < cfg.SpeedWarningLowPct || pct > cfg.SpeedWarningHighPct:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// MeanFlow averages one flow component over the samples whose magnitude
// exceeds the noise threshold. No sample above the threshold means zero.
func MeanFlow(f *vision.Flow, axis FlowAxis, noise float64) float64 {
	if f.Len() == 0 {
		return 0
	}

	component := f.DX
	if axis == FlowAxisY {
		component = f.DY
	}

	var sum float64
	var n int
	for _, v := range component {
		if math.Abs(float64(v)) > noise {
			sum += float64(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
