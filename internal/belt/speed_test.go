package belt

import (
	"errors"
	"testing"
	"time"

	"ConveyorVision/pkg/vision"
)

// calibrated returns a calibration of exactly 1 px/mm, i.e. 1000 px/m.
func calibrated(cfg Config) *Calibration {
	cal := NewCalibration(cfg.BeltWidthMM, cfg.NominalSpeedMPS)
	cal.Observe(cfg.BeltWidthMM)
	return cal
}

func TestSpeedFirstFrameIsInsufficient(t *testing.T) {
	cfg := DefaultConfig()
	fb := &fakeBackend{flow: constantFlow(150, 16)}
	est := NewSpeedEstimator(fb, cfg)

	r, err := est.Estimate(uniformGray(64, 48, 100), time.Unix(0, 0), calibrated(cfg))
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
	if !r.InsufficientData || r.IsMoving {
		t.Errorf("reading = %+v, want insufficient and not moving", r)
	}
	if r.Failure != FailureInsufficientHistory {
		t.Errorf("failure = %q", r.Failure)
	}
	if fb.flowCalls != 0 {
		t.Errorf("flow computed %d times on first frame", fb.flowCalls)
	}
}

func TestSpeedWithoutCalibration(t *testing.T) {
	cfg := DefaultConfig()
	est := NewSpeedEstimator(&fakeBackend{flow: constantFlow(150, 16)}, cfg)
	cal := NewCalibration(cfg.BeltWidthMM, cfg.NominalSpeedMPS)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	r, err := est.Estimate(uniformGray(64, 48, 100), t0.Add(100*time.Millisecond), cal)
	if !errors.Is(err, ErrCalibrationUnavailable) {
		t.Fatalf("err = %v, want ErrCalibrationUnavailable", err)
	}
	if !r.InsufficientData || r.Failure != FailureCalibrationUnavailable {
		t.Errorf("reading = %+v", r)
	}
	if est.History().Len() != 0 {
		t.Errorf("history len = %d, want 0", est.History().Len())
	}
}

func TestSpeedAtNominal(t *testing.T) {
	cfg := DefaultConfig()
	est := NewSpeedEstimator(&fakeBackend{flow: constantFlow(150, 16)}, cfg)
	cal := calibrated(cfg)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	r, err := est.Estimate(uniformGray(64, 48, 100), t0.Add(100*time.Millisecond), cal)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	approx(t, "speed", r.CurrentMPS, 1.5, 1e-6)
	approx(t, "percent", r.PercentOfNominal, 100, 1e-4)
	if !r.IsMoving || !r.IsAtNominal {
		t.Errorf("moving=%v nominal=%v, want both", r.IsMoving, r.IsAtNominal)
	}
	if r.Direction != TravelForward {
		t.Errorf("direction = %s, want forward", r.Direction)
	}
	if r.Severity != SeverityNormal {
		t.Errorf("severity = %s", r.Severity)
	}
	approx(t, "confidence", r.Confidence, 1, 1e-9)
	if r.Samples != 1 {
		t.Errorf("samples = %d", r.Samples)
	}
}

func TestSpeedReverseAndStopped(t *testing.T) {
	cfg := DefaultConfig()
	fb := &fakeBackend{flow: constantFlow(-150, 16)}
	est := NewSpeedEstimator(fb, cfg)
	cal := calibrated(cfg)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	r, _ := est.Estimate(uniformGray(64, 48, 100), t0.Add(100*time.Millisecond), cal)
	if r.Direction != TravelReverse {
		t.Errorf("direction = %s, want reverse", r.Direction)
	}
	approx(t, "speed", r.CurrentMPS, 1.5, 1e-6)
	approx(t, "average", r.AverageMPS, 1.5, 1e-6)

	// all samples under the noise threshold
	fb.flow = constantFlow(0.2, 16)
	r, _ = est.Estimate(uniformGray(64, 48, 100), t0.Add(200*time.Millisecond), cal)
	if r.IsMoving || r.Direction != TravelStopped {
		t.Errorf("moving=%v direction=%s, want stopped", r.IsMoving, r.Direction)
	}
	if r.Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical at 0%%", r.Severity)
	}
}

func TestSpeedFallbackInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackFrameInterval = 100 * time.Millisecond
	est := NewSpeedEstimator(&fakeBackend{flow: constantFlow(150, 16)}, cfg)
	cal := calibrated(cfg)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	r, err := est.Estimate(uniformGray(64, 48, 100), t0, cal)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	approx(t, "speed", r.CurrentMPS, 1.5, 1e-6)
}

func TestSpeedFrameSizeChange(t *testing.T) {
	cfg := DefaultConfig()
	est := NewSpeedEstimator(&fakeBackend{flow: constantFlow(150, 16)}, cfg)
	cal := calibrated(cfg)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	_, err := est.Estimate(uniformGray(32, 24, 100), t0.Add(time.Second), cal)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestSpeedFlowFailure(t *testing.T) {
	cfg := DefaultConfig()
	est := NewSpeedEstimator(&fakeBackend{flowErr: vision.ErrSizeMismatch}, cfg)
	cal := calibrated(cfg)

	t0 := time.Unix(0, 0)
	est.Estimate(uniformGray(64, 48, 100), t0, cal)
	r, err := est.Estimate(uniformGray(64, 48, 100), t0.Add(time.Second), cal)

	var fpe *FrameProcessingError
	if !errors.As(err, &fpe) {
		t.Fatalf("err = %v, want FrameProcessingError", err)
	}
	if r.Severity != SeverityCritical || r.Failure != FailureFrameProcessing {
		t.Errorf("reading = %+v", r)
	}
}

func TestSpeedSeverity(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		pct  float64
		want Severity
	}{
		{0, SeverityCritical},
		{49.9, SeverityCritical},
		{50, SeverityWarning},
		{79.9, SeverityWarning},
		{80, SeverityNormal},
		{100, SeverityNormal},
		{110, SeverityNormal},
		{110.1, SeverityWarning},
		{120, SeverityWarning},
		{120.1, SeverityCritical},
	}
	for _, tt := range tests {
		if got := SpeedSeverity(tt.pct, cfg); got != tt.want {
			t.Errorf("SpeedSeverity(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestMeanFlow(t *testing.T) {
	f := &vision.Flow{
		Cols: 4, Rows: 1, Step: 8,
		DX: []float32{0.2, -0.3, 2, 4},
		DY: []float32{1, 1, 1, 1},
	}
	approx(t, "x", MeanFlow(f, FlowAxisX, 0.5), 3, 1e-9)
	approx(t, "y", MeanFlow(f, FlowAxisY, 0.5), 1, 1e-9)
	approx(t, "all noise", MeanFlow(f, FlowAxisX, 10), 0, 0)
	approx(t, "empty", MeanFlow(&vision.Flow{}, FlowAxisX, 0.5), 0, 0)
}
