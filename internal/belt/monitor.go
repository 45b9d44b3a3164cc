package belt

import (
	"errors"
	"image"
	"time"

	"ConveyorVision/pkg/vision"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Monitor owns all per-camera state: calibration, the previous frame and
// speed history, and the tear baseline. A Monitor must only be fed frames
// from one stream, in order, from one goroutine at a time.
type Monitor struct {
	id          string
	cfg         Config
	backend     vision.Backend
	log         logrus.FieldLogger
	now         func() time.Time
	calibration *Calibration
	edges       *EdgeExtractor
	speed       *SpeedEstimator
	tear        *TearDetector
	frames      uint64
}

type Option func(*Monitor)

func WithBackend(b vision.Backend) Option {
	return func(m *Monitor) {
		m.backend = b
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func NewMonitor(cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		id:  uuid.NewString(),
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.backend == nil {
		m.backend = vision.Default()
	}
	if m.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		m.log = l
	}
	m.log = m.log.WithField("monitor_id", m.id)

	m.calibration = NewCalibration(cfg.BeltWidthMM, cfg.NominalSpeedMPS)
	m.edges = NewEdgeExtractor(m.backend, cfg)
	m.speed = NewSpeedEstimator(m.backend, cfg)
	m.tear = NewTearDetector(m.backend, cfg)

	return m, nil
}

func (m *Monitor) ID() string {
	return m.id
}

func (m *Monitor) Config() Config {
	return m.cfg
}

func (m *Monitor) Calibration() *Calibration {
	return m.calibration
}

func (m *Monitor) Baseline() *TextureBaseline {
	return m.tear.Baseline()
}

func (m *Monitor) Frames() uint64 {
	return m.frames
}

func (m *Monitor) grayscale(frame *Frame) (*vision.Gray, error) {
	if frame == nil || frame.Image == nil {
		return nil, ErrNilFrame
	}
	if frame.Image.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	var gray *vision.Gray
	err := guard("grayscale", func() error {
		var err error
		gray, err = m.backend.Grayscale(frame.Image)
		return err
	})
	if err != nil {
		return nil, err
	}
	if gray.Empty() {
		return nil, ErrEmptyFrame
	}
	return gray, nil
}

// Analyze runs one frame through every component. The only errors are
// precondition failures on the frame itself; anything that goes wrong
// inside a component yields a degraded reading instead.
func (m *Monitor) Analyze(frame *Frame) (*Result, error) {
	if frame == nil || frame.Image == nil {
		return nil, ErrNilFrame
	}
	if frame.Image.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = m.now()
	}

	gray, err := m.grayscale(frame)
	if errors.Is(err, ErrEmptyFrame) {
		return nil, err
	}

	m.frames++
	res := &Result{FrameIndex: m.frames, Timestamp: at}

	if err != nil {
		m.log.WithError(err).Error("grayscale conversion failed")
		res.Alignment = degradedAlignment(err)
		res.Speed = degradedSpeed(m.speed.History().Len(), err)
		res.Tear = degradedTear(err)
		res.Obstruction = DetectObstruction(frame.Objects, m.cfg.ObstructionMinConfidence)
		res.Alert = Aggregate(res.Alignment, res.Speed, m.calibration.IsSet())
		res.Calibrated = m.calibration.IsSet()
		return res, nil
	}

	edgesKnown := m.calibration.IsSet()

	res.Alignment = m.analyzeAlignment(gray)
	res.Speed = m.analyzeSpeed(gray, at)
	res.Tear = m.analyzeTear(gray, at)
	res.Obstruction = DetectObstruction(frame.Objects, m.cfg.ObstructionMinConfidence)
	res.Alert = Aggregate(res.Alignment, res.Speed, edgesKnown)
	res.Calibrated = m.calibration.IsSet()

	if !edgesKnown && res.Calibrated {
		ppm, _ := m.calibration.PixelsPerMM()
		m.log.WithFields(logrus.Fields{
			"pixels_per_mm": ppm,
			"frame":         m.frames,
		}).Info("belt calibrated from first edge pair")
	}

	return res, nil
}

func (m *Monitor) analyzeAlignment(gray *vision.Gray) AlignmentReading {
	var reading AlignmentReading
	err := guard("alignment", func() error {
		pair, err := m.edges.Extract(gray)
		if err != nil && !errors.Is(err, ErrEdgeDetection) {
			return err
		}

		var aerr error
		reading, aerr = AnalyzeAlignment(pair, gray.Width, m.calibration, m.cfg)
		reading.Causes = MisalignmentCauses(gray, pair, m.cfg.CauseStripPx)
		return aerr
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrEdgeDetection):
		m.log.WithField("frame", m.frames).Debug("no usable belt edges")
	default:
		m.log.WithError(err).Warn("alignment degraded")
		reading = degradedAlignment(err)
	}
	return reading
}

func (m *Monitor) analyzeSpeed(gray *vision.Gray, at time.Time) SpeedReading {
	var reading SpeedReading
	err := guard("speed", func() error {
		var err error
		reading, err = m.speed.Estimate(gray, at, m.calibration)
		return err
	})

	var fpe *FrameProcessingError
	if errors.As(err, &fpe) {
		m.log.WithError(err).Warn("speed degraded")
		reading = degradedSpeed(m.speed.History().Len(), err)
	}
	return reading
}

func (m *Monitor) analyzeTear(gray *vision.Gray, at time.Time) TearReading {
	var reading TearReading
	err := guard("tear", func() error {
		var err error
		reading, err = m.tear.Detect(gray, at, m.calibration)
		return err
	})

	if err != nil {
		m.log.WithError(err).Warn("tear detection degraded")
		reading = degradedTear(err)
		return reading
	}
	if reading.BaselineCapture {
		m.log.WithField("frame", m.frames).Info("texture baseline captured")
	}
	return reading
}

// CaptureBaseline records the texture baseline from a frame known to show
// an undamaged belt. It reports false if a baseline already exists.
func (m *Monitor) CaptureBaseline(frame *Frame) (bool, error) {
	gray, err := m.grayscale(frame)
	if err != nil {
		return false, err
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = m.now()
	}

	var captured bool
	err = guard("tear", func() error {
		var err error
		captured, err = m.tear.CaptureBaseline(gray, at)
		return err
	})
	if err != nil {
		return false, err
	}
	if captured {
		m.log.Info("texture baseline captured from reference frame")
	}
	return captured, nil
}

// Reset drops the previous frame, the speed history and the previous tear
// list. Calibration and the texture baseline survive.
func (m *Monitor) Reset() {
	m.speed.Reset()
	m.tear.previous = nil
	m.log.Info("monitor reset")
}

// Visualize renders r over frame without touching any state.
func (m *Monitor) Visualize(frame *Frame, r *Result) (*image.NRGBA, error) {
	if frame == nil || frame.Image == nil {
		return nil, ErrNilFrame
	}
	if frame.Image.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	return Visualize(frame.Image, r), nil
}
