package belt

import (
	"fmt"
	"image"
	"math"
	"time"

	"ConveyorVision/pkg/vision"
)

const (
	tearMinAspect   = 3
	tearMaxExtent   = 0.6
	tearMaxSolidity = 0.8

	intactConfidence = 0.95
)

// TextureBaseline is the intensity profile of a presumed undamaged belt.
type TextureBaseline struct {
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"`
	CapturedAt time.Time `json:"captured_at"`
}

// TearDetector finds long, irregular, concave contours and confirms them
// against the texture baseline.
type TearDetector struct {
	backend  vision.Backend
	cfg      Config
	baseline *TextureBaseline
	previous []TearCandidate
}

func NewTearDetector(backend vision.Backend, cfg Config) *TearDetector {
	return &TearDetector{backend: backend, cfg: cfg}
}

func (t *TearDetector) Baseline() *TextureBaseline {
	return t.baseline
}

// CaptureBaseline records the baseline from a known clean frame. It is a
// no-op once a baseline exists.
func (t *TearDetector) CaptureBaseline(g *vision.Gray, at time.Time) (bool, error) {
	if t.baseline != nil {
		return false, nil
	}
	set, err := t.backend.FindContours(g, t.contourParams())
	if err != nil {
		return false, &FrameProcessingError{Component: "tear", Err: err}
	}
	t.setBaseline(set.Enhanced, at)
	return true, nil
}

func (t *TearDetector) setBaseline(enhanced *vision.Gray, at time.Time) {
	mean, std := enhanced.MeanStdDev(enhanced.Bounds())
	t.baseline = &TextureBaseline{Mean: mean, StdDev: std, CapturedAt: at}
}

func (t *TearDetector) contourParams() vision.ContourParams {
	p := vision.DefaultContourParams()
	p.CannyLow = t.cfg.CannyLow
	p.CannyHigh = t.cfg.CannyHigh
	return p
}

// Detect runs one frame through the tear pipeline. The first frame seen
// without a baseline becomes the baseline and its candidates are reported
// unconfirmed.
func (t *TearDetector) Detect(g *vision.Gray, at time.Time, cal *Calibration) (TearReading, error) {
	set, err := t.backend.FindContours(g, t.contourParams())
	if err != nil {
		err = &FrameProcessingError{Component: "tear", Err: err}
		return degradedTear(err), err
	}

	mmPerPx := t.cfg.TearFallbackMMPerPx
	if ppm, err := cal.PixelsPerMM(); err == nil {
		mmPerPx = 1 / ppm
	}

	candidates := FilterTearCandidates(set.Contours, mmPerPx, t.cfg)

	var tears []TearCandidate
	baselineFrame := t.baseline == nil
	if baselineFrame {
		t.setBaseline(set.Enhanced, at)
		tears = candidates
	} else {
		tears = t.confirm(set.Enhanced, candidates)
	}

	reading := SummarizeTears(tears, t.cfg)
	reading.BaselineCapture = baselineFrame
	reading.Progression = TrackProgression(t.previous, tears)
	t.previous = tears
	return reading, nil
}

// FilterTearCandidates applies the geometric tear rule to raw contours.
func FilterTearCandidates(contours []vision.Contour, mmPerPx float64, cfg Config) []TearCandidate {
	var out []TearCandidate
	for _, c := range contours {
		area := c.Area()
		if area < cfg.TearMinAreaPx || area == 0 {
			continue
		}

		box := c.BoundingRect()
		w, h := float64(box.Dx()), float64(box.Dy())
		if w == 0 || h == 0 {
			continue
		}

		hull := c.HullArea()
		if hull == 0 {
			continue
		}

		aspect := math.Max(w, h) / math.Min(w, h)
		// the box counts whole pixels, so extent does too
		extent := c.PixelArea() / (w * h)
		solidity := area / hull
		if !(aspect > tearMinAspect && extent < tearMaxExtent && solidity < tearMaxSolidity) {
			continue
		}

		length := math.Max(w, h) * mmPerPx
		width := math.Min(w, h) * mmPerPx
		if length <= cfg.TearMinLengthMM || width <= cfg.TearMinWidthMM {
			continue
		}

		out = append(out, TearCandidate{
			Box:         box,
			Center:      image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2),
			AreaPx:      area,
			AreaMM2:     area * mmPerPx * mmPerPx,
			LengthMM:    length,
			WidthMM:     width,
			AspectRatio: aspect,
			Extent:      extent,
			Solidity:    solidity,
		})
	}
	return out
}

// confirm keeps candidates whose local texture departs from the baseline,
// which rejects shadows that merely look like tears.
func (t *TearDetector) confirm(enhanced *vision.Gray, candidates []TearCandidate) []TearCandidate {
	var out []TearCandidate
	for _, c := range candidates {
		region := c.Box.Intersect(enhanced.Bounds())
		if region.Empty() {
			continue
		}

		mean, _ := enhanced.MeanStdDev(region)
		diff := math.Abs(mean - t.baseline.Mean)
		density := enhanced.GradientMagnitudeMean(region) / 255

		if diff > t.cfg.TearIntensityDelta || density > t.cfg.TearEdgeDensity {
			c.TextureAnomaly = true
			c.IntensityDifference = diff
			c.EdgeDensity = density
			out = append(out, c)
		}
	}
	return out
}

// SummarizeTears aggregates a tear list into a reading with severity and
// recommendations.
func SummarizeTears(tears []TearCandidate, cfg Config) TearReading {
	severity, recs := ClassifyTears(tears, cfg)
	if len(tears) == 0 {
		return TearReading{
			Severity:        severity,
			Recommendations: recs,
			Confidence:      intactConfidence,
		}
	}

	r := TearReading{
		Detected:        true,
		Count:           len(tears),
		Severity:        severity,
		Recommendations: recs,
		Confidence:      math.Min(intactConfidence, 0.7+float64(len(tears))/20),
		Tears:           tears,
	}
	for _, t := range tears {
		r.MaxLengthMM = math.Max(r.MaxLengthMM, t.LengthMM)
		r.MaxWidthMM = math.Max(r.MaxWidthMM, t.WidthMM)
		r.TotalAreaMM2 += t.AreaMM2
	}
	return r
}

// ClassifyTears maps the longest tear and the tear count onto a severity
// tier with its fixed recommendation text.
func ClassifyTears(tears []TearCandidate, cfg Config) (TearSeverity, []string) {
	if len(tears) == 0 {
		return TearNone, []string{"Belt appears intact. Continue normal operation."}
	}

	var maxLength float64
	for _, t := range tears {
		maxLength = math.Max(maxLength, t.LengthMM)
	}
	count := len(tears)

	switch {
	case maxLength >= cfg.TearCriticalMM:
		return TearCritical, []string{
			"IMMEDIATE ACTION REQUIRED",
			fmt.Sprintf("Critical tear detected: %.0fmm long", maxLength),
			"Stop conveyor immediately",
			"Replace damaged belt section",
			"Inspect for cause of tear",
		}
	case maxLength >= cfg.TearModerateMM || count > 5:
		return TearModerate, []string{
			fmt.Sprintf("Moderate damage: %d tears, longest %.0fmm", count, maxLength),
			"Schedule repair within 24 hours",
			"Monitor tear progression",
			"Reduce belt load until repair",
		}
	case maxLength >= cfg.TearMinorMM || count > 2:
		return TearMinor, []string{
			fmt.Sprintf("Minor damage detected: %d small tears", count),
			"Monitor during next maintenance",
			"Check for causes (sharp objects, worn idlers)",
			"Schedule inspection",
		}
	default:
		return TearMinor, []string{
			"Minor surface wear detected",
			"Continue normal monitoring",
			"Check during routine maintenance",
		}
	}
}

func degradedTear(cause error) TearReading {
	return TearReading{
		Severity:        TearCritical,
		Recommendations: []string{"Error in tear detection system"},
		Confidence:      0,
		Progression:     ProgressionReading{Trend: ProgressionUnknown},
		Failure:         failureName(cause),
	}
}

// TrackProgression compares consecutive tear lists.
func TrackProgression(previous, current []TearCandidate) ProgressionReading {
	if len(previous) == 0 || len(current) == 0 {
		return ProgressionReading{Trend: ProgressionUnknown}
	}

	countChange := len(current) - len(previous)
	lengthChange := longestTear(current) - longestTear(previous)

	r := ProgressionReading{CountChange: countChange, LengthChangeMM: lengthChange}
	switch {
	case countChange > 2 || lengthChange > 20:
		r.Trend = ProgressionRapidWorsening
		r.Recommendation = "Immediate inspection required - tear progressing rapidly"
	case countChange > 0 || lengthChange > 5:
		r.Trend = ProgressionGradualWorsening
		r.Recommendation = "Schedule maintenance - tear is slowly progressing"
	case countChange < 0 || lengthChange < -5:
		r.Trend = ProgressionImproving
		r.Recommendation = "Tear appears to be stabilizing"
	default:
		r.Trend = ProgressionStable
		r.Recommendation = "Tear condition stable"
	}
	return r
}

func longestTear(tears []TearCandidate) float64 {
	var m float64
	for _, t := range tears {
		m = math.Max(m, t.LengthMM)
	}
	return m
}
