package belt

import (
	"math"

	"ConveyorVision/pkg/vision"
)

// EdgeExtractor finds the left and right belt edges as near-vertical lines.
type EdgeExtractor struct {
	backend vision.Backend
	cfg     Config
}

func NewEdgeExtractor(backend vision.Backend, cfg Config) *EdgeExtractor {
	return &EdgeExtractor{backend: backend, cfg: cfg}
}

func (e *EdgeExtractor) params(height int) vision.LineParams {
	p := vision.DefaultLineParams(height)
	p.CannyLow = e.cfg.CannyLow
	p.CannyHigh = e.cfg.CannyHigh
	p.Threshold = e.cfg.HoughThreshold
	p.MaxLineGap = e.cfg.HoughMaxLineGap
	return p
}

// Extract returns an empty pair together with ErrEdgeDetection when either
// side has no surviving segment. That is an expected outcome, not a fault.
func (e *EdgeExtractor) Extract(g *vision.Gray) (EdgePair, error) {
	segments, err := e.backend.ExtractLines(g, e.params(g.Height))
	if err != nil {
		return EdgePair{}, &FrameProcessingError{Component: "edges", Err: err}
	}
	return SplitEdges(segments, g.Width, e.cfg.EdgeSlopeThreshold, e.cfg.EdgeDeadZonePx)
}

// SplitEdges keeps steep segments, assigns them to a side of the frame
// centre outside the dead zone and averages each side into one line.
func SplitEdges(segments []vision.Segment, frameWidth int, slopeThreshold, deadZone float64) (EdgePair, error) {
	center := float64(frameWidth) / 2
	var left, right []vision.Segment

	for _, s := range segments {
		dx := float64(s.X2 - s.X1)
		dy := float64(s.Y2 - s.Y1)
		if dx != 0 && math.Abs(dy/dx) <= slopeThreshold {
			continue
		}
		if dx == 0 && dy == 0 {
			continue
		}

		mid := float64(s.X1+s.X2) / 2
		switch {
		case mid < center-deadZone:
			left = append(left, s)
		case mid > center+deadZone:
			right = append(right, s)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return EdgePair{}, ErrEdgeDetection
	}

	l, r := averageLine(left), averageLine(right)
	return EdgePair{Left: &l, Right: &r}, nil
}

func averageLine(segments []vision.Segment) Line {
	var out Line
	for _, s := range segments {
		x1, y1, x2, y2 := s.X1, s.Y1, s.X2, s.Y2
		if y1 > y2 {
			x1, y1, x2, y2 = x2, y2, x1, y1
		}
		out.X1 += float64(x1)
		out.Y1 += float64(y1)
		out.X2 += float64(x2)
		out.Y2 += float64(y2)
	}

	n := float64(len(segments))
	out.X1 /= n
	out.Y1 /= n
	out.X2 /= n
	out.Y2 /= n
	return out
}
