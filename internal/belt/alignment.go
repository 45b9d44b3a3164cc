package belt

import (
	"image"
	"math"

	"ConveyorVision/pkg/vision"
)

const (
	darkStripMean      = 30
	illuminationSpread = 50
)

// AnalyzeAlignment measures how far the belt centre sits from the frame
// centre. On the first complete edge pair it also fixes the calibration.
func AnalyzeAlignment(edges EdgePair, frameWidth int, cal *Calibration, cfg Config) (AlignmentReading, error) {
	if !edges.Complete() {
		return degradedAlignment(ErrEdgeDetection), ErrEdgeDetection
	}

	leftX, rightX := edges.Left.MidX(), edges.Right.MidX()
	cal.Observe(rightX - leftX)

	frameCenter := float64(frameWidth) / 2
	beltCenter := (leftX + rightX) / 2
	deviation := beltCenter - frameCenter
	pct := math.Abs(deviation) / frameCenter * 100

	direction := DirectionCenter
	if deviation < -cfg.DirectionDeadZonePx {
		direction = DirectionLeft
	} else if deviation > cfg.DirectionDeadZonePx {
		direction = DirectionRight
	}

	reading := AlignmentReading{
		DeviationPct: pct,
		DeviationPx:  deviation,
		BeltCenterX:  beltCenter,
		Direction:    direction,
		Severity:     AlignmentSeverity(pct, cfg),
		Confidence:   (edgeQuality(*edges.Left) + edgeQuality(*edges.Right)) / 2,
		Edges:        edges,
	}
	if mm, err := cal.ToMM(deviation); err == nil {
		reading.DeviationMM = mm
	}
	return reading, nil
}

// AlignmentSeverity is a step function of the deviation percentage.
func AlignmentSeverity(pct float64, cfg Config) Severity {
	switch {
	case pct >= cfg.AlignmentCriticalPct:
		return SeverityCritical
	case pct >= cfg.AlignmentWarningPct:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// edgeQuality is 1 for a perfectly vertical line and falls linearly to 0 at
// horizontal.
func edgeQuality(l Line) float64 {
	angle := math.Abs(math.Atan2(l.Y2-l.Y1, l.X2-l.X1))
	return 1 - math.Min(math.Abs(angle-math.Pi/2), math.Pi/2)/(math.Pi/2)
}

// degradedAlignment carries no measurement. Deviations stay zero and
// DirectionUnknown marks the reading as unmeasured.
func degradedAlignment(cause error) AlignmentReading {
	return AlignmentReading{
		Direction:  DirectionUnknown,
		Severity:   SeverityCritical,
		Confidence: 0,
		Failure:    failureName(cause),
	}
}

// MisalignmentCauses inspects the frame for conditions that commonly push a
// belt off track or fool the edge detector.
func MisalignmentCauses(g *vision.Gray, edges EdgePair, strip int) []string {
	if !edges.Complete() {
		return []string{"Edge detection failed"}
	}

	var causes []string
	strip = min(strip, g.Width, g.Height)

	leftMean, _ := g.MeanStdDev(image.Rect(0, 0, strip, g.Height))
	rightMean, _ := g.MeanStdDev(image.Rect(g.Width-strip, 0, g.Width, g.Height))
	if leftMean < darkStripMean {
		causes = append(causes, "Possible material buildup on left edge")
	}
	if rightMean < darkStripMean {
		causes = append(causes, "Possible material buildup on right edge")
	}

	topMean, _ := g.MeanStdDev(image.Rect(0, 0, g.Width, strip))
	bottomMean, _ := g.MeanStdDev(image.Rect(0, g.Height-strip, g.Width, g.Height))
	if math.Abs(topMean-bottomMean) > illuminationSpread {
		causes = append(causes, "Uneven illumination - check lighting conditions")
	}

	return causes
}
