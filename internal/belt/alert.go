package belt

import (
	"fmt"
	"strings"
)

// Aggregate picks at most one alert for the frame. Order matters: the first
// matching rule wins. edgesKnown reports whether the belt edges had been
// found on some earlier frame.
func Aggregate(alignment AlignmentReading, speed SpeedReading, edgesKnown bool) *Alert {
	switch {
	case alignment.Severity == SeverityCritical && alignment.Direction == DirectionUnknown:
		return &Alert{
			Kind:     AlertAlignment,
			Severity: SeverityCritical,
			Message:  "CRITICAL: Belt edges not detected",
		}
	case alignment.Severity == SeverityCritical:
		return &Alert{
			Kind:     AlertAlignment,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("CRITICAL: Belt misaligned %.1f%% to the %s", alignment.DeviationPct, alignment.Direction),
		}
	case alignment.Severity == SeverityWarning:
		return &Alert{
			Kind:     AlertAlignment,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("WARNING: Belt drifting %s (%.1f%% deviation)", alignment.Direction, alignment.DeviationPct),
		}
	case speed.Severity == SeverityCritical:
		return &Alert{
			Kind:     AlertSpeed,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("CRITICAL: Belt speed %.1f%% of nominal", speed.PercentOfNominal),
		}
	case speed.Severity == SeverityWarning && speed.IsMoving:
		return &Alert{
			Kind:     AlertSpeed,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("WARNING: Speed variation (%.1f%% of nominal)", speed.PercentOfNominal),
		}
	case !speed.IsMoving && edgesKnown:
		return &Alert{
			Kind:     AlertStopped,
			Severity: SeverityCritical,
			Message:  "ALERT: Belt stopped",
		}
	}
	return nil
}

var obstructionKeywords = []string{"jam", "blockage", "pile", "obstruction", "congestion"}

// DetectObstruction scans externally classified objects for jam-like labels.
// It is an auxiliary signal and does not take part in Aggregate.
func DetectObstruction(objects []DetectedObject, minConfidence float64) ObstructionReading {
	var r ObstructionReading
	seen := make(map[string]struct{})

	for _, o := range objects {
		label := strings.ToLower(o.Label)
		if o.Confidence < minConfidence || !matchesObstruction(label) {
			continue
		}
		r.Detected = true
		if o.Confidence > r.MaxConfidence {
			r.MaxConfidence = o.Confidence
		}
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			r.Labels = append(r.Labels, label)
		}
	}
	return r
}

func matchesObstruction(label string) bool {
	for _, k := range obstructionKeywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}
