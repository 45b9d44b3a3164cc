package conveyorService

import (
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	"testing"
)

func TestAlertCandidates(t *testing.T) {
	tests := []struct {
		name     string
		result   belt.Result
		want     []entity.AlertKind
		severity []entity.AlertSeverity
		message  string
	}{
		{
			name:   "quiet frame",
			result: belt.Result{},
		},
		{
			name: "speed warning",
			result: belt.Result{Alert: &belt.Alert{
				Kind: belt.AlertSpeed, Severity: belt.SeverityWarning, Message: "WARNING: Speed variation (85.0% of nominal)",
			}},
			want:     []entity.AlertKind{entity.AlertKindSpeed},
			severity: []entity.AlertSeverity{entity.AlertSeverityWarning},
			message:  "WARNING: Speed variation (85.0% of nominal)",
		},
		{
			name:     "moderate tears",
			result:   belt.Result{Tear: belt.TearReading{Detected: true, Count: 3, Severity: belt.TearModerate}},
			want:     []entity.AlertKind{entity.AlertKindTear},
			severity: []entity.AlertSeverity{entity.AlertSeverityWarning},
			message:  "MODERATE: 3 belt tear(s) detected",
		},
		{
			name:     "minor tear is informational",
			result:   belt.Result{Tear: belt.TearReading{Detected: true, Count: 1, Severity: belt.TearMinor}},
			want:     []entity.AlertKind{entity.AlertKindTear},
			severity: []entity.AlertSeverity{entity.AlertSeverityInfo},
		},
		{
			name:   "baseline frame tears are unconfirmed",
			result: belt.Result{Tear: belt.TearReading{Detected: true, Count: 2, Severity: belt.TearCritical, BaselineCapture: true}},
		},
		{
			name:   "degraded tear reading",
			result: belt.Result{Tear: belt.TearReading{Severity: belt.TearCritical, Failure: belt.FailureFrameProcessing}},
		},
		{
			name: "stopped and jammed",
			result: belt.Result{
				Alert:       &belt.Alert{Kind: belt.AlertStopped, Severity: belt.SeverityCritical, Message: "ALERT: Belt stopped"},
				Obstruction: belt.ObstructionReading{Detected: true, Labels: []string{"jam"}},
			},
			want:     []entity.AlertKind{entity.AlertKindStopped, entity.AlertKindJam},
			severity: []entity.AlertSeverity{entity.AlertSeverityCritical, entity.AlertSeverityWarning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alertCandidates(&tt.result)
			if len(got) != len(tt.want) {
				t.Fatalf("candidates = %+v, want kinds %v", got, tt.want)
			}
			for i := range got {
				if got[i].kind != tt.want[i] || got[i].severity != tt.severity[i] {
					t.Errorf("candidate %d = %+v", i, got[i])
				}
			}
			if tt.message != "" && got[0].message != tt.message {
				t.Errorf("message = %q, want %q", got[0].message, tt.message)
			}
		})
	}
}

func TestDetectionLogCarriesAlert(t *testing.T) {
	r := &belt.Result{
		FrameIndex: 7,
		Alignment:  belt.AlignmentReading{Severity: belt.SeverityWarning, DeviationPct: 6.5},
		Speed:      belt.SpeedReading{Severity: belt.SeverityNormal, CurrentMPS: 1.49},
		Tear:       belt.TearReading{Severity: belt.TearNone},
		Alert:      &belt.Alert{Message: "WARNING: Belt drifting right (6.5% deviation)"},
	}

	entry := detectionLog("cam-4", r, 0)
	if entry.ID != "cam-4-7" || entry.Alert != r.Alert.Message || entry.AlignmentSeverity != "warning" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.TearSeverity != "none" || entry.SpeedMPS != 1.49 {
		t.Errorf("entry = %+v", entry)
	}
}
