package entity

import "time"

type AlertKind string

const (
	AlertKindAlignment AlertKind = "alignment"
	AlertKindSpeed     AlertKind = "speed"
	AlertKindStopped   AlertKind = "stopped"
	AlertKindTear      AlertKind = "tear"
	AlertKindJam       AlertKind = "jam"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type AlertEvent struct {
	ID          string        `json:"id"`
	CameraID    string        `json:"camera_id"`
	Kind        AlertKind     `json:"kind"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	SnapshotKey string        `json:"snapshot_key,omitempty"`
	SnapshotURL string        `json:"snapshot_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
