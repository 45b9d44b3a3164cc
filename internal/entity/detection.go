package entity

import "time"

// DetectedObject is one box returned by the external object detector.
type DetectedObject struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

type ObjectDetectionResult struct {
	Objects []DetectedObject `json:"objects"`
	Message string           `json:"message,omitempty"`
}

// DetectionLog is the compact per-frame record kept for recent history.
type DetectionLog struct {
	ID                string    `json:"id"`
	CameraID          string    `json:"camera_id"`
	FrameIndex        uint64    `json:"frame_index"`
	AlignmentSeverity string    `json:"alignment_severity"`
	DeviationPercent  float64   `json:"deviation_percent"`
	SpeedSeverity     string    `json:"speed_severity"`
	SpeedMPS          float64   `json:"speed_mps"`
	TearSeverity      string    `json:"tear_severity"`
	TearCount         int       `json:"tear_count"`
	ObstructionLabels []string  `json:"obstruction_labels,omitempty"`
	Alert             string    `json:"alert,omitempty"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	CreatedAt         time.Time `json:"created_at"`
}
