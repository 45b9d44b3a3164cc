package conveyor

import (
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	"time"
)

type AnalysisResponse struct {
	CameraID         string                  `json:"camera_id"`
	MonitorID        string                  `json:"monitor_id"`
	Result           *belt.Result            `json:"result"`
	Objects          []entity.DetectedObject `json:"objects,omitempty"`
	Events           []entity.AlertEvent     `json:"events,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
}

type StatusResponse struct {
	CameraID    string                `json:"camera_id"`
	MonitorID   string                `json:"monitor_id"`
	Frames      uint64                `json:"frames"`
	Calibrated  bool                  `json:"calibrated"`
	PixelsPerMM float64               `json:"pixels_per_mm,omitempty"`
	Baseline    *belt.TextureBaseline `json:"baseline,omitempty"`
	LastResult  *belt.Result          `json:"last_result,omitempty"`
	Config      belt.Config           `json:"config"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

type BaselineResponse struct {
	CameraID string                `json:"camera_id"`
	Captured bool                  `json:"captured"`
	Baseline *belt.TextureBaseline `json:"baseline"`
}

type ResetResponse struct {
	CameraID string `json:"camera_id"`
	Message  string `json:"message"`
}

type AlertListRequest struct {
	Limit int64 `query:"limit" validate:"gte=0,lte=100"`
}

type AlertListResponse struct {
	CameraID string              `json:"camera_id"`
	Alerts   []entity.AlertEvent `json:"alerts"`
}

// StreamMessage is written once per analysed websocket frame. Dropped counts
// frames that were overwritten in the mailbox before analysis reached them.
type StreamMessage struct {
	Result  *AnalysisResponse `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
	Dropped uint64            `json:"dropped"`
}
