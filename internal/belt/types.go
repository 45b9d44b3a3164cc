package belt

import (
	"image"
	"time"
)

type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionCenter  Direction = "center"
	DirectionUnknown Direction = "unknown"
)

type TravelDirection string

const (
	TravelForward TravelDirection = "forward"
	TravelReverse TravelDirection = "reverse"
	TravelStopped TravelDirection = "stopped"
	TravelUnknown TravelDirection = "unknown"
)

type TearSeverity string

const (
	TearNone     TearSeverity = "none"
	TearMinor    TearSeverity = "minor"
	TearModerate TearSeverity = "moderate"
	TearCritical TearSeverity = "critical"
)

// Frame is one decoded camera image. Objects optionally carries detections
// from an external object detector for the same image.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
	Objects    []DetectedObject
}

type DetectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// Line is a representative belt edge in pixel coordinates.
type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (l Line) MidX() float64 {
	return (l.X1 + l.X2) / 2
}

type EdgePair struct {
	Left  *Line `json:"left,omitempty"`
	Right *Line `json:"right,omitempty"`
}

func (e EdgePair) Complete() bool {
	return e.Left != nil && e.Right != nil
}

type AlignmentReading struct {
	DeviationPct float64   `json:"deviation_percent"`
	DeviationMM  float64   `json:"deviation_mm"`
	DeviationPx  float64   `json:"deviation_px"`
	BeltCenterX  float64   `json:"belt_center_x"`
	Direction    Direction `json:"direction"`
	Severity     Severity  `json:"severity"`
	Confidence   float64   `json:"confidence"`
	Edges        EdgePair  `json:"edges"`
	Causes       []string  `json:"causes,omitempty"`
	Failure      string    `json:"failure,omitempty"`
}

// SpeedReading speeds are magnitudes; Direction carries the sign of travel.
type SpeedReading struct {
	CurrentMPS       float64         `json:"current_speed_mps"`
	AverageMPS       float64         `json:"average_speed_mps"`
	PercentOfNominal float64         `json:"percent_of_nominal"`
	VariationPct     float64         `json:"variation_percent"`
	IsMoving         bool            `json:"is_moving"`
	IsAtNominal      bool            `json:"is_at_nominal"`
	Direction        TravelDirection `json:"direction"`
	Severity         Severity        `json:"severity"`
	Confidence       float64         `json:"confidence"`
	Samples          int             `json:"samples"`
	InsufficientData bool            `json:"insufficient_data"`
	Failure          string          `json:"failure,omitempty"`
}

type TearCandidate struct {
	Box         image.Rectangle `json:"box"`
	Center      image.Point     `json:"center"`
	AreaPx      float64         `json:"area_px"`
	AreaMM2     float64         `json:"area_mm2"`
	LengthMM    float64         `json:"length_mm"`
	WidthMM     float64         `json:"width_mm"`
	AspectRatio float64         `json:"aspect_ratio"`
	Extent      float64         `json:"extent"`
	Solidity    float64         `json:"solidity"`

	TextureAnomaly      bool    `json:"texture_anomaly"`
	IntensityDifference float64 `json:"intensity_difference"`
	EdgeDensity         float64 `json:"edge_density"`
}

type Progression string

const (
	ProgressionRapidWorsening   Progression = "rapid_worsening"
	ProgressionGradualWorsening Progression = "gradual_worsening"
	ProgressionImproving        Progression = "improving"
	ProgressionStable           Progression = "stable"
	ProgressionUnknown          Progression = "unknown"
)

type ProgressionReading struct {
	Trend          Progression `json:"trend"`
	CountChange    int         `json:"count_change"`
	LengthChangeMM float64     `json:"length_change_mm"`
	Recommendation string      `json:"recommendation"`
}

type TearReading struct {
	Detected        bool               `json:"detected"`
	Count           int                `json:"count"`
	MaxLengthMM     float64            `json:"max_length_mm"`
	MaxWidthMM      float64            `json:"max_width_mm"`
	TotalAreaMM2    float64            `json:"total_area_mm2"`
	Severity        TearSeverity       `json:"severity"`
	Recommendations []string           `json:"recommendations"`
	Confidence      float64            `json:"confidence"`
	Tears           []TearCandidate    `json:"tears,omitempty"`
	Progression     ProgressionReading `json:"progression"`
	BaselineCapture bool               `json:"baseline_capture,omitempty"`
	Failure         string             `json:"failure,omitempty"`
}

type ObstructionReading struct {
	Detected      bool     `json:"detected"`
	Labels        []string `json:"labels,omitempty"`
	MaxConfidence float64  `json:"max_confidence"`
}

type AlertKind string

const (
	AlertAlignment AlertKind = "alignment"
	AlertSpeed     AlertKind = "speed"
	AlertStopped   AlertKind = "stopped"
)

type Alert struct {
	Kind     AlertKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Result is everything derived from one frame.
type Result struct {
	Alignment   AlignmentReading   `json:"alignment"`
	Speed       SpeedReading       `json:"speed"`
	Tear        TearReading        `json:"tear"`
	Obstruction ObstructionReading `json:"obstruction"`
	Alert       *Alert             `json:"alert,omitempty"`
	Calibrated  bool               `json:"calibrated"`
	FrameIndex  uint64             `json:"frame_index"`
	Timestamp   time.Time          `json:"timestamp"`
}
