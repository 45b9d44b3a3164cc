package belt

import (
	"errors"
	"fmt"
)

// Precondition failures are the only errors Analyze returns.
var (
	ErrNilFrame   = errors.New("belt: frame is nil")
	ErrEmptyFrame = errors.New("belt: frame has no pixels")
)

// Degradation causes. Components never surface these to the caller; they end
// up in the Failure field of the degraded reading.
var (
	ErrEdgeDetection          = errors.New("edge detection failure")
	ErrCalibrationUnavailable = errors.New("calibration unavailable")
	ErrInsufficientHistory    = errors.New("insufficient history")
)

type FrameProcessingError struct {
	Component string
	Err       error
}

func (e *FrameProcessingError) Error() string {
	return fmt.Sprintf("%s: frame processing error: %v", e.Component, e.Err)
}

func (e *FrameProcessingError) Unwrap() error {
	return e.Err
}

const (
	FailureEdgeDetection          = "edge_detection_failure"
	FailureCalibrationUnavailable = "calibration_unavailable"
	FailureInsufficientHistory    = "insufficient_history"
	FailureFrameProcessing        = "frame_processing_error"
)

func failureName(err error) string {
	var fpe *FrameProcessingError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fpe):
		return FailureFrameProcessing
	case errors.Is(err, ErrEdgeDetection):
		return FailureEdgeDetection
	case errors.Is(err, ErrCalibrationUnavailable):
		return FailureCalibrationUnavailable
	case errors.Is(err, ErrInsufficientHistory):
		return FailureInsufficientHistory
	default:
		return FailureFrameProcessing
	}
}

// guard runs fn and converts a panic into a FrameProcessingError so a faulty
// kernel cannot take the stream down.
func guard(component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FrameProcessingError{Component: component, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}
