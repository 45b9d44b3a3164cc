package conveyorService

import (
	"ConveyorVision/internal/api/conveyor"
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	contextPkg "ConveyorVision/pkg/context"
	"bytes"
	"image"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const visualizeQuality = 85

func (s *conveyorService) decode(frame []byte) (image.Image, error) {
	if len(frame) == 0 {
		return nil, conveyor.ErrInvalidFrame
	}
	if int64(len(frame)) > s.utils.MaxFileSize() {
		return nil, conveyor.ErrFrameTooLarge
	}
	img, err := s.utils.DecodeImage(bytes.NewReader(frame))
	if err != nil {
		return nil, conveyor.ErrInvalidFrame
	}
	return img, nil
}

// detect asks the external object detector about the frame. Detector
// failures never fail the analysis; the frame is analysed without objects.
func (s *conveyorService) detect(ctx context.Context, cameraID string, frame []byte) []entity.DetectedObject {
	if s.detector == nil {
		return nil
	}
	objects, err := s.detector.Detect(ctx, frame)
	if err != nil {
		s.metrics.DetectorErrors.Add(1)
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"camera_id":  cameraID,
			"error":      err.Error(),
		}).Warn("Object detector unavailable, analysing without detections")
		return nil
	}
	return objects
}

func toBeltObjects(objects []entity.DetectedObject) []belt.DetectedObject {
	if len(objects) == 0 {
		return nil
	}
	out := make([]belt.DetectedObject, 0, len(objects))
	for _, o := range objects {
		var box [4]int
		for i := 0; i < len(o.BBox) && i < 4; i++ {
			box[i] = int(math.Round(o.BBox[i]))
		}
		out = append(out, belt.DetectedObject{Label: o.Label, Confidence: o.Confidence, Box: box})
	}
	return out
}

func (s *conveyorService) Analyze(ctx context.Context, cameraID string, frame []byte, capturedAt time.Time) (*conveyor.AnalysisResponse, error) {
	resp, _, err := s.analyze(ctx, cameraID, frame, capturedAt)
	return resp, err
}

func (s *conveyorService) analyze(ctx context.Context, cameraID string, frame []byte, capturedAt time.Time) (*conveyor.AnalysisResponse, image.Image, error) {
	start := time.Now()
	requestID := contextPkg.GetRequestID(ctx)

	img, err := s.decode(frame)
	if err != nil {
		s.metrics.FramesRejected.Add(1)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"camera_id":  cameraID,
			"size":       len(frame),
			"error":      err.Error(),
		}).Warn("Frame rejected")
		return nil, nil, err
	}

	sess, err := s.session(cameraID)
	if err != nil {
		return nil, nil, err
	}

	objects := s.detect(ctx, cameraID, frame)

	sess.mu.Lock()
	result, err := sess.monitor.Analyze(&belt.Frame{
		Image:      img,
		CapturedAt: capturedAt,
		Objects:    toBeltObjects(objects),
	})
	if err != nil {
		sess.mu.Unlock()
		s.metrics.FramesRejected.Add(1)
		return nil, nil, err
	}
	sess.last = result
	sess.updatedAt = s.now()
	events := s.collectEvents(sess, cameraID, result)
	monitorID := sess.monitor.ID()
	sess.mu.Unlock()

	elapsed := time.Since(start)
	s.metrics.FramesAnalyzed.Add(1)
	s.metrics.ObserveAnalyze(elapsed.Seconds())
	if degraded(result) {
		s.metrics.DegradedReadings.Add(1)
	}

	s.attachSnapshot(ctx, cameraID, img, result, events)
	s.persist(ctx, cameraID, result, events, elapsed)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"camera_id":  cameraID,
		"frame":      result.FrameIndex,
		"alignment":  result.Alignment.Severity,
		"speed_mps":  result.Speed.CurrentMPS,
		"tears":      result.Tear.Count,
		"events":     len(events),
		"latency_ms": elapsed.Milliseconds(),
	}).Debug("Frame analysed")

	return &conveyor.AnalysisResponse{
		CameraID:         cameraID,
		MonitorID:        monitorID,
		Result:           result,
		Objects:          objects,
		Events:           events,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, img, nil
}

func degraded(r *belt.Result) bool {
	return r.Alignment.Failure == belt.FailureFrameProcessing ||
		r.Speed.Failure == belt.FailureFrameProcessing ||
		r.Tear.Failure != ""
}

// Visualize analyses the frame like Analyze and renders the result over it.
func (s *conveyorService) Visualize(ctx context.Context, cameraID string, frame []byte, capturedAt time.Time) ([]byte, error) {
	resp, img, err := s.analyze(ctx, cameraID, frame, capturedAt)
	if err != nil {
		return nil, err
	}

	out := belt.Visualize(img, resp.Result)
	encoded, err := s.utils.EncodeJPEG(out, visualizeQuality)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"camera_id":  cameraID,
			"error":      err.Error(),
		}).Error("Failed to encode annotated frame")
		return nil, conveyor.ErrInternalServerError
	}
	return encoded, nil
}

func (s *conveyorService) Reset(ctx context.Context, cameraID string) error {
	sess, ok := s.lookup(cameraID)
	if !ok {
		return conveyor.ErrCameraNotFound
	}

	sess.mu.Lock()
	sess.monitor.Reset()
	sess.last = nil
	sess.lastMessage = make(map[string]string)
	sess.updatedAt = s.now()
	sess.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"camera_id":  cameraID,
	}).Info("Camera session reset")
	return nil
}

func (s *conveyorService) CaptureBaseline(ctx context.Context, cameraID string, frame []byte) (*conveyor.BaselineResponse, error) {
	img, err := s.decode(frame)
	if err != nil {
		s.metrics.FramesRejected.Add(1)
		return nil, err
	}

	sess, err := s.session(cameraID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	captured, err := sess.monitor.CaptureBaseline(&belt.Frame{Image: img, CapturedAt: s.now()})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"camera_id":  cameraID,
			"error":      err.Error(),
		}).Warn("Baseline capture failed")
		return nil, err
	}
	if !captured {
		return nil, conveyor.ErrBaselineExists
	}

	return &conveyor.BaselineResponse{
		CameraID: cameraID,
		Captured: true,
		Baseline: sess.monitor.Baseline(),
	}, nil
}

// UpdateConfig replaces the camera's Monitor. Calibration, history and the
// texture baseline start over under the new configuration.
func (s *conveyorService) UpdateConfig(ctx context.Context, cameraID string, cfg belt.Config) (*conveyor.StatusResponse, error) {
	if cameraID == "" {
		return nil, conveyor.ErrInvalidCameraID
	}

	sess, err := s.newSession(cameraID, cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.sessions[cameraID]; !exists {
		s.metrics.ActiveCameras.Add(1)
	}
	s.sessions[cameraID] = sess
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"camera_id":  cameraID,
		"monitor_id": sess.monitor.ID(),
	}).Info("Camera configuration updated")

	return s.Status(ctx, cameraID)
}

func (s *conveyorService) Status(ctx context.Context, cameraID string) (*conveyor.StatusResponse, error) {
	sess, ok := s.lookup(cameraID)
	if !ok {
		return nil, conveyor.ErrCameraNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	m := sess.monitor
	status := &conveyor.StatusResponse{
		CameraID:   cameraID,
		MonitorID:  m.ID(),
		Frames:     m.Frames(),
		Calibrated: m.Calibration().IsSet(),
		Baseline:   m.Baseline(),
		LastResult: sess.last,
		Config:     m.Config(),
		UpdatedAt:  sess.updatedAt,
	}
	if ppm, err := m.Calibration().PixelsPerMM(); err == nil {
		status.PixelsPerMM = ppm
	}
	return status, nil
}
