package conveyorService

import (
	"ConveyorVision/internal/api/conveyor"
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	contextPkg "ConveyorVision/pkg/context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// Debounce groups. The aggregated alert is a single slot per frame, so the
// alignment, speed and stopped kinds share one.
const (
	groupBelt = "belt"
	groupTear = "tear"
	groupJam  = "jam"
)

var alertKinds = map[belt.AlertKind]entity.AlertKind{
	belt.AlertAlignment: entity.AlertKindAlignment,
	belt.AlertSpeed:     entity.AlertKindSpeed,
	belt.AlertStopped:   entity.AlertKindStopped,
}

func alertSeverity(s belt.Severity) entity.AlertSeverity {
	switch s {
	case belt.SeverityCritical:
		return entity.AlertSeverityCritical
	case belt.SeverityWarning:
		return entity.AlertSeverityWarning
	default:
		return entity.AlertSeverityInfo
	}
}

func tearSeverity(s belt.TearSeverity) entity.AlertSeverity {
	switch s {
	case belt.TearCritical:
		return entity.AlertSeverityCritical
	case belt.TearModerate:
		return entity.AlertSeverityWarning
	default:
		return entity.AlertSeverityInfo
	}
}

type candidate struct {
	group    string
	kind     entity.AlertKind
	severity entity.AlertSeverity
	message  string
}

// alertCandidates lists what the frame would raise before debouncing.
func alertCandidates(r *belt.Result) []candidate {
	var out []candidate

	if r.Alert != nil {
		out = append(out, candidate{
			group:    groupBelt,
			kind:     alertKinds[r.Alert.Kind],
			severity: alertSeverity(r.Alert.Severity),
			message:  r.Alert.Message,
		})
	}

	if t := r.Tear; t.Detected && !t.BaselineCapture && t.Failure == "" {
		out = append(out, candidate{
			group:    groupTear,
			kind:     entity.AlertKindTear,
			severity: tearSeverity(t.Severity),
			message:  fmt.Sprintf("%s: %d belt tear(s) detected", strings.ToUpper(string(t.Severity)), t.Count),
		})
	}

	if o := r.Obstruction; o.Detected {
		out = append(out, candidate{
			group:    groupJam,
			kind:     entity.AlertKindJam,
			severity: entity.AlertSeverityWarning,
			message:  fmt.Sprintf("WARNING: Possible obstruction on belt (%s)", strings.Join(o.Labels, ", ")),
		})
	}

	return out
}

// collectEvents turns the frame's candidates into events, publishing a group
// only when its message differs from the last one sent. A group that goes
// quiet is forgotten so the next occurrence is reported again. Callers hold
// sess.mu.
func (s *conveyorService) collectEvents(sess *session, cameraID string, r *belt.Result) []entity.AlertEvent {
	active := make(map[string]bool)
	var events []entity.AlertEvent

	for _, c := range alertCandidates(r) {
		active[c.group] = true
		if sess.lastMessage[c.group] == c.message {
			continue
		}
		sess.lastMessage[c.group] = c.message

		id, err := s.utils.NewULIDFromTimestamp(r.Timestamp)
		if err != nil {
			s.log.WithField("camera_id", cameraID).Warnf("Failed to generate alert id: %v", err)
			continue
		}
		events = append(events, entity.AlertEvent{
			ID:        id,
			CameraID:  cameraID,
			Kind:      c.kind,
			Severity:  c.severity,
			Message:   c.message,
			CreatedAt: r.Timestamp,
		})
	}

	for group := range sess.lastMessage {
		if !active[group] {
			delete(sess.lastMessage, group)
		}
	}

	return events
}

func detectionLog(cameraID string, r *belt.Result, elapsed time.Duration) entity.DetectionLog {
	entry := entity.DetectionLog{
		ID:                fmt.Sprintf("%s-%d", cameraID, r.FrameIndex),
		CameraID:          cameraID,
		FrameIndex:        r.FrameIndex,
		AlignmentSeverity: string(r.Alignment.Severity),
		DeviationPercent:  r.Alignment.DeviationPct,
		SpeedSeverity:     string(r.Speed.Severity),
		SpeedMPS:          r.Speed.CurrentMPS,
		TearSeverity:      string(r.Tear.Severity),
		TearCount:         r.Tear.Count,
		ObstructionLabels: r.Obstruction.Labels,
		ProcessingTimeMs:  elapsed.Milliseconds(),
		CreatedAt:         r.Timestamp,
	}
	if r.Alert != nil {
		entry.Alert = r.Alert.Message
	}
	return entry
}

func (s *conveyorService) sinkFailed(ctx context.Context, cameraID, sink string, err error) {
	s.metrics.PublishErrors.Add(1)
	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"camera_id":  cameraID,
		"sink":       sink,
		"error":      err.Error(),
	}).Warn("Failed to deliver belt record")
}

// persist records the frame and fans events out to every configured sink.
// Sink failures are counted and logged; they never fail the analysis.
func (s *conveyorService) persist(ctx context.Context, cameraID string, r *belt.Result, events []entity.AlertEvent, elapsed time.Duration) {
	requestID := contextPkg.GetRequestID(ctx)
	client := s.repo.NewClient()

	fail := func(sink string, err error) {
		s.sinkFailed(ctx, cameraID, sink, err)
	}

	if err := client.Logs.SaveDetectionLog(ctx, detectionLog(cameraID, r, elapsed)); err != nil {
		fail("detection_log", err)
	}

	for _, event := range events {
		if err := client.Alerts.SaveAlert(ctx, event); err != nil {
			fail("redis", err)
		}

		payload, err := jsoniter.Marshal(event)
		if err != nil {
			fail("encode", err)
			continue
		}
		if s.kafka != nil {
			if err := s.kafka.Publish(ctx, cameraID, payload); err != nil {
				fail("kafka", err)
			}
		}
		if s.mqtt != nil {
			if err := s.mqtt.Publish(cameraID, payload); err != nil {
				fail("mqtt", err)
			}
		}
		if s.mailer != nil && event.Severity == entity.AlertSeverityCritical {
			if err := s.mailer.SendAlert(event); err != nil {
				fail("smtp", err)
			}
		}

		s.metrics.AlertsPublished.Add(1)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"camera_id":  cameraID,
			"kind":       event.Kind,
			"severity":   event.Severity,
		}).Info(event.Message)
	}
}

func (s *conveyorService) RecentAlerts(ctx context.Context, cameraID string, limit int64) (*conveyor.AlertListResponse, error) {
	if cameraID == "" {
		return nil, conveyor.ErrInvalidCameraID
	}

	alerts, err := s.repo.NewClient().Alerts.GetRecentAlerts(ctx, cameraID, limit)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"camera_id":  cameraID,
			"error":      err.Error(),
		}).Error("Failed to load recent alerts")
		return nil, conveyor.ErrInternalServerError
	}

	s.presignSnapshots(ctx, alerts)

	return &conveyor.AlertListResponse{CameraID: cameraID, Alerts: alerts}, nil
}
