package conveyorService

import (
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	contextPkg "ConveyorVision/pkg/context"
	"ConveyorVision/pkg/s3"
	"image"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// attachSnapshot uploads one annotated frame per analysis and points every
// critical event of that frame at it. Events are updated in place.
func (s *conveyorService) attachSnapshot(ctx context.Context, cameraID string, img image.Image, r *belt.Result, events []entity.AlertEvent) {
	if s.snapshots == nil {
		return
	}

	first := -1
	for i, ev := range events {
		if ev.Severity == entity.AlertSeverityCritical {
			first = i
			break
		}
	}
	if first < 0 {
		return
	}

	encoded, err := s.utils.EncodeJPEG(belt.Visualize(img, r), visualizeQuality)
	if err != nil {
		s.sinkFailed(ctx, cameraID, "snapshot", err)
		return
	}

	key := s3.SnapshotKey(cameraID, events[first].ID)
	location, err := s.snapshots.Upload(ctx, key, encoded, "image/jpeg")
	if err != nil {
		s.sinkFailed(ctx, cameraID, "snapshot", err)
		return
	}

	for i := range events {
		if events[i].Severity == entity.AlertSeverityCritical {
			events[i].SnapshotKey = key
			events[i].SnapshotURL = location
		}
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"camera_id":  cameraID,
		"key":        key,
	}).Debug("Alert snapshot archived")
}

// presignSnapshots swaps stored snapshot locations for short-lived links. A
// failed presign keeps the stored location.
func (s *conveyorService) presignSnapshots(ctx context.Context, alerts []entity.AlertEvent) {
	if s.snapshots == nil {
		return
	}
	for i := range alerts {
		if alerts[i].SnapshotKey == "" {
			continue
		}
		url, err := s.snapshots.PresignURL(alerts[i].SnapshotKey)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"key":        alerts[i].SnapshotKey,
				"error":      err.Error(),
			}).Warn("Failed to presign alert snapshot")
			continue
		}
		alerts[i].SnapshotURL = url
	}
}
