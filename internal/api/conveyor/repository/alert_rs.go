package conveyorRepository

import (
	"ConveyorVision/internal/entity"
	"ConveyorVision/pkg/redis"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type alertsRepository struct {
	rdb redis.IRedis
	log *logrus.Logger
}

// SaveAlert appends the event to the camera's capped list and fans it out on
// the alerts channel.
func (r *alertsRepository) SaveAlert(ctx context.Context, event entity.AlertEvent) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return err
	}

	if err := r.rdb.PushCapped(ctx, alertsKey(event.CameraID), payload, alertLimit); err != nil {
		r.log.WithFields(logrus.Fields{
			"camera_id": event.CameraID,
			"alert_id":  event.ID,
			"error":     err.Error(),
		}).Error("Failed to store alert")
		return err
	}

	if err := r.rdb.Publish(ctx, AlertsChannel, payload); err != nil {
		r.log.WithFields(logrus.Fields{
			"camera_id": event.CameraID,
			"alert_id":  event.ID,
			"error":     err.Error(),
		}).Error("Failed to publish alert")
		return err
	}

	return nil
}

// GetRecentAlerts returns up to limit events, newest first.
func (r *alertsRepository) GetRecentAlerts(ctx context.Context, cameraID string, limit int64) ([]entity.AlertEvent, error) {
	if limit <= 0 || limit > alertLimit {
		limit = alertLimit
	}

	raw, err := r.rdb.Range(ctx, alertsKey(cameraID), limit)
	if err != nil {
		return nil, err
	}

	alerts := make([]entity.AlertEvent, 0, len(raw))
	for _, item := range raw {
		var event entity.AlertEvent
		if err := jsoniter.UnmarshalFromString(item, &event); err != nil {
			r.log.WithFields(logrus.Fields{
				"camera_id": cameraID,
				"error":     err.Error(),
			}).Warn("Skipping malformed alert entry")
			continue
		}
		alerts = append(alerts, event)
	}

	return alerts, nil
}
