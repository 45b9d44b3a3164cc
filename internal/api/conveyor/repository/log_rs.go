package conveyorRepository

import (
	"ConveyorVision/internal/entity"
	"ConveyorVision/pkg/redis"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type logsRepository struct {
	rdb redis.IRedis
	log *logrus.Logger
}

func (r *logsRepository) SaveDetectionLog(ctx context.Context, entry entity.DetectionLog) error {
	payload, err := jsoniter.Marshal(entry)
	if err != nil {
		return err
	}
	return r.rdb.PushCapped(ctx, logsKey(entry.CameraID), payload, logLimit)
}

func (r *logsRepository) GetRecentLogs(ctx context.Context, cameraID string, limit int64) ([]entity.DetectionLog, error) {
	if limit <= 0 || limit > logLimit {
		limit = logLimit
	}

	raw, err := r.rdb.Range(ctx, logsKey(cameraID), limit)
	if err != nil {
		return nil, err
	}

	logs := make([]entity.DetectionLog, 0, len(raw))
	for _, item := range raw {
		var entry entity.DetectionLog
		if err := jsoniter.UnmarshalFromString(item, &entry); err != nil {
			r.log.WithField("camera_id", cameraID).Warn("Skipping malformed detection log")
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
