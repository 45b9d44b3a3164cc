package conveyorRepository

import (
	"ConveyorVision/internal/entity"
	"ConveyorVision/pkg/redis"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	AlertsChannel = "alerts"

	alertLimit = 100
	logLimit   = 1000
)

func New(rdb redis.IRedis, log *logrus.Logger) Repository {
	return &repository{
		rdb: rdb,
		log: log,
	}
}

type repository struct {
	rdb redis.IRedis
	log *logrus.Logger
}

type Repository interface {
	NewClient() Client
}

func (r *repository) NewClient() Client {
	return Client{
		Alerts: &alertsRepository{rdb: r.rdb, log: r.log},
		Logs:   &logsRepository{rdb: r.rdb, log: r.log},
	}
}

type Client struct {
	Alerts interface {
		SaveAlert(ctx context.Context, event entity.AlertEvent) error
		GetRecentAlerts(ctx context.Context, cameraID string, limit int64) ([]entity.AlertEvent, error)
	}

	Logs interface {
		SaveDetectionLog(ctx context.Context, entry entity.DetectionLog) error
		GetRecentLogs(ctx context.Context, cameraID string, limit int64) ([]entity.DetectionLog, error)
	}
}
