package conveyorService

import (
	"ConveyorVision/internal/api/conveyor"
	conveyorRepository "ConveyorVision/internal/api/conveyor/repository"
	"ConveyorVision/internal/belt"
	"ConveyorVision/pkg/kafka"
	"ConveyorVision/pkg/metrics"
	"ConveyorVision/pkg/mqtt"
	"ConveyorVision/pkg/s3"
	"ConveyorVision/pkg/smtp"
	"ConveyorVision/pkg/utils"
	"ConveyorVision/pkg/vision"
	websocketPkg "ConveyorVision/pkg/websocket"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IConveyorService interface {
	Analyze(ctx context.Context, cameraID string, frame []byte, capturedAt time.Time) (*conveyor.AnalysisResponse, error)
	Visualize(ctx context.Context, cameraID string, frame []byte, capturedAt time.Time) ([]byte, error)
	Reset(ctx context.Context, cameraID string) error
	CaptureBaseline(ctx context.Context, cameraID string, frame []byte) (*conveyor.BaselineResponse, error)
	Config(cameraID string) belt.Config
	UpdateConfig(ctx context.Context, cameraID string, cfg belt.Config) (*conveyor.StatusResponse, error)
	Status(ctx context.Context, cameraID string) (*conveyor.StatusResponse, error)
	RecentAlerts(ctx context.Context, cameraID string, limit int64) (*conveyor.AlertListResponse, error)
	OpenStream(cameraID string) *Stream
}

type Option func(*conveyorService)

// WithKafka and WithMQTT add alert sinks next to the repository. A nil
// publisher is ignored.
func WithKafka(k kafka.IKafka) Option {
	return func(s *conveyorService) {
		s.kafka = k
	}
}

func WithMQTT(m mqtt.IMQTT) Option {
	return func(s *conveyorService) {
		s.mqtt = m
	}
}

// WithSnapshots archives an annotated frame for every critical alert.
func WithSnapshots(store s3.ISnapshotStore) Option {
	return func(s *conveyorService) {
		if store != nil {
			s.snapshots = store
		}
	}
}

// WithMailer emails critical alerts.
func WithMailer(m smtp.ItfSmtp) Option {
	return func(s *conveyorService) {
		s.mailer = m
	}
}

func WithObjectDetector(d websocketPkg.IObjectDetector) Option {
	return func(s *conveyorService) {
		s.detector = d
	}
}

func WithBackend(b vision.Backend) Option {
	return func(s *conveyorService) {
		s.backend = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *conveyorService) {
		s.now = now
	}
}

type conveyorService struct {
	log      *logrus.Logger
	repo     conveyorRepository.Repository
	utils    utils.IUtils
	metrics  *metrics.Metrics
	defaults belt.Config

	kafka     kafka.IKafka
	mqtt      mqtt.IMQTT
	detector  websocketPkg.IObjectDetector
	snapshots s3.ISnapshotStore
	mailer    smtp.ItfSmtp
	backend   vision.Backend
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewConveyorService(
	log *logrus.Logger,
	repo conveyorRepository.Repository,
	utils utils.IUtils,
	m *metrics.Metrics,
	defaults belt.Config,
	opts ...Option,
) IConveyorService {
	s := &conveyorService{
		log:      log,
		repo:     repo,
		utils:    utils,
		metrics:  m,
		defaults: defaults,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.backend == nil {
		s.backend = vision.Default()
	}
	return s
}
