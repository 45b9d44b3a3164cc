package config

import (
	conveyorHandler "ConveyorVision/internal/api/conveyor/handler"
	conveyorRepository "ConveyorVision/internal/api/conveyor/repository"
	conveyorService "ConveyorVision/internal/api/conveyor/service"
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/middleware"
	"ConveyorVision/pkg/kafka"
	"ConveyorVision/pkg/metrics"
	"ConveyorVision/pkg/mqtt"
	"ConveyorVision/pkg/redis"
	"ConveyorVision/pkg/s3"
	"ConveyorVision/pkg/smtp"
	"ConveyorVision/pkg/utils"
	"ConveyorVision/pkg/vision"
	websocketPkg "ConveyorVision/pkg/websocket"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redis.IRedis
	kafkaPublisher kafka.IKafka
	mqttPublisher  mqtt.IMQTT
	objectDetector websocketPkg.IObjectDetector
	snapshotStore  s3.ISnapshotStore
	smtpMailer     smtp.ItfSmtp
	metrics        *metrics.Metrics
	monitorConfig  belt.Config
	backend        vision.Backend
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{monitorConfig: belt.DefaultConfig()}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.redisServer == nil {
		return nil, fmt.Errorf("redis is required")
	}
	if server.metrics == nil {
		server.metrics = metrics.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithKafkaPublisher accepts a nil publisher so optional sinks can be passed
// straight through.
func WithKafkaPublisher(publisher kafka.IKafka) ServerOption {
	return func(s *Server) error {
		s.kafkaPublisher = publisher
		return nil
	}
}

func WithMQTTPublisher(publisher mqtt.IMQTT) ServerOption {
	return func(s *Server) error {
		s.mqttPublisher = publisher
		return nil
	}
}

func WithObjectDetector(detector websocketPkg.IObjectDetector) ServerOption {
	return func(s *Server) error {
		s.objectDetector = detector
		return nil
	}
}

func WithSnapshotStore(store s3.ISnapshotStore) ServerOption {
	return func(s *Server) error {
		s.snapshotStore = store
		return nil
	}
}

func WithSMTPMailer(smtpMailer smtp.ItfSmtp) ServerOption {
	return func(s *Server) error {
		s.smtpMailer = smtpMailer
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

func WithMonitorConfig() ServerOption {
	return func(s *Server) error {
		cfg, err := NewMonitorConfig()
		if err != nil {
			return fmt.Errorf("invalid monitor config: %w", err)
		}
		backend, err := NewVisionBackend()
		if err != nil {
			return fmt.Errorf("invalid vision backend: %w", err)
		}
		s.monitorConfig = cfg
		s.backend = backend
		if s.log != nil {
			s.log.WithFields(logrus.Fields{
				"belt_width_mm":     cfg.BeltWidthMM,
				"nominal_speed_mps": cfg.NominalSpeedMPS,
				"vision_backend":    backend.Name(),
			}).Info("Monitor defaults loaded")
		}
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.validator == nil {
		s.validator = NewValidator()
	}
	if s.utils == nil {
		s.utils = utils.New()
	}
	if s.middleware == nil {
		s.middleware = middleware.New(s.log)
	}

	// fiber runs middleware in registration order, so it goes in before any route
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	opts := []conveyorService.Option{}
	if s.backend != nil {
		opts = append(opts, conveyorService.WithBackend(s.backend))
	}
	if s.kafkaPublisher != nil {
		opts = append(opts, conveyorService.WithKafka(s.kafkaPublisher))
	}
	if s.mqttPublisher != nil {
		opts = append(opts, conveyorService.WithMQTT(s.mqttPublisher))
	}
	if s.objectDetector != nil {
		opts = append(opts, conveyorService.WithObjectDetector(s.objectDetector))
	}
	if s.snapshotStore != nil {
		opts = append(opts, conveyorService.WithSnapshots(s.snapshotStore))
	}
	if s.smtpMailer != nil {
		opts = append(opts, conveyorService.WithMailer(s.smtpMailer))
	}

	// Conveyor Domain
	conveyorRepo := conveyorRepository.New(s.redisServer, s.log)
	conveyorServices := conveyorService.NewConveyorService(s.log, conveyorRepo, s.utils, s.metrics, s.monitorConfig, opts...)
	conveyorHandlers := conveyorHandler.New(s.log, s.validator, s.middleware, conveyorServices, s.utils)

	s.setupHealthCheck()
	s.setupMetrics()
	s.handlers = append(s.handlers, conveyorHandlers)
}

// Mount installs the feature routes under /api/v1. Run calls it before listening.
func (s *Server) Mount() {
	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and closes every outbound client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.objectDetector != nil {
		s.objectDetector.Close()
	}
	if s.kafkaPublisher != nil {
		if kerr := s.kafkaPublisher.Close(); kerr != nil {
			s.log.WithError(kerr).Warn("Failed to close kafka publisher")
		}
	}
	if s.mqttPublisher != nil {
		s.mqttPublisher.Disconnect()
	}
	if rerr := s.redisServer.Close(); rerr != nil {
		s.log.WithError(rerr).Warn("Failed to close redis client")
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}

func (s *Server) setupMetrics() {
	s.engine.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
}
