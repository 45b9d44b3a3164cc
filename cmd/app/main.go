package main

import (
	"ConveyorVision/internal/config"
	"ConveyorVision/pkg/kafka"
	"ConveyorVision/pkg/log"
	"ConveyorVision/pkg/metrics"
	"ConveyorVision/pkg/mqtt"
	"ConveyorVision/pkg/redis"
	"ConveyorVision/pkg/s3"
	"ConveyorVision/pkg/smtp"
	websocketPkg "ConveyorVision/pkg/websocket"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/context"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "No .env file loaded, using process environment")
	}
	logger := log.NewLogger()

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()

	kafkaPublisher, err := kafka.New()
	if err != nil {
		if !errors.Is(err, kafka.ErrNotConfigured) {
			logger.Fatalf("Failed to create kafka publisher: %v", err)
		}
		logger.Info("Kafka alert stream disabled")
	}

	mqttPublisher, err := mqtt.New()
	if err != nil {
		if !errors.Is(err, mqtt.ErrNotConfigured) {
			logger.WithError(err).Warn("Failed to connect to MQTT broker")
		}
		logger.Info("MQTT alert telemetry disabled")
	}

	snapshotStore, err := s3.New()
	if err != nil {
		if !errors.Is(err, s3.ErrNotConfigured) {
			logger.Fatalf("Failed to initialize S3 client: %v", err)
		}
		logger.Info("Alert snapshots disabled")
	}

	smtpMailer, err := smtp.New()
	if err != nil {
		logger.Info("Alert emails disabled")
	}

	var objectDetector websocketPkg.IObjectDetector
	if os.Getenv("OBJECT_DETECTOR_URL") != "" {
		objectDetector = websocketPkg.NewObjectDetectorClient(logger)
	} else {
		logger.Info("Object detector disabled")
	}

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithRedisServer(redisServer),
		config.WithKafkaPublisher(kafkaPublisher),
		config.WithMQTTPublisher(mqttPublisher),
		config.WithObjectDetector(objectDetector),
		config.WithSnapshotStore(snapshotStore),
		config.WithSMTPMailer(smtpMailer),
		config.WithMetrics(metrics.New()),
		config.WithMonitorConfig(),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
