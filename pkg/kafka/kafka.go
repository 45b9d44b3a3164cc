package kafka

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrNotConfigured = errors.New("kafka: no brokers configured")

type IKafka interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type publisher struct {
	writer messageWriter
	topic  string
}

// New builds an alert publisher from KAFKA_BROKERS (comma separated) and
// KAFKA_ALERT_TOPIC. Messages are keyed by camera id so one camera's alerts
// stay ordered on a single partition.
func New() (IKafka, error) {
	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, ErrNotConfigured
	}

	topic := os.Getenv("KAFKA_ALERT_TOPIC")
	if topic == "" {
		topic = "belt.alerts"
	}

	logrus.Infof("Kafka alert publisher using topic %s on %v", topic, brokers)

	return &publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		topic: topic,
	}, nil
}

func (p *publisher) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		logrus.Errorf("Error writing to kafka topic %s: %v", p.topic, err)
		return err
	}
	return nil
}

func (p *publisher) Close() error {
	return p.writer.Close()
}
