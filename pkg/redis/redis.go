package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type IRedis interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PushCapped(ctx context.Context, key string, payload []byte, limit int64) error
	Range(ctx context.Context, key string, limit int64) ([]string, error)
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	receivers, err := r.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error publishing to channel %s: %v", channel, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Published %d bytes to %s (%d receivers)", len(payload), channel, receivers))
	return nil
}

// PushCapped prepends payload to the list at key and trims it to the newest
// limit entries in one round trip.
func (r *redisClient) PushCapped(ctx context.Context, key string, payload []byte, limit int64) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Error(fmt.Sprintf("Error pushing to list %s: %v", key, err))
		return err
	}
	return nil
}

// Range returns up to limit entries from the head of the list, newest first.
func (r *redisClient) Range(ctx context.Context, key string, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	vals, err := r.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error reading list %s: %v", key, err))
		return nil, err
	}
	return vals, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
