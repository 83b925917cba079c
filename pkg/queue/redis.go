package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	redisJobField     = "job"
	redisGroup        = "loom-workers"
	redisBlockTimeout = time.Second
	redisBatchSize    = 10
)

// RedisClient moves jobs over Redis Streams with a consumer group per
// deployment. Unacknowledged jobs stay pending and are re-read when the
// consumer restarts.
type RedisClient struct {
	client   redis.UniversalClient
	consumer string
	logger   *slog.Logger
	stopCh   chan struct{}
}

func NewRedisClient(ctx context.Context, logger *slog.Logger, addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:   client,
		consumer: "worker-" + uuid.New().String(),
		logger:   logger.With("module", "queue"),
		stopCh:   make(chan struct{}),
	}, nil
}

func (c *RedisClient) GenerateID() string {
	return uuid.New().String()
}

func (c *RedisClient) Enqueue(ctx context.Context, job *ExecutionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: job.Priority.Topic(),
		Values: map[string]any{redisJobField: string(payload)},
	}).Err()
}

func (c *RedisClient) Consume(ctx context.Context, handler JobHandler) error {
	for _, topic := range JobTopics() {
		err := c.client.XGroupCreateMkStream(ctx, topic, redisGroup, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group for %s: %w", topic, err)
		}
	}

	go c.consume(ctx, handler)

	return nil
}

func (c *RedisClient) consume(ctx context.Context, handler JobHandler) {
	// XReadGroup takes streams followed by a ">" cursor per stream.
	streams := append(JobTopics(), ">", ">", ">")

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		results, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    redisGroup,
			Consumer: c.consumer,
			Streams:  streams,
			Count:    redisBatchSize,
			Block:    redisBlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}

			c.logger.ErrorContext(ctx, "Failed to read from job streams", "error", err)
			time.Sleep(time.Second)

			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				c.process(ctx, stream.Stream, msg, handler)
			}
		}
	}
}

func (c *RedisClient) process(ctx context.Context, stream string, msg redis.XMessage, handler JobHandler) {
	raw, ok := msg.Values[redisJobField].(string)
	if !ok {
		c.logger.ErrorContext(ctx, "Discarding stream entry without job payload",
			"stream", stream, "entry_id", msg.ID)
		c.ack(ctx, stream, msg.ID)

		return
	}

	job := &ExecutionJob{}

	err := json.Unmarshal([]byte(raw), job)
	if err != nil {
		c.logger.ErrorContext(ctx, "Discarding malformed job payload",
			"stream", stream, "entry_id", msg.ID, "error", err)
		c.ack(ctx, stream, msg.ID)

		return
	}

	err = handler(ctx, job)
	if err != nil {
		// Left pending for redelivery on the next claim.
		c.logger.ErrorContext(ctx, "Job handler failed",
			"stream", stream, "job_id", job.ID, "error", err)

		return
	}

	c.ack(ctx, stream, msg.ID)
}

func (c *RedisClient) ack(ctx context.Context, stream, entryID string) {
	err := c.client.XAck(ctx, stream, redisGroup, entryID).Err()
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to acknowledge stream entry",
			"stream", stream, "entry_id", entryID, "error", err)
	}
}

func (c *RedisClient) PublishCriticalFailure(ctx context.Context, failure *CriticalFailure) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}

	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: TopicCriticalFailures,
		Values: map[string]any{redisJobField: string(payload)},
	}).Err()
}

func (c *RedisClient) Close() error {
	close(c.stopCh)

	return c.client.Close()
}
