package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/loomery/loom/pkg/channels/gochannel"
	"github.com/loomery/loom/pkg/channels/kafka"
	"github.com/loomery/loom/pkg/queue"
)

// NewQueueClient builds the job queue for the given provider. The gochannel
// provider only makes sense when the dispatching and consuming side live in
// the same process.
func NewQueueClient(ctx context.Context, logger *slog.Logger, provider, serviceName string) (queue.Client, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka channel: %w", err)
		}

		return queue.NewWatermillClient(pub, sub, logger), nil
	case "redis":
		db := 0
		if raw := os.Getenv("REDIS_DB"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid REDIS_DB value %q: %w", raw, err)
			}

			db = parsed
		}

		return queue.NewRedisClient(ctx, logger, os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASSWORD"), db)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory channel: %w", err)
		}

		return queue.NewWatermillClient(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported queue provider: %s", provider)
	}
}
