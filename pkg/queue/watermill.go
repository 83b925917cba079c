package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillClient adapts any watermill publisher/subscriber pair into a
// Client. The gochannel pubsub backs tests and single-process setups, the
// Kafka channel backs production.
type WatermillClient struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewWatermillClient(publisher message.Publisher, subscriber message.Subscriber, logger *slog.Logger) *WatermillClient {
	return &WatermillClient{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger.With("module", "queue"),
	}
}

func (c *WatermillClient) GenerateID() string {
	return watermill.NewULID()
}

func (c *WatermillClient) Enqueue(ctx context.Context, job *ExecutionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	msg := message.NewMessage("job-"+c.GenerateID(), payload)
	msg.Metadata.Set(jobIDMetadataKey, job.ID)
	msg.Metadata.Set(priorityMetadataKey, string(job.Priority))
	msg.SetContext(ctx)

	return c.publisher.Publish(job.Priority.Topic(), msg)
}

func (c *WatermillClient) Consume(ctx context.Context, handler JobHandler) error {
	for _, topic := range JobTopics() {
		messages, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go c.consumeTopic(ctx, topic, messages, handler)
	}

	return nil
}

func (c *WatermillClient) consumeTopic(ctx context.Context, topic string, messages <-chan *message.Message, handler JobHandler) {
	for msg := range messages {
		job := &ExecutionJob{}

		err := json.Unmarshal(msg.Payload, job)
		if err != nil {
			c.logger.ErrorContext(ctx, "Discarding malformed job payload",
				"topic", topic, "message_id", msg.UUID, "error", err)
			msg.Ack()

			continue
		}

		err = handler(ctx, job)
		if err != nil {
			c.logger.ErrorContext(ctx, "Job handler failed, requeueing",
				"topic", topic, "job_id", job.ID, "error", err)
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func (c *WatermillClient) PublishCriticalFailure(ctx context.Context, failure *CriticalFailure) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}

	msg := message.NewMessage("signal-"+c.GenerateID(), payload)
	msg.SetContext(ctx)

	return c.publisher.Publish(TopicCriticalFailures, msg)
}

func (c *WatermillClient) Close() error {
	err := c.publisher.Close()
	if err != nil {
		return err
	}

	return c.subscriber.Close()
}
