// Package queue carries execution jobs between dispatching processes and
// workers over a message broker.
package queue

import (
	"context"
	"time"

	"github.com/loomery/loom/pkg/models"
)

// Priority selects which topic a job is enqueued on. Workers drain the
// high-priority topic before the others.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

const (
	TopicHighPriority    = "loom.executions.high-priority"
	TopicDefaultPriority = "loom.executions.default"
	TopicLowPriority     = "loom.executions.low-priority"

	// TopicCriticalFailures receives a signal whenever a run dies on a
	// critical node failure with no retries left.
	TopicCriticalFailures = "loom.executions.critical-failures"
)

// Topic maps the priority to its broker topic. Unknown values fall back to
// the default topic.
func (p Priority) Topic() string {
	switch p {
	case PriorityHigh:
		return TopicHighPriority
	case PriorityLow:
		return TopicLowPriority
	default:
		return TopicDefaultPriority
	}
}

// JobTopics lists the job topics in consumption order, most urgent first.
func JobTopics() []string {
	return []string{TopicHighPriority, TopicDefaultPriority, TopicLowPriority}
}

const (
	jobIDMetadataKey    = "job_id"
	priorityMetadataKey = "priority"
)

// ExecutionJob is the unit of work a worker picks up. Each attempt of a
// workflow run is its own job pointing at its own execution record.
type ExecutionJob struct {
	ID          string               `json:"id"`
	WorkflowID  string               `json:"workflow_id"`
	ExecutionID string               `json:"execution_id"`
	Mode        models.ExecutionMode `json:"mode"`
	Priority    Priority             `json:"priority"`
	TriggerData map[string]any       `json:"trigger_data,omitempty"`
	RetryCount  int                  `json:"retry_count"`

	// NotBefore delays processing, used for retry backoff and for resuming
	// suspended executions at their wake-up time.
	NotBefore *time.Time `json:"not_before,omitempty"`

	// Resumed marks a job that continues a suspended execution.
	Resumed bool `json:"resumed,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobHandler processes a single job. A returned error means the job could
// not be handed to the engine at all and should be redelivered; run-level
// failures are recorded on the execution instead.
type JobHandler func(ctx context.Context, job *ExecutionJob) error

// CriticalFailure is published on TopicCriticalFailures when an execution
// exhausts its retries on a critical error.
type CriticalFailure struct {
	WorkflowID   string    `json:"workflow_id"`
	ExecutionID  string    `json:"execution_id"`
	NodeID       string    `json:"node_id,omitempty"`
	ErrorMessage string    `json:"error_message"`
	RetryCount   int       `json:"retry_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Client is the broker-facing side of the dispatcher.
type Client interface {
	// Enqueue publishes the job on the topic matching its priority.
	Enqueue(ctx context.Context, job *ExecutionJob) error

	// Consume delivers jobs from every job topic to the handler until the
	// context is canceled. It does not block.
	Consume(ctx context.Context, handler JobHandler) error

	// PublishCriticalFailure emits a critical-failure signal for external
	// alerting consumers.
	PublishCriticalFailure(ctx context.Context, failure *CriticalFailure) error

	GenerateID() string

	Close() error
}
