// Package dispatcher enqueues workflow runs and drives them to completion
// from the queue.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/workflow"
)

const (
	// DefaultTries bounds the attempts per dispatched run. Each attempt is a
	// fresh execution record restarting the whole graph.
	DefaultTries = 3

	// AttemptTimeout caps a single attempt.
	AttemptTimeout = 3600 * time.Second

	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff = 60 * time.Second
)

// Dispatcher turns API requests into queued execution jobs.
type Dispatcher struct {
	client queue.Client
	repo   *workflow.Repository
	logger *slog.Logger
}

func NewDispatcher(client queue.Client, repo *workflow.Repository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		repo:   repo,
		logger: logger.With("module", "dispatcher"),
	}
}

// Dispatch creates a waiting execution record for the workflow and enqueues
// a job for it on the topic matching the priority. The returned job id
// doubles as the execution id so callers can poll the execution directly.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, mode models.ExecutionMode, triggerData map[string]any, priority queue.Priority) (string, error) {
	wf, err := d.repo.FetchByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	execution := models.NewExecution(wf.ID, mode, triggerData)
	execution.MaxRetries = DefaultTries - 1

	err = d.repo.SaveExecution(ctx, execution)
	if err != nil {
		return "", err
	}

	job := &queue.ExecutionJob{
		ID:          execution.ID,
		WorkflowID:  wf.ID,
		ExecutionID: execution.ID,
		Mode:        mode,
		Priority:    priority,
		TriggerData: triggerData,
		EnqueuedAt:  time.Now().UTC(),
	}

	err = d.client.Enqueue(ctx, job)
	if err != nil {
		return "", err
	}

	d.logger.InfoContext(ctx, "Dispatched execution",
		"workflow_id", wf.ID,
		"execution_id", execution.ID,
		"mode", mode,
		"priority", priority,
	)

	return job.ID, nil
}

// DispatchRetry enqueues a fresh attempt for a failed execution without the
// automatic backoff, used by the manual retry endpoint.
func (d *Dispatcher) DispatchRetry(ctx context.Context, executionID string) (string, error) {
	execution, err := d.repo.ExecutionByID(ctx, executionID)
	if err != nil {
		return "", err
	}

	retry, err := execution.Retry()
	if err != nil {
		return "", err
	}

	err = d.repo.SaveExecution(ctx, retry)
	if err != nil {
		return "", err
	}

	err = d.client.Enqueue(ctx, &queue.ExecutionJob{
		ID:          retry.ID,
		WorkflowID:  retry.WorkflowID,
		ExecutionID: retry.ID,
		Mode:        retry.Mode,
		Priority:    queue.PriorityDefault,
		TriggerData: retry.InputData,
		RetryCount:  retry.RetryCount,
		EnqueuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	d.logger.InfoContext(ctx, "Dispatched manual retry",
		"workflow_id", retry.WorkflowID,
		"failed_execution_id", executionID,
		"execution_id", retry.ID,
	)

	return retry.ID, nil
}
