package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loomery/loom/pkg/execlog"
	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/nodes/wait"
	"github.com/loomery/loom/pkg/otelhelper"
	"github.com/loomery/loom/pkg/persistence"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/workflow"
)

// Worker consumes execution jobs and runs them through the engine. Failed
// attempts with a retryable error are re-enqueued as fresh executions after
// the backoff; suspended runs are re-enqueued against the same execution at
// their wake-up time.
type Worker struct {
	client   queue.Client
	repo     *workflow.Repository
	engine   *workflow.Engine
	recorder *execlog.Recorder
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewWorker(client queue.Client, repo *workflow.Repository, engine *workflow.Engine, recorder *execlog.Recorder, logger *slog.Logger) *Worker {
	return &Worker{
		client:   client,
		repo:     repo,
		engine:   engine,
		recorder: recorder,
		tracer:   noop.NewTracerProvider().Tracer("loom-worker"),
		logger:   logger.With("module", "worker"),
	}
}

// SetTracer replaces the noop tracer, typically with one built by
// otelhelper.NewTracer at process startup.
func (w *Worker) SetTracer(tracer trace.Tracer) {
	w.tracer = tracer
}

// Start begins consuming jobs. It does not block; cancel the context to
// stop.
func (w *Worker) Start(ctx context.Context) error {
	return w.client.Consume(ctx, w.Handle)
}

// Handle processes one job. A returned error requeues the job; run-level
// failures are recorded on the execution instead.
func (w *Worker) Handle(ctx context.Context, job *queue.ExecutionJob) error {
	logger := w.logger.With("job_id", job.ID, "workflow_id", job.WorkflowID, "execution_id", job.ExecutionID)

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.handle",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.WorkflowIDKey, job.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, job.ExecutionID),
		attribute.String(otelhelper.ModeKey, string(job.Mode)),
		attribute.String(otelhelper.PriorityKey, string(job.Priority)),
	)
	defer span.End()

	err := w.handle(ctx, logger, job)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (w *Worker) handle(ctx context.Context, logger *slog.Logger, job *queue.ExecutionJob) error {
	if job.NotBefore != nil {
		err := waitUntil(ctx, *job.NotBefore)
		if err != nil {
			return err
		}
	}

	execution, err := w.repo.ExecutionByID(ctx, job.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", job.ExecutionID, err)
	}

	if execution.Status.Terminal() {
		logger.WarnContext(ctx, "Skipping job for finished execution", "status", execution.Status)

		return nil
	}

	wf, err := w.repo.FetchByID(ctx, job.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			w.finalize(ctx, execution, "workflow no longer exists")

			return nil
		}

		return fmt.Errorf("failed to load workflow %s: %w", job.WorkflowID, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, AttemptTimeout)
	defer cancel()

	var opts []workflow.Option
	if job.Resumed {
		opts = append(opts, workflow.WithMetadata(map[string]any{wait.MetadataResumed: true}))
	}

	w.recorder.Record(ctx, execution.ID, "", models.LogLevelInfo, "execution attempt started", map[string]any{
		"retry_count": execution.RetryCount,
		"resumed":     job.Resumed,
	})

	result, err := w.engine.ExecuteSync(attemptCtx, wf, execution, opts...)
	if err != nil {
		return fmt.Errorf("engine failed before the run could start: %w", err)
	}

	saveErr := w.repo.SaveExecution(ctx, execution)
	if saveErr != nil {
		logger.ErrorContext(ctx, "Failed to persist execution state", "error", saveErr)
	}

	for _, nodeResult := range result.NodeResults {
		w.recorder.RecordResult(ctx, execution.ID, nodeResult)
	}

	switch {
	case result.Suspended:
		return w.requeueSuspended(ctx, logger, job, result.ResumeAt)
	case result.Status == models.ExecutionStatusError:
		return w.handleRunFailure(ctx, logger, job, execution, result)
	default:
		logger.InfoContext(ctx, "Execution finished", "status", result.Status)

		return nil
	}
}

// requeueSuspended parks the job until the wait node's wake-up time. The
// same execution record continues, marked as resumed so wait nodes pass
// through.
func (w *Worker) requeueSuspended(ctx context.Context, logger *slog.Logger, job *queue.ExecutionJob, resumeAt *time.Time) error {
	resume := &queue.ExecutionJob{
		ID:          w.client.GenerateID(),
		WorkflowID:  job.WorkflowID,
		ExecutionID: job.ExecutionID,
		Mode:        job.Mode,
		Priority:    job.Priority,
		TriggerData: job.TriggerData,
		RetryCount:  job.RetryCount,
		NotBefore:   resumeAt,
		Resumed:     true,
		EnqueuedAt:  time.Now().UTC(),
	}

	err := w.client.Enqueue(ctx, resume)
	if err != nil {
		return fmt.Errorf("failed to requeue suspended execution: %w", err)
	}

	logger.InfoContext(ctx, "Execution suspended", "resume_at", resumeAt)

	return nil
}

func (w *Worker) handleRunFailure(ctx context.Context, logger *slog.Logger, job *queue.ExecutionJob, execution *models.Execution, result *workflow.ExecutionResult) error {
	retryable := result.Error != nil && result.Error.Category == models.ErrorCategoryRetryable

	if retryable && execution.CanBeRetried() {
		return w.retry(ctx, logger, job, execution)
	}

	logger.ErrorContext(ctx, "Execution failed with no retries left",
		"error", execution.ErrorMessage,
		"retry_count", execution.RetryCount,
	)

	if result.Error != nil && result.Error.Category == models.ErrorCategoryCritical {
		w.signalCriticalFailure(ctx, logger, execution, result)
	}

	return nil
}

// retry creates a new execution for the next attempt, preserving the trigger
// data, and enqueues it after the fixed backoff.
func (w *Worker) retry(ctx context.Context, logger *slog.Logger, job *queue.ExecutionJob, execution *models.Execution) error {
	retry, err := execution.Retry()
	if err != nil {
		return err
	}

	err = w.repo.SaveExecution(ctx, retry)
	if err != nil {
		return fmt.Errorf("failed to persist retry execution: %w", err)
	}

	notBefore := time.Now().UTC().Add(RetryBackoff)

	err = w.client.Enqueue(ctx, &queue.ExecutionJob{
		ID:          retry.ID,
		WorkflowID:  job.WorkflowID,
		ExecutionID: retry.ID,
		Mode:        job.Mode,
		Priority:    job.Priority,
		TriggerData: job.TriggerData,
		RetryCount:  retry.RetryCount,
		NotBefore:   &notBefore,
		EnqueuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}

	w.recorder.Record(ctx, execution.ID, "", models.LogLevelWarning, "retry scheduled", map[string]any{
		"retry_execution_id": retry.ID,
		"retry_count":        retry.RetryCount,
		"backoff_seconds":    int(RetryBackoff.Seconds()),
	})

	logger.WarnContext(ctx, "Scheduled retry",
		"retry_execution_id", retry.ID,
		"retry_count", retry.RetryCount,
	)

	return nil
}

func (w *Worker) signalCriticalFailure(ctx context.Context, logger *slog.Logger, execution *models.Execution, result *workflow.ExecutionResult) {
	failure := &queue.CriticalFailure{
		WorkflowID:   execution.WorkflowID,
		ExecutionID:  execution.ID,
		ErrorMessage: execution.ErrorMessage,
		RetryCount:   execution.RetryCount,
		OccurredAt:   time.Now().UTC(),
	}

	if len(result.Failures) > 0 {
		failure.NodeID = result.Failures[len(result.Failures)-1].NodeID
	}

	err := w.client.PublishCriticalFailure(ctx, failure)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish critical failure signal", "error", err)
	}
}

func (w *Worker) finalize(ctx context.Context, execution *models.Execution, message string) {
	_ = execution.Fail(message)

	err := w.repo.SaveExecution(ctx, execution)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to finalize orphaned execution",
			"execution_id", execution.ID, "error", err)
	}
}

func waitUntil(ctx context.Context, t time.Time) error {
	delay := time.Until(t)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
