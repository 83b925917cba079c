package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomery/loom/pkg/dispatcher"
	"github.com/loomery/loom/pkg/execlog"
	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/workflow"
)

// Execution runs workflows synchronously, hands async runs to the
// dispatcher and exposes execution history. The dispatcher is optional; a
// deployment without a broker still serves synchronous runs.
type Execution struct {
	repo       *workflow.Repository
	engine     *workflow.Engine
	dispatcher *dispatcher.Dispatcher
	recorder   *execlog.Recorder
}

func NewExecution(repo *workflow.Repository, engine *workflow.Engine, d *dispatcher.Dispatcher, recorder *execlog.Recorder) *Execution {
	return &Execution{
		repo:       repo,
		engine:     engine,
		dispatcher: d,
		recorder:   recorder,
	}
}

var validModes = map[models.ExecutionMode]bool{
	models.ExecutionModeManual:   true,
	models.ExecutionModeWebhook:  true,
	models.ExecutionModeSchedule: true,
	models.ExecutionModeAPI:      true,
}

var validPriorities = map[queue.Priority]bool{
	queue.PriorityHigh:    true,
	queue.PriorityDefault: true,
	queue.PriorityLow:     true,
}

// Execute runs the workflow to completion in the calling goroutine and
// persists the execution record and its log.
func (s *Execution) Execute(ctx context.Context, workflowID string, mode models.ExecutionMode, triggerData map[string]any) (*workflow.ExecutionResult, error) {
	if !validModes[mode] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	wf, err := s.repo.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	execution := models.NewExecution(wf.ID, mode, triggerData)

	err = s.repo.SaveExecution(ctx, execution)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.ExecuteSync(ctx, wf, execution)
	if err != nil {
		return nil, err
	}

	saveErr := s.repo.SaveExecution(ctx, execution)
	if saveErr != nil {
		return nil, fmt.Errorf("run finished but saving its state failed: %w", saveErr)
	}

	for _, nodeResult := range result.NodeResults {
		s.recorder.RecordResult(ctx, execution.ID, nodeResult)
	}

	return result, nil
}

// Dispatch enqueues an asynchronous run and returns the job id, which also
// identifies the execution record created for the first attempt.
func (s *Execution) Dispatch(ctx context.Context, workflowID string, mode models.ExecutionMode, triggerData map[string]any, priority queue.Priority) (string, error) {
	if s.dispatcher == nil {
		return "", ErrDispatchUnavailable
	}

	if !validModes[mode] {
		return "", fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	if priority == "" {
		priority = queue.PriorityDefault
	}

	if !validPriorities[priority] {
		return "", fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}

	return s.dispatcher.Dispatch(ctx, workflowID, mode, triggerData, priority)
}

func (s *Execution) Get(ctx context.Context, id string) (*models.Execution, error) {
	return s.repo.ExecutionByID(ctx, id)
}

// List returns executions, newest first, optionally scoped to a workflow.
func (s *Execution) List(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.repo.Executions(ctx, workflowID)
}

func (s *Execution) Logs(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	return s.recorder.History(ctx, executionID)
}

// Cancel marks a running execution canceled. The owning worker observes the
// cancellation cooperatively between nodes.
func (s *Execution) Cancel(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := s.repo.ExecutionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = execution.Cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotRunning, execution.Status)
	}

	err = s.repo.SaveExecution(ctx, execution)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, execution.ID, "", models.LogLevelWarning, "execution canceled", nil)

	return execution, nil
}

// Retry dispatches a fresh attempt for a failed execution.
func (s *Execution) Retry(ctx context.Context, id string) (string, error) {
	if s.dispatcher == nil {
		return "", ErrDispatchUnavailable
	}

	retryID, err := s.dispatcher.DispatchRetry(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotRetryable) {
			return "", fmt.Errorf("%w: %s", ErrExecutionNotRetryable, err.Error())
		}

		return "", err
	}

	return retryID, nil
}
