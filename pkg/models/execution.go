package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the lifecycle state of a single run.
type ExecutionStatus string

const (
	ExecutionStatusWaiting  ExecutionStatus = "waiting"
	ExecutionStatusRunning  ExecutionStatus = "running"
	ExecutionStatusSuccess  ExecutionStatus = "success"
	ExecutionStatusError    ExecutionStatus = "error"
	ExecutionStatusCanceled ExecutionStatus = "canceled"
)

// Terminal reports whether the status is absorbing.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusError || s == ExecutionStatusCanceled
}

// ExecutionMode identifies what kind of caller started the run.
type ExecutionMode string

const (
	ExecutionModeManual   ExecutionMode = "manual"
	ExecutionModeWebhook  ExecutionMode = "webhook"
	ExecutionModeSchedule ExecutionMode = "schedule"
	ExecutionModeAPI      ExecutionMode = "api"
)

var (
	// ErrInvalidTransition indicates a lifecycle transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid execution status transition")

	// ErrNotRetryable indicates a retry was requested for an execution that cannot be retried.
	ErrNotRetryable = errors.New("execution cannot be retried")
)

// Execution is one run of a workflow against a specific trigger payload.
// Lifecycle: waiting -> running -> exactly one of success/error/canceled.
type Execution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"  validate:"required"`
	Status       ExecutionStatus `json:"status"`
	Mode         ExecutionMode   `json:"mode"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	InputData    map[string]any  `json:"input_data,omitempty"`
	OutputData   map[string]any  `json:"output_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewExecution creates an execution in the waiting state.
func NewExecution(workflowID string, mode ExecutionMode, inputData map[string]any) *Execution {
	return &Execution{
		ID:         GenerateExecutionID(),
		WorkflowID: workflowID,
		Status:     ExecutionStatusWaiting,
		Mode:       mode,
		InputData:  inputData,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now().UTC(),
	}
}

// DefaultMaxRetries bounds whole-run retries for asynchronous executions.
const DefaultMaxRetries = 3

// Start transitions the execution from waiting to running.
func (e *Execution) Start() error {
	if e.Status != ExecutionStatusWaiting {
		return fmt.Errorf("%w: %s -> running", ErrInvalidTransition, e.Status)
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now

	return nil
}

// Complete finalizes a running execution as success.
func (e *Execution) Complete(outputData map[string]any) error {
	if e.Status != ExecutionStatusRunning {
		return fmt.Errorf("%w: %s -> success", ErrInvalidTransition, e.Status)
	}

	e.Status = ExecutionStatusSuccess
	e.OutputData = outputData
	e.finish()

	return nil
}

// Fail finalizes a running or waiting execution as error. Waiting is allowed
// so a job that never managed to start can still record its failure.
func (e *Execution) Fail(message string) error {
	if e.Status.Terminal() {
		return fmt.Errorf("%w: %s -> error", ErrInvalidTransition, e.Status)
	}

	e.Status = ExecutionStatusError
	e.ErrorMessage = message
	e.finish()

	return nil
}

// Cancel is an externally requested transition, only permitted while running.
// It does not roll back side effects already performed.
func (e *Execution) Cancel() error {
	if e.Status != ExecutionStatusRunning {
		return fmt.Errorf("%w: %s -> canceled", ErrInvalidTransition, e.Status)
	}

	e.Status = ExecutionStatusCanceled
	e.finish()

	return nil
}

// Suspend parks a running execution back in the waiting state until a wait
// node's resume time. It is the one permitted exit from running that is not
// terminal.
func (e *Execution) Suspend() error {
	if e.Status != ExecutionStatusRunning {
		return fmt.Errorf("%w: %s -> waiting", ErrInvalidTransition, e.Status)
	}

	e.Status = ExecutionStatusWaiting
	e.StartedAt = nil

	return nil
}

func (e *Execution) finish() {
	now := time.Now().UTC()
	e.FinishedAt = &now

	if e.StartedAt != nil {
		e.DurationMs = now.Sub(*e.StartedAt).Milliseconds()
	}
}

// CanBeRetried reports whether retry logic may create a follow-up run.
func (e *Execution) CanBeRetried() bool {
	return e.Status == ExecutionStatusError && e.RetryCount < e.MaxRetries
}

// Retry creates a NEW execution for the same workflow with the retry counter
// incremented and the input data preserved. The original record is not mutated.
func (e *Execution) Retry() (*Execution, error) {
	if !e.CanBeRetried() {
		return nil, fmt.Errorf("%w: status=%s retry_count=%d max_retries=%d",
			ErrNotRetryable, e.Status, e.RetryCount, e.MaxRetries)
	}

	retry := NewExecution(e.WorkflowID, e.Mode, e.InputData)
	retry.RetryCount = e.RetryCount + 1
	retry.MaxRetries = e.MaxRetries

	return retry, nil
}

// GenerateExecutionID generates a unique execution ID.
func GenerateExecutionID() string {
	return "exec-" + uuid.New().String()[:8]
}
