package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loomery/loom/pkg/models"
)

// ExecutionRepository handles execution and execution log database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , status
  , mode
  , started_at
  , finished_at
  , duration_ms
  , input_data
  , output_data
  , error_message
  , retry_count
  , max_retries
  , created_at
`

// Save upserts an execution row.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	inputData, err := json.Marshal(execution.InputData)
	if err != nil {
		return fmt.Errorf("failed to encode input data: %w", err)
	}

	outputData, err := json.Marshal(execution.OutputData)
	if err != nil {
		return fmt.Errorf("failed to encode output data: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, status, mode, started_at, finished_at,
			duration_ms, input_data, output_data, error_message,
			retry_count, max_retries, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			duration_ms = EXCLUDED.duration_ms,
			output_data = EXCLUDED.output_data,
			error_message = EXCLUDED.error_message,
			retry_count = EXCLUDED.retry_count
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.Mode,
		execution.StartedAt,
		execution.FinishedAt,
		execution.DurationMs,
		inputData,
		outputData,
		execution.ErrorMessage,
		execution.RetryCount,
		execution.MaxRetries,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// GetByID returns one execution, or nil when it does not exist.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ByWorkflow returns a workflow's executions, newest first. An empty
// workflow id returns every execution.
func (r *ExecutionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions`
	args := []any{}

	if workflowID != "" {
		query += ` WHERE workflow_id = $1`

		args = append(args, workflowID)
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// AppendLog inserts one execution log entry.
func (r *ExecutionRepository) AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error {
	logContext, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to encode log context: %w", err)
	}

	query := `
		INSERT INTO execution_logs (execution_id, node_id, level, message, context, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ExecutionID,
		entry.NodeID,
		entry.Level,
		entry.Message,
		logContext,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append log for execution %s: %w", entry.ExecutionID, err)
	}

	return nil
}

// Logs returns an execution's log entries in append order.
func (r *ExecutionRepository) Logs(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT execution_id, node_id, level, message, context, timestamp
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		var (
			entry      models.ExecutionLogEntry
			nodeID     sql.NullString
			logContext []byte
		)

		err := rows.Scan(
			&entry.ExecutionID,
			&nodeID,
			&entry.Level,
			&entry.Message,
			&logContext,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entry.NodeID = nodeID.String

		if err := unmarshalNullable(logContext, &entry.Context); err != nil {
			return nil, fmt.Errorf("failed to decode log context: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}

func (r *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution  models.Execution
		inputData  []byte
		outputData []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.Mode,
		&execution.StartedAt,
		&execution.FinishedAt,
		&execution.DurationMs,
		&inputData,
		&outputData,
		&execution.ErrorMessage,
		&execution.RetryCount,
		&execution.MaxRetries,
		&execution.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalNullable(inputData, &execution.InputData); err != nil {
		return nil, fmt.Errorf("failed to decode input data: %w", err)
	}

	if err := unmarshalNullable(outputData, &execution.OutputData); err != nil {
		return nil, fmt.Errorf("failed to decode output data: %w", err)
	}

	return &execution, nil
}
