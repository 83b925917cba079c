// Package execlog records the per-node trace of workflow executions.
package execlog

import (
	"context"
	"log/slog"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/persistence"
)

// Recorder appends execution log entries to the store and mirrors them to
// the process logger. Storage failures are logged and swallowed: losing a
// trace line must never fail the run it describes.
type Recorder struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewRecorder(persistence persistence.Persistence, logger *slog.Logger) *Recorder {
	return &Recorder{
		persistence: persistence,
		logger:      logger.With("module", "execlog"),
	}
}

// Record appends one entry for the given execution.
func (r *Recorder) Record(ctx context.Context, executionID, nodeID string, level models.LogLevel, message string, fields map[string]any) {
	entry := models.NewLogEntry(executionID, nodeID, level, message, fields)

	r.logger.Log(ctx, slogLevel(level), message,
		"execution_id", executionID,
		"node_id", nodeID,
	)

	if err := r.persistence.AppendExecutionLog(ctx, &entry); err != nil {
		r.logger.Error("Failed to persist execution log entry",
			"execution_id", executionID,
			"error", err)
	}
}

// RecordResult traces one node outcome, picking the level from its status.
func (r *Recorder) RecordResult(ctx context.Context, executionID string, result models.NodeResult) {
	level := models.LogLevelInfo
	message := "node completed"
	fields := map[string]any{"status": result.Status}

	if result.Failed() {
		level = models.LogLevelError
		message = "node failed"

		if result.Error != nil {
			fields["error_code"] = result.Error.Code
			fields["error_category"] = string(result.Error.Category)
			message = result.Error.Message
		}
	}

	r.Record(ctx, executionID, result.NodeID, level, message, fields)
}

// History returns the stored entries for one execution in append order.
func (r *Recorder) History(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	return r.persistence.ExecutionLogs(ctx, executionID)
}

func slogLevel(level models.LogLevel) slog.Level {
	switch level {
	case models.LogLevelDebug:
		return slog.LevelDebug
	case models.LogLevelWarning:
		return slog.LevelWarn
	case models.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
