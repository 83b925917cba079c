package models

import "time"

// LogLevel classifies an execution log entry.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ExecutionLogEntry is one structured per-node trace record. Entries are
// append-only and never mutated after creation.
type ExecutionLogEntry struct {
	ExecutionID string         `json:"execution_id" validate:"required"`
	NodeID      string         `json:"node_id,omitempty"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewLogEntry creates a timestamped log entry.
func NewLogEntry(executionID, nodeID string, level LogLevel, message string, context map[string]any) ExecutionLogEntry {
	return ExecutionLogEntry{
		ExecutionID: executionID,
		NodeID:      nodeID,
		Level:       level,
		Message:     message,
		Context:     context,
		Timestamp:   time.Now().UTC(),
	}
}
