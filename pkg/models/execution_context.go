package models

import "log/slog"

// ExecutionContext carries the per-run state a node sees during Execute.
type ExecutionContext struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Mode        ExecutionMode  `json:"mode"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	NodeResults map[string]any `json:"node_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Logger *slog.Logger `json:"-"`
}

// WithLogger returns a copy of the context carrying the given logger.
func (c ExecutionContext) WithLogger(logger *slog.Logger) ExecutionContext {
	c.Logger = logger

	return c
}
