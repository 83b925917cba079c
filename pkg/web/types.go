// Package web provides the HTTP layer of the workflow API.
package web

import "github.com/loomery/loom/pkg/models"

// CreateWorkflowRequest is the body for creating a workflow. Nodes and
// connections may be supplied up front or patched in later.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	Owner       string                 `json:"owner"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Connections []*models.Connection   `json:"connections"`
	Variables   map[string]any         `json:"variables"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// UpdateWorkflowRequest supports partial updates. Nil fields are left
// untouched; nodes and connections are replaced as a whole when present.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Status      *models.WorkflowStatus `json:"status,omitempty"`
	Nodes       []*models.WorkflowNode `json:"nodes,omitempty"`
	Connections []*models.Connection   `json:"connections,omitempty"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// ExecuteWorkflowRequest is the body for a synchronous run.
type ExecuteWorkflowRequest struct {
	Mode        string         `json:"mode"         validate:"omitempty,oneof=manual webhook schedule api"`
	TriggerData map[string]any `json:"trigger_data"`
}

// DispatchWorkflowRequest is the body for an asynchronous run.
type DispatchWorkflowRequest struct {
	Mode        string         `json:"mode"         validate:"omitempty,oneof=manual webhook schedule api"`
	Priority    string         `json:"priority"     validate:"omitempty,oneof=high default low"`
	TriggerData map[string]any `json:"trigger_data"`
}

// DispatchResponse acknowledges an enqueued run.
type DispatchResponse struct {
	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// RetryResponse acknowledges a manual retry.
type RetryResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// ValidateWorkflowRequest carries an inline workflow document to validate.
type ValidateWorkflowRequest struct {
	Name        string                 `json:"name"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Connections []*models.Connection   `json:"connections"`
	Variables   map[string]any         `json:"variables"`
}
