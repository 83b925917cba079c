// Package models defines core node-based workflow models for graph execution
package models

import (
	"time"
)

// CategoryType represents the category of node.
type CategoryType string

const (
	CategoryTypeTrigger     CategoryType = "trigger"     // Trigger nodes (webhook, scheduler, manual)
	CategoryTypeAction      CategoryType = "action"      // Side-effecting nodes (http, log, email)
	CategoryTypeTransformer CategoryType = "transformer" // Data reshaping nodes
	CategoryTypeLogic       CategoryType = "logic"       // Branching and joining nodes (switch, conditional, merge)
	CategoryTypeData        CategoryType = "data"        // Storage access nodes
	CategoryTypeCustom      CategoryType = "custom"      // Externally registered nodes
)

// Built-in trigger node types.
const (
	NodeTypeTriggerWebhook   = "trigger:webhook"
	NodeTypeTriggerScheduler = "trigger:scheduler"
	NodeTypeTriggerManual    = "trigger:manual"
)

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID       string         `json:"id"       validate:"required"`
	Type     string         `json:"type"     validate:"required"`
	Category CategoryType   `json:"category" validate:"required"`
	Config   map[string]any `json:"config"`
	Name     string         `json:"name"     validate:"required,min=1"`
	Enabled  bool           `json:"enabled"`

	// IgnoreErrors lets the run finish successfully even when this node fails.
	IgnoreErrors bool `json:"ignore_errors,omitempty"`

	// NonCritical allows sibling branches to continue after a retryable
	// failure of this node. The run still finalizes as error.
	NonCritical bool `json:"non_critical,omitempty"`
}

func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Category == CategoryTypeTrigger
}

// ErrorCategory classifies a node failure so the engine and dispatcher can
// decide whether continuing the graph or retrying the run is meaningful.
type ErrorCategory string

const (
	ErrorCategoryRetryable ErrorCategory = "retryable" // Timeouts, transient network faults
	ErrorCategoryFatal     ErrorCategory = "fatal"     // Validation, auth, misconfiguration
	ErrorCategoryCritical  ErrorCategory = "critical"  // Fatal and worth paging about
)

// ErrorInfo describes a node failure captured into its result.
type ErrorInfo struct {
	Message  string        `json:"message"`
	Code     string        `json:"code,omitempty"`
	Category ErrorCategory `json:"category"`
}

// NodeResult represents the result of a node execution on one output port.
type NodeResult struct {
	NodeID    string         `json:"node_id"`
	Data      map[string]any `json:"data"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     *ErrorInfo     `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// Failed reports whether the result carries a node failure.
func (r NodeResult) Failed() bool {
	return r.Status == string(NodeStatusError) || r.Error != nil
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusSkipped NodeStatus = "skipped"
)
