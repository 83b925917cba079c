// Package persistence provides the data storage abstraction for workflows,
// executions and execution logs.
package persistence

import (
	"context"

	"github.com/loomery/loom/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	Executions(ctx context.Context, workflowID string) ([]*models.Execution, error)
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)

	AppendExecutionLog(ctx context.Context, entry *models.ExecutionLogEntry) error
	ExecutionLogs(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
