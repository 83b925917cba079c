package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomery/loom/pkg/graph"
	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/workflow"
)

// Workflow exposes workflow CRUD and structural validation.
type Workflow struct {
	repo   *workflow.Repository
	engine *workflow.Engine
}

func NewWorkflow(repo *workflow.Repository, engine *workflow.Engine) *Workflow {
	return &Workflow{
		repo:   repo,
		engine: engine,
	}
}

// HealthCheck reports on the persistence layer backing the service.
func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	return s.repo.HealthCheck(ctx)
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.repo.FetchAll(ctx)
}

func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.repo.FetchByID(ctx, id)
}

func (s *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if wf.Name == "" {
		return nil, ErrWorkflowNameRequired
	}

	return s.repo.Create(ctx, wf)
}

func (s *Workflow) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	return s.repo.Update(ctx, id, wf)
}

func (s *Workflow) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ValidationReport is the outcome of a structural validation pass.
type ValidationReport struct {
	Valid  bool                     `json:"valid"`
	Errors []*graph.ValidationError `json:"errors,omitempty"`
}

// Validate resolves the workflow graph and reports every structural problem
// at once rather than stopping at the first.
func (s *Workflow) Validate(ctx context.Context, wf *models.Workflow) (*ValidationReport, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	err := s.engine.Validate(ctx, wf)
	if err == nil {
		return &ValidationReport{Valid: true}, nil
	}

	var problems graph.ValidationErrors
	if errors.As(err, &problems) {
		return &ValidationReport{Valid: false, Errors: problems}, nil
	}

	return nil, fmt.Errorf("validation failed: %w", err)
}

// ValidateByID validates a stored workflow.
func (s *Workflow) ValidateByID(ctx context.Context, id string) (*ValidationReport, error) {
	wf, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.Validate(ctx, wf)
}
