package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	nodeService      *services.Node
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	nodeService *services.Node,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		nodeService:      nodeService,
		validator:        validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Variables:   req.Variables,
		Metadata:    req.Metadata,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Connections != nil {
		existing.Connections = req.Connections
	}

	if req.Variables != nil {
		existing.Variables = req.Variables
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateWorkflow checks an inline workflow document and reports every
// structural problem at once.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req ValidateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	report, err := h.workflowService.Validate(c.Context(), &models.Workflow{
		Name:        req.Name,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Variables:   req.Variables,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

// ValidateStoredWorkflow validates a persisted workflow.
func (h *APIHandlers) ValidateStoredWorkflow(c fiber.Ctx) error {
	report, err := h.workflowService.ValidateByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

// ExecuteWorkflow runs the workflow synchronously and returns the full
// execution result.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	mode := models.ExecutionMode(req.Mode)
	if mode == "" {
		mode = models.ExecutionModeAPI
	}

	result, err := h.executionService.Execute(c.Context(), c.Params("id"), mode, req.TriggerData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// DispatchWorkflow enqueues an asynchronous run.
func (h *APIHandlers) DispatchWorkflow(c fiber.Ctx) error {
	var req DispatchWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	mode := models.ExecutionMode(req.Mode)
	if mode == "" {
		mode = models.ExecutionModeAPI
	}

	jobID, err := h.executionService.Dispatch(c.Context(), c.Params("id"), mode, req.TriggerData, queue.Priority(req.Priority))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(DispatchResponse{
		JobID:       jobID,
		ExecutionID: jobID,
		Status:      string(models.ExecutionStatusWaiting),
	})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	executions, err := h.executionService.List(c.Context(), c.Query("workflow_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	logs, err := h.executionService.Logs(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":        logs,
		"total_count": len(logs),
	})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	retryID, err := h.executionService.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(RetryResponse{
		ExecutionID: retryID,
		Status:      string(models.ExecutionStatusWaiting),
	})
}

// GetNodes returns the node manifest, optionally filtered by category.
func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	var nodes []models.NodeDescriptor

	if category := c.Query("category"); category != "" {
		nodes = h.nodeService.ByCategory(models.CategoryType(category))
	} else {
		nodes = h.nodeService.Manifest()
	}

	return c.JSON(fiber.Map{
		"nodes":       nodes,
		"total_count": len(nodes),
	})
}

func (h *APIHandlers) SearchNodes(c fiber.Ctx) error {
	nodes := h.nodeService.Search(c.Query("q"))

	return c.JSON(fiber.Map{
		"nodes":       nodes,
		"total_count": len(nodes),
	})
}

// RecommendNodes lists node types able to consume the given type's outputs.
func (h *APIHandlers) RecommendNodes(c fiber.Ctx) error {
	recommendations, err := h.nodeService.Recommend(c.Params("type"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"node_type":       c.Params("type"),
		"recommendations": recommendations,
	})
}
