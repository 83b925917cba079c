package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomery/loom/pkg/channels/gochannel"
	"github.com/loomery/loom/pkg/dispatcher"
	"github.com/loomery/loom/pkg/execlog"
	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/persistence/file"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/registry"
	"github.com/loomery/loom/pkg/services"
	"github.com/loomery/loom/pkg/web"
	"github.com/loomery/loom/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close(t.Context())
	})

	reg := registry.NewRegistry(logger)
	registry.RegisterDefaultNodes(reg)

	repo := workflow.NewRepository(store)
	engine := workflow.NewEngine(reg, logger)
	recorder := execlog.NewRecorder(store, logger)

	publisher, subscriber, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	client := queue.NewWatermillClient(publisher, subscriber, logger)
	disp := dispatcher.NewDispatcher(client, repo, logger)

	workflowService := services.NewWorkflow(repo, engine)
	executionService := services.NewExecution(repo, engine, disp, recorder)
	nodeService := services.NewNode(reg)

	handlers := web.NewAPIHandlers(workflowService, executionService, nodeService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/validate", handlers.ValidateStoredWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Post("/:id/dispatch", handlers.DispatchWorkflow)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/logs", handlers.GetExecutionLogs)
	e.Post("/:id/cancel", handlers.CancelExecution)
	e.Post("/:id/retry", handlers.RetryExecution)

	n := app.Group("/nodes")
	n.Get("/", handlers.GetNodes)
	n.Get("/search", handlers.SearchNodes)
	n.Get("/:type/recommend", handlers.RecommendNodes)

	app.Post("/webhooks/:workflowID", handlers.HandleWebhook)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.NoError(t, resp.Body.Close())

	return resp, respBody
}

func createTestWorkflow(t *testing.T, app *fiber.App, req web.CreateWorkflowRequest) *models.Workflow {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var wf models.Workflow

	require.NoError(t, json.Unmarshal(body, &wf))
	require.NotEmpty(t, wf.ID)

	return &wf
}

func manualPipeline() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name: "manual pipeline",
		Nodes: []*models.WorkflowNode{
			{
				ID:       "start",
				Type:     models.NodeTypeTriggerManual,
				Category: models.CategoryTypeTrigger,
				Name:     "Start",
				Enabled:  true,
			},
			{
				ID:       "shape",
				Type:     "transform",
				Category: models.CategoryTypeTransformer,
				Name:     "Shape",
				Config:   map[string]any{"expression": `{"ok": true}`},
				Enabled:  true,
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourcePort: "start:main", TargetPort: "shape:main"},
		},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		rawBody        string
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Order Sync",
				Description: "Syncs orders into the warehouse",
				Owner:       "team-data",
				Variables:   map[string]any{"env": "test"},
				Metadata:    map[string]any{"category": "sync"},
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var wf models.Workflow

				require.NoError(t, json.Unmarshal(body, &wf))
				assert.Equal(t, "Order Sync", wf.Name)
				assert.Equal(t, "Syncs orders into the warehouse", wf.Description)
				assert.Equal(t, "team-data", wf.Owner)
				assert.Equal(t, models.WorkflowStatusDraft, wf.Status)
				assert.Equal(t, "test", wf.Variables["env"])
				assert.NotEmpty(t, wf.ID)
				assert.False(t, wf.CreatedAt.IsZero())
			},
		},
		{
			name:           "missing name",
			requestBody:    web.CreateWorkflowRequest{Description: "no name"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "name too short",
			requestBody:    web.CreateWorkflowRequest{Name: "ab"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			rawBody:        `{"name": "broken`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			var (
				resp *http.Response
				body []byte
			)

			if tt.rawBody != "" {
				req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewReader([]byte(tt.rawBody)))
				req.Header.Set("Content-Type", "application/json")

				var err error

				resp, err = app.Test(req)
				require.NoError(t, err)

				body, err = io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.NoError(t, resp.Body.Close())
			} else {
				resp, body = doJSON(t, app, http.MethodPost, "/workflows", tt.requestBody)
			}

			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "workflow_not_found", problem["type"])
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	newName := "renamed pipeline"
	status := models.WorkflowStatusActive

	resp, body := doJSON(t, app, http.MethodPatch, "/workflows/"+wf.ID, web.UpdateWorkflowRequest{
		Name:   &newName,
		Status: &status,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow

	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, models.WorkflowStatusActive, updated.Status)
	assert.Len(t, updated.Nodes, 2, "nodes are kept when the patch omits them")
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ValidateWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	t.Run("valid graph", func(t *testing.T) {
		manual := manualPipeline()

		resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", web.ValidateWorkflowRequest{
			Name:        manual.Name,
			Nodes:       manual.Nodes,
			Connections: manual.Connections,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var report services.ValidationReport

		require.NoError(t, json.Unmarshal(body, &report))
		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
	})

	t.Run("broken graph reports every problem", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", web.ValidateWorkflowRequest{
			Name: "broken",
			Nodes: []*models.WorkflowNode{
				{
					ID:       "a",
					Type:     "transform",
					Category: models.CategoryTypeTransformer,
					Name:     "A",
					Config:   map[string]any{"expression": "1"},
					Enabled:  true,
				},
				{
					ID:       "b",
					Type:     "transform",
					Category: models.CategoryTypeTransformer,
					Name:     "B",
					Config:   map[string]any{"expression": "2"},
					Enabled:  true,
				},
			},
			Connections: []*models.Connection{
				{ID: "c1", SourcePort: "a:main", TargetPort: "b:main"},
				{ID: "c2", SourcePort: "b:main", TargetPort: "a:main"},
			},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var report services.ValidationReport

		require.NoError(t, json.Unmarshal(body, &report))
		assert.False(t, report.Valid)
		assert.NotEmpty(t, report.Errors)
	})
}

func TestAPIHandlers_ExecuteWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/execute", web.ExecuteWorkflowRequest{
		Mode:        string(models.ExecutionModeManual),
		TriggerData: map[string]any{"source": "test"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result workflow.ExecutionResult

	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.ExecutionStatusSuccess, result.Status)
	assert.NotEmpty(t, result.ExecutionID)
	assert.NotEmpty(t, result.NodeResults)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+result.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var execution models.Execution

	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+result.ExecutionID+"/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var logsPage struct {
		Logs       []*models.ExecutionLogEntry `json:"logs"`
		TotalCount int                         `json:"total_count"`
	}

	require.NoError(t, json.Unmarshal(body, &logsPage))
	assert.NotEmpty(t, logsPage.Logs)
	assert.Equal(t, len(logsPage.Logs), logsPage.TotalCount)
}

func TestAPIHandlers_DispatchWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/dispatch", web.DispatchWorkflowRequest{
		Mode:     string(models.ExecutionModeManual),
		Priority: "high",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var ack web.DispatchResponse

	require.NoError(t, json.Unmarshal(body, &ack))
	assert.NotEmpty(t, ack.JobID)
	assert.Equal(t, ack.JobID, ack.ExecutionID)
	assert.Equal(t, string(models.ExecutionStatusWaiting), ack.Status)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+ack.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var execution models.Execution

	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
}

func TestAPIHandlers_DispatchWorkflow_InvalidPriority(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/dispatch", web.DispatchWorkflowRequest{
		Mode:     string(models.ExecutionModeManual),
		Priority: "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CancelExecution_NotRunning(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/execute", web.ExecuteWorkflowRequest{
		Mode: string(models.ExecutionModeManual),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result workflow.ExecutionResult

	require.NoError(t, json.Unmarshal(body, &result))

	resp, _ = doJSON(t, app, http.MethodPost, "/executions/"+result.ExecutionID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "finished runs cannot be canceled")
}

func TestAPIHandlers_RetryExecution_NotRetryable(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/execute", web.ExecuteWorkflowRequest{
		Mode: string(models.ExecutionModeManual),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result workflow.ExecutionResult

	require.NoError(t, json.Unmarshal(body, &result))

	resp, _ = doJSON(t, app, http.MethodPost, "/executions/"+result.ExecutionID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "successful runs cannot be retried")
}

func TestAPIHandlers_ListExecutionsByWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())
	other := createTestWorkflow(t, app, manualPipeline())

	for range 2 {
		resp, _ := doJSON(t, app, http.MethodPost, "/workflows/"+wf.ID+"/execute", web.ExecuteWorkflowRequest{
			Mode: string(models.ExecutionModeManual),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/"+other.ID+"/execute", web.ExecuteWorkflowRequest{
		Mode: string(models.ExecutionModeManual),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Executions []*models.Execution `json:"executions"`
		TotalCount int                 `json:"total_count"`
	}

	resp, body := doJSON(t, app, http.MethodGet, "/executions?workflow_id="+wf.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 2, page.TotalCount)

	resp, body = doJSON(t, app, http.MethodGet, "/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 3, page.TotalCount)
}

func TestAPIHandlers_Nodes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	var page struct {
		Nodes      []models.NodeDescriptor `json:"nodes"`
		TotalCount int                     `json:"total_count"`
	}

	resp, body := doJSON(t, app, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 10, page.TotalCount)

	resp, body = doJSON(t, app, http.MethodGet, "/nodes?category=trigger", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Nodes, 3)

	resp, body = doJSON(t, app, http.MethodGet, "/nodes/search?q=transform", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.NotEmpty(t, page.Nodes)

	ids := make([]string, 0, len(page.Nodes))
	for _, descriptor := range page.Nodes {
		ids = append(ids, descriptor.ID)
	}

	assert.Contains(t, ids, "transform")
}

func TestAPIHandlers_RecommendNodes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/nodes/transform/recommend", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var recommendation struct {
		NodeType        string   `json:"node_type"`
		Recommendations []string `json:"recommendations"`
	}

	require.NoError(t, json.Unmarshal(body, &recommendation))
	assert.Equal(t, "transform", recommendation.NodeType)
	assert.NotEmpty(t, recommendation.Recommendations)

	resp, _ = doJSON(t, app, http.MethodGet, "/nodes/nonsense/recommend", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Webhook(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	wf := createTestWorkflow(t, app, web.CreateWorkflowRequest{
		Name: "webhook pipeline",
		Nodes: []*models.WorkflowNode{
			{
				ID:       "hook",
				Type:     models.NodeTypeTriggerWebhook,
				Category: models.CategoryTypeTrigger,
				Name:     "Hook",
				Config: map[string]any{
					"path":          "/orders",
					"response_code": float64(201),
					"response_body": "accepted",
				},
				Enabled: true,
			},
			{
				ID:       "shape",
				Type:     "transform",
				Category: models.CategoryTypeTransformer,
				Name:     "Shape",
				Config:   map[string]any{"expression": `{{.trigger_data.body.order_id}}`},
				Enabled:  true,
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourcePort: "hook:main", TargetPort: "shape:main"},
		},
	})

	resp, body := doJSON(t, app, http.MethodPost, "/webhooks/"+wf.ID, map[string]any{"order_id": "o-42"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "accepted", string(body))
}

func TestAPIHandlers_Webhook_NoTrigger(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createTestWorkflow(t, app, manualPipeline())

	resp, _ := doJSON(t, app, http.MethodPost, "/webhooks/"+wf.ID, map[string]any{"k": "v"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}
