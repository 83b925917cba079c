package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/persistence"
	"github.com/loomery/loom/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"execution_logs", "executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("loom_test"),
			postgres.WithUsername("loom"),
			postgres.WithPassword("loom"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:        "Order pipeline",
		Description: "Fetches and reshapes order data",
		Status:      models.WorkflowStatusActive,
		Owner:       "team-orders",
		Nodes: []*models.WorkflowNode{
			{
				ID:       "start",
				Type:     "trigger:webhook",
				Category: models.CategoryTypeTrigger,
				Name:     "Incoming order",
				Config:   map[string]any{},
				Enabled:  true,
			},
			{
				ID:       "fetch",
				Type:     "httprequest",
				Category: models.CategoryTypeAction,
				Name:     "Fetch order",
				Config:   map[string]any{"url": "https://api.example.com/orders", "method": "GET"},
				Enabled:  true,
			},
		},
		Connections: []*models.Connection{
			{
				ID:         "c1",
				SourcePort: models.MakePortID("start", "main"),
				TargetPort: models.MakePortID("fetch", "main"),
			},
		},
		Variables: map[string]any{"region": "eu-west-1"},
		Metadata:  map[string]any{"team": "orders"},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"workflows", "executions", "execution_logs", "schema_migrations"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_SaveAndRetrieveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow()

	err := p.SaveWorkflow(ctx, workflow)
	require.NoError(t, err)
	require.NotEmpty(t, workflow.ID)
	require.False(t, workflow.CreatedAt.IsZero())

	found, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, workflow.Name, found.Name)
	assert.Equal(t, models.WorkflowStatusActive, found.Status)
	assert.Equal(t, "team-orders", found.Owner)
	require.Len(t, found.Nodes, 2)
	assert.Equal(t, "httprequest", found.Nodes[1].Type)
	assert.Equal(t, "https://api.example.com/orders", found.Nodes[1].Config["url"])
	require.Len(t, found.Connections, 1)
	assert.Equal(t, models.MakePortID("start", "main"), found.Connections[0].SourcePort)
	assert.Equal(t, map[string]any{"region": "eu-west-1"}, found.Variables)
}

func TestPersistence_WorkflowNotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	found, err := p.WorkflowByID(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPersistence_UpdateWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	createdAt := workflow.CreatedAt

	workflow.Name = "Order pipeline v2"
	workflow.Status = models.WorkflowStatusDraft
	workflow.Nodes = workflow.Nodes[:1]
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	found, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, "Order pipeline v2", found.Name)
	assert.Equal(t, models.WorkflowStatusDraft, found.Status)
	assert.Len(t, found.Nodes, 1)
	assert.WithinDuration(t, createdAt, found.CreatedAt, time.Second)
	assert.True(t, found.UpdatedAt.After(found.CreatedAt) || found.UpdatedAt.Equal(found.CreatedAt))
}

func TestPersistence_DeleteWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	err := p.DeleteWorkflow(ctx, workflow.ID)
	require.NoError(t, err)

	// Soft deleted rows disappear from reads.
	found, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = p.DeleteWorkflow(ctx, workflow.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_ListWorkflowsOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := testWorkflow()
	first.Name = "First workflow"
	require.NoError(t, p.SaveWorkflow(ctx, first))

	second := testWorkflow()
	second.Name = "Second workflow"
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt
	require.NoError(t, p.SaveWorkflow(ctx, second))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Second workflow", all[0].Name)
	assert.Equal(t, "First workflow", all[1].Name)
}

func TestPersistence_SaveAndRetrieveExecution(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	execution := models.NewExecution(workflow.ID, models.ExecutionModeWebhook, map[string]any{"order_id": "o-42"})
	require.NoError(t, p.SaveExecution(ctx, execution))

	require.NoError(t, execution.Start())
	require.NoError(t, execution.Complete(map[string]any{"total": 99.5}))
	require.NoError(t, p.SaveExecution(ctx, execution))

	found, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, workflow.ID, found.WorkflowID)
	assert.Equal(t, models.ExecutionStatusSuccess, found.Status)
	assert.Equal(t, models.ExecutionModeWebhook, found.Mode)
	assert.Equal(t, map[string]any{"order_id": "o-42"}, found.InputData)
	assert.Equal(t, map[string]any{"total": 99.5}, found.OutputData)
	require.NotNil(t, found.StartedAt)
	require.NotNil(t, found.FinishedAt)
	assert.Equal(t, execution.RetryCount, found.RetryCount)
	assert.Equal(t, execution.MaxRetries, found.MaxRetries)
}

func TestPersistence_ExecutionsByWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := testWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, first))

	second := testWorkflow()
	second.Name = "Other pipeline"
	require.NoError(t, p.SaveWorkflow(ctx, second))

	e1 := models.NewExecution(first.ID, models.ExecutionModeManual, nil)
	e2 := models.NewExecution(first.ID, models.ExecutionModeManual, nil)
	e2.CreatedAt = e1.CreatedAt.Add(time.Second)
	e3 := models.NewExecution(second.ID, models.ExecutionModeManual, nil)

	for _, execution := range []*models.Execution{e1, e2, e3} {
		require.NoError(t, p.SaveExecution(ctx, execution))
	}

	scoped, err := p.Executions(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, e2.ID, scoped[0].ID)
	assert.Equal(t, e1.ID, scoped[1].ID)

	all, err := p.Executions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPersistence_ExecutionLogs(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	execution := models.NewExecution(workflow.ID, models.ExecutionModeManual, nil)
	require.NoError(t, p.SaveExecution(ctx, execution))

	entries := []models.ExecutionLogEntry{
		models.NewLogEntry(execution.ID, "", models.LogLevelInfo, "execution started", nil),
		models.NewLogEntry(execution.ID, "fetch", models.LogLevelInfo, "node finished", map[string]any{"status": "success"}),
		models.NewLogEntry(execution.ID, "fetch", models.LogLevelError, "retry scheduled", map[string]any{"attempt": 2}),
	}

	for i := range entries {
		require.NoError(t, p.AppendExecutionLog(ctx, &entries[i]))
	}

	logs, err := p.ExecutionLogs(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, "execution started", logs[0].Message)
	assert.Empty(t, logs[0].NodeID)
	assert.Equal(t, "fetch", logs[1].NodeID)
	assert.Equal(t, models.LogLevelError, logs[2].Level)
	assert.Equal(t, map[string]any{"attempt": float64(2)}, logs[2].Context)

	other, err := p.ExecutionLogs(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, other)
}
