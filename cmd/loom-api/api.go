// Package main provides the Loom API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/loomery/loom/pkg/dispatcher"
	"github.com/loomery/loom/pkg/execlog"
	"github.com/loomery/loom/pkg/persistence"
	"github.com/loomery/loom/pkg/queue"
	"github.com/loomery/loom/pkg/registry"
	"github.com/loomery/loom/pkg/services"
	"github.com/loomery/loom/pkg/web"
	"github.com/loomery/loom/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	queueClient queue.Client
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	queueClient queue.Client,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		queueClient: queueClient,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	repo := workflow.NewRepository(a.persistence)
	engine := workflow.NewEngine(a.registry, a.logger)
	recorder := execlog.NewRecorder(a.persistence, a.logger)

	var disp *dispatcher.Dispatcher
	if a.queueClient != nil {
		disp = dispatcher.NewDispatcher(a.queueClient, repo, a.logger)
	}

	workflowService := services.NewWorkflow(repo, engine)
	executionService := services.NewExecution(repo, engine, disp, recorder)
	nodeService := services.NewNode(a.registry)

	handlers := web.NewAPIHandlers(workflowService, executionService, nodeService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

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

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
