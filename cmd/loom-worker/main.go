// Package main provides the Loom worker, which consumes execution jobs
// from the queue and runs them through the engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loomery/loom/pkg/cmd"
	"github.com/loomery/loom/pkg/dispatcher"
	"github.com/loomery/loom/pkg/execlog"
	"github.com/loomery/loom/pkg/log"
	"github.com/loomery/loom/pkg/otelhelper"
	"github.com/loomery/loom/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute queued workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-provider",
				Usage:   "Queue provider (kafka, redis, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("QUEUE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "json",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("loom-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Loom Worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			queueClient, err := cmd.NewQueueClient(ctx, logger, command.String("queue-provider"), workerID)
			if err != nil {
				return err
			}

			defer func() {
				if err := queueClient.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close queue client", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger)
			repo := workflow.NewRepository(persistence)
			engine := workflow.NewEngine(registry, logger)
			recorder := execlog.NewRecorder(persistence, logger)

			worker := dispatcher.NewWorker(queueClient, repo, engine, recorder, logger)

			tracer, err := otelhelper.NewTracer(ctx, "loom-worker")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			} else {
				worker.SetTracer(tracer)
			}

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

				return err
			}

			logger.InfoContext(ctx, "Worker started, waiting for jobs")

			<-ctx.Done()

			logger.Info("Shutting down worker")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
