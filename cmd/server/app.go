package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/meetflow/meetflow-api/internal/api"
	"github.com/meetflow/meetflow-api/internal/board"
	"github.com/meetflow/meetflow-api/internal/config"
	"github.com/meetflow/meetflow-api/internal/events"
	"github.com/meetflow/meetflow-api/internal/extraction"
	"github.com/meetflow/meetflow-api/internal/platform/gemini"
	"github.com/meetflow/meetflow-api/internal/platform/postgres"
	"github.com/meetflow/meetflow-api/internal/platform/trello"
	"github.com/meetflow/meetflow-api/internal/service"
	"github.com/meetflow/meetflow-api/internal/store"
	"github.com/meetflow/meetflow-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	emailStore store.EmailStore

	extractor     extraction.Extractor
	boardClient   board.Client
	cardPublisher *board.CardPublisher

	emailService *service.EmailService

	eventEmitter events.EventEmitter
	taskRunner   *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized and the task runner started. It accepts core dependencies
// that must be established before application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.emailStore = postgres.NewPostgresEmailStore(db, logger)

	var err error
	app.extractor, err = gemini.NewGeminiExtractor(
		ctx,
		logger.With("component", "extractor"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	logger.Info("Meeting data extractor initialized", "model", cfg.LLM.ModelName)

	app.boardClient, err = trello.NewClient(cfg.Trello, logger.With("component", "trello_client"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize board client: %w", err)
	}

	lists := board.ListConfig{
		BoardID:           cfg.Trello.BoardID,
		SummaryListID:     cfg.Trello.SummaryListID,
		ActionItemsListID: cfg.Trello.ActionItemsListID,
	}
	app.cardPublisher, err = board.NewCardPublisher(app.boardClient, lists, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize card publisher: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	app.emailService, err = service.NewEmailService(db, app.emailStore, app.eventEmitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	taskFactory := task.NewEmailProcessingTaskFactory(
		app.emailService,
		app.extractor,
		app.cardPublisher,
		logger,
	)

	app.taskRunner = task.NewTaskRunner(app.emailStore, taskFactory, task.TaskRunnerConfig{
		WorkerCount:   cfg.Task.WorkerCount,
		QueueSize:     cfg.Task.QueueSize,
		StuckEmailAge: time.Duration(cfg.Task.StuckEmailAgeMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Task.SweepIntervalMinutes) * time.Minute,
	}, logger)

	// Events emitted by the service become tasks on the runner.
	handler := task.NewTaskFactoryEventHandler(taskFactory, app.taskRunner, logger)
	if emitter, ok := app.eventEmitter.(*events.InMemoryEventEmitter); ok {
		emitter.RegisterHandler(handler)
	} else {
		return nil, fmt.Errorf("unexpected event emitter type, cannot register task handler")
	}

	// Starting the runner also recovers records interrupted by a previous
	// shutdown, so it happens after the full pipeline is wired.
	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// healthProbes wires the status report's connection checks to the live
// dependencies: a database ping, a minimal model completion, and a fetch
// of the configured board.
func (app *application) healthProbes() api.HealthProbes {
	return api.HealthProbes{
		Database: func(ctx context.Context) error {
			return app.db.PingContext(ctx)
		},
		Extraction: func(ctx context.Context) error {
			return app.extractor.CheckConnection(ctx)
		},
		Board: func(ctx context.Context) error {
			return app.boardClient.CheckConnection(ctx, app.config.Trello.BoardID)
		},
	}
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
