package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/store"
)

// inFlightStatuses are the statuses a record can hold while a worker is
// (supposedly) driving it through the pipeline. A record found in one of
// these with no live worker was interrupted.
var inFlightStatuses = []domain.EmailStatus{
	domain.EmailStatusParsing,
	domain.EmailStatusParsed,
	domain.EmailStatusCreatingCards,
}

// recoverBatchSize bounds how many received records one recovery pass
// re-enqueues.
const recoverBatchSize = 100

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckEmailAge defines how long a record can sit in an in-flight
	// status before the sweep considers it abandoned and fails it
	StuckEmailAge time.Duration

	// SweepInterval defines how often to check for stuck records.
	// If zero, defaults to 5 minutes
	SweepInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:   2,
		QueueSize:     100,
		StuckEmailAge: 30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. The emails table is its
// only durable state: recovery and the stuck sweep both read record
// statuses and rebuild tasks through the factory, so nothing is lost when
// the in-memory queue dies with the process.
type TaskRunner struct {
	emailStore store.EmailStore
	factory    TaskFactory
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	emailStore store.EmailStore,
	factory TaskFactory,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if config.SweepInterval == 0 {
		config.SweepInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		emailStore: emailStore,
		factory:    factory,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "task_runner"),
	}
}

// Submit adds a new task to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start recovers interrupted work, then launches the worker pool and the
// stuck record sweep.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover emails: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckEmailMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. In-flight tasks observe the
// cancelled context; records they leave mid-pipeline are picked up on the
// next Start.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.queue.Close()
	r.wg.Wait()
}

// Recover reconciles the emails table with the fact that the previous
// process is gone: received records get fresh tasks, and records stuck in
// an in-flight status are failed so they surface on the retry listing
// instead of silently hanging forever.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	received, err := r.emailStore.FindByStatus(ctx, domain.EmailStatusReceived, recoverBatchSize, 0)
	if err != nil {
		return fmt.Errorf("failed to find received emails: %w", err)
	}

	interrupted := 0
	for _, status := range inFlightStatuses {
		records, err := r.emailStore.FindByStatus(ctx, status, recoverBatchSize, 0)
		if err != nil {
			return fmt.Errorf("failed to find %s emails: %w", status, err)
		}

		for _, record := range records {
			message := fmt.Sprintf("Processing interrupted by restart while %s", record.Status)
			if err := r.emailStore.MarkFailed(ctx, record.ID, message); err != nil {
				r.logger.Error("failed to mark interrupted email as failed",
					"email_id", record.ID,
					"status", record.Status,
					"error", err)
				continue
			}
			interrupted++
		}
	}

	r.logger.Info("recovering unfinished emails",
		"received_count", len(received),
		"interrupted_count", interrupted)

	for _, record := range received {
		r.enqueueEmail(record.ID)
	}

	return nil
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(t, id)
		}
	}
}

// processTask handles execution of a single task. Failure bookkeeping is
// the task's own job; the runner only logs.
func (r *TaskRunner) processTask(t Task, workerID int) {
	logger := r.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	logger.Info("processing task")

	if err := t.Execute(r.ctx); err != nil {
		logger.Error("task execution failed", "error", err)
		return
	}

	logger.Info("task completed successfully")
}

// stuckEmailMonitor periodically fails records abandoned in an in-flight
// status, and re-enqueues received records that never made it into the
// queue (for example because it was full at submission time).
func (r *TaskRunner) stuckEmailMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// sweepOnce runs a single stuck record sweep.
func (r *TaskRunner) sweepOnce() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-r.config.StuckEmailAge)

	for _, status := range inFlightStatuses {
		stuck, err := r.emailStore.FindStale(ctx, status, cutoff)
		if err != nil {
			r.logger.Error("failed to check for stuck emails",
				"status", status,
				"error", err)
			continue
		}

		for _, record := range stuck {
			message := fmt.Sprintf("Processing abandoned while %s", record.Status)
			if err := r.emailStore.MarkFailed(ctx, record.ID, message); err != nil {
				r.logger.Error("failed to mark stuck email as failed",
					"email_id", record.ID,
					"status", record.Status,
					"error", err)
				continue
			}
			r.logger.Warn("failed stuck email",
				"email_id", record.ID,
				"status", record.Status)
		}
	}

	// Received records older than the cutoff lost their task somewhere;
	// give them a new one.
	dropped, err := r.emailStore.FindStale(ctx, domain.EmailStatusReceived, cutoff)
	if err != nil {
		r.logger.Error("failed to check for dropped emails", "error", err)
		return
	}
	for _, record := range dropped {
		r.enqueueEmail(record.ID)
	}
}

// enqueueEmail builds a task for the email and enqueues it, logging
// instead of failing when the queue has no room. The stuck sweep retries
// dropped records on its next pass.
func (r *TaskRunner) enqueueEmail(emailID uuid.UUID) {
	t, err := r.factory.CreateTask(emailID)
	if err != nil {
		r.logger.Error("failed to create task for email",
			"email_id", emailID,
			"error", err)
		return
	}

	if err := r.queue.Enqueue(t); err != nil {
		r.logger.Error("failed to enqueue task for email",
			"email_id", emailID,
			"error", err)
	}
}
