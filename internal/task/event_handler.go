package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/events"
)

// taskSubmitter is the slice of the runner the event handler needs.
type taskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface
// to handle email processing events: it builds a task through the factory
// and submits it to the runner.
type TaskFactoryEventHandler struct {
	factory TaskFactory
	runner  taskSubmitter
	logger  *slog.Logger
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// NewTaskFactoryEventHandler creates a new event handler that uses the
// given task factory to create tasks, and submits them to the provided
// task runner.
func NewTaskFactoryEventHandler(
	factory TaskFactory,
	runner taskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent processes email processing request events by creating and
// submitting tasks. Events of other types are ignored.
func (h *TaskFactoryEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	if event.Type != events.TaskTypeEmailProcessing {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.EmailProcessingPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.EmailID == uuid.Nil {
		h.logger.Error("event payload has no email ID", "event_id", event.ID)
		return fmt.Errorf("event payload has no email ID")
	}

	t, err := h.factory.CreateTask(payload.EmailID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"email_id", payload.EmailID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"email_id", payload.EmailID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted",
		"task_id", t.ID(),
		"email_id", payload.EmailID,
		"event_id", event.ID)
	return nil
}
