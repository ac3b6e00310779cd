package task

import (
	"log/slog"

	"github.com/google/uuid"
)

// EmailProcessingTaskFactory creates EmailProcessingTask instances
type EmailProcessingTaskFactory struct {
	emailService EmailService
	extractor    Extractor
	publisher    CardPublisher
	logger       *slog.Logger
}

// Ensure EmailProcessingTaskFactory implements TaskFactory
var _ TaskFactory = (*EmailProcessingTaskFactory)(nil)

// NewEmailProcessingTaskFactory creates a new factory for EmailProcessingTasks
func NewEmailProcessingTaskFactory(
	emailService EmailService,
	extractor Extractor,
	publisher CardPublisher,
	logger *slog.Logger,
) *EmailProcessingTaskFactory {
	return &EmailProcessingTaskFactory{
		emailService: emailService,
		extractor:    extractor,
		publisher:    publisher,
		logger:       logger.With("component", "email_processing_task_factory"),
	}
}

// CreateTask creates a new EmailProcessingTask for the specified email
func (f *EmailProcessingTaskFactory) CreateTask(emailID uuid.UUID) (Task, error) {
	task, err := NewEmailProcessingTask(
		emailID,
		f.emailService,
		f.extractor,
		f.publisher,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}
