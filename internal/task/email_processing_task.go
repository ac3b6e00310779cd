package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/board"
	"github.com/meetflow/meetflow-api/internal/domain"
)

// Task type constants
const (
	// TaskTypeEmailProcessing represents the task type for processing
	// inbound meeting emails into board cards
	TaskTypeEmailProcessing = "email_processing"
)

// Common errors
var (
	ErrNilEmailService  = errors.New("email service cannot be nil")
	ErrNilExtractor     = errors.New("extractor cannot be nil")
	ErrNilCardPublisher = errors.New("card publisher cannot be nil")
	ErrNilLogger        = errors.New("logger cannot be nil")
	ErrEmptyEmailID     = errors.New("email ID cannot be empty")
)

// EmailService defines the stage-write operations the processing task needs.
// Every write goes through the service so the status state machine is
// enforced in one place.
type EmailService interface {
	// GetEmail retrieves an email record by its ID
	GetEmail(ctx context.Context, emailID uuid.UUID) (*domain.EmailRecord, error)

	// MarkParsing moves the record from received to parsing, claiming it
	// for this pipeline run
	MarkParsing(ctx context.Context, emailID uuid.UUID) error

	// SaveExtraction persists the extraction result, moving the record to parsed
	SaveExtraction(ctx context.Context, emailID uuid.UUID, meeting *domain.MeetingData) error

	// MarkCreatingCards moves the record from parsed to creating_cards
	MarkCreatingCards(ctx context.Context, emailID uuid.UUID) error

	// CompleteEmail persists the card references, moving the record to completed
	CompleteEmail(ctx context.Context, emailID uuid.UUID, summaryRef string, itemRefs []string) error

	// FailEmail moves the record to failed with the given error message
	FailEmail(ctx context.Context, emailID uuid.UUID, message string) error
}

// Extractor defines the interface for the meeting data extraction service
type Extractor interface {
	// ExtractMeetingData extracts structured meeting data from email text
	ExtractMeetingData(ctx context.Context, subject, body string) (*domain.MeetingData, error)
}

// CardPublisher defines the interface for publishing meeting data to the board
type CardPublisher interface {
	// Publish creates the summary card and the action item cards
	Publish(ctx context.Context, meeting *domain.MeetingData, emailSubject string) (*board.PublishResult, error)
}

// EmailProcessingTask implements the Task interface for running one email
// through the extraction and card publishing pipeline. Every stage
// transition is written to the store before the next stage starts, so a
// crash leaves a record whose status says exactly how far it got.
type EmailProcessingTask struct {
	id           uuid.UUID
	emailID      uuid.UUID
	emailService EmailService
	extractor    Extractor
	publisher    CardPublisher
	logger       *slog.Logger
}

// NewEmailProcessingTask creates a new email processing task
func NewEmailProcessingTask(
	emailID uuid.UUID,
	emailService EmailService,
	extractor Extractor,
	publisher CardPublisher,
	logger *slog.Logger,
) (*EmailProcessingTask, error) {
	// Validate dependencies
	if emailService == nil {
		return nil, ErrNilEmailService
	}
	if extractor == nil {
		return nil, ErrNilExtractor
	}
	if publisher == nil {
		return nil, ErrNilCardPublisher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if emailID == uuid.Nil {
		return nil, ErrEmptyEmailID
	}

	return &EmailProcessingTask{
		id:           uuid.New(),
		emailID:      emailID,
		emailService: emailService,
		extractor:    extractor,
		publisher:    publisher,
		logger:       logger.With("task_type", TaskTypeEmailProcessing, "email_id", emailID),
	}, nil
}

// ID returns the task's unique identifier
func (t *EmailProcessingTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *EmailProcessingTask) Type() string {
	return TaskTypeEmailProcessing
}

// Execute runs the email through the pipeline: claim the record, extract
// meeting data, persist it, publish cards, and record the card references.
// Any stage failure moves the record to failed with a stage-specific
// message; the returned error is for the runner's logging only.
func (t *EmailProcessingTask) Execute(ctx context.Context) error {
	t.logger.Info("starting email processing task")

	if err := ctx.Err(); err != nil {
		t.logger.Error("task cancelled by context", "error", err)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// 1. Claim the record. A failure here means the record is missing or
	// already past received (a duplicate submission); nothing to fail.
	if err := t.emailService.MarkParsing(ctx, t.emailID); err != nil {
		t.logger.Error("failed to claim email for processing", "error", err)
		return fmt.Errorf("failed to claim email for processing: %w", err)
	}

	// 2. Load the content to process.
	record, err := t.emailService.GetEmail(ctx, t.emailID)
	if err != nil {
		t.failWith(ctx, fmt.Sprintf("Failed to load email: %v", err))
		return fmt.Errorf("failed to load email: %w", err)
	}

	// 3. Extract meeting data.
	t.logger.Info("extracting meeting data", "subject", record.Subject)
	meeting, err := t.extractor.ExtractMeetingData(ctx, record.Subject, record.Body)
	if err != nil {
		t.failWith(ctx, fmt.Sprintf("Parsing failed: %v", err))
		return fmt.Errorf("failed to extract meeting data: %w", err)
	}

	t.logger.Info("meeting data extracted",
		"action_items", len(meeting.ActionItems),
		"participants", len(meeting.Participants))

	// 4. Persist the extraction result before touching the board: a crash
	// from here on never loses the model's output.
	if err := t.emailService.SaveExtraction(ctx, t.emailID, meeting); err != nil {
		t.failWith(ctx, fmt.Sprintf("Failed to save extraction result: %v", err))
		return fmt.Errorf("failed to save extraction result: %w", err)
	}

	// 5. Enter the publishing stage.
	if err := t.emailService.MarkCreatingCards(ctx, t.emailID); err != nil {
		t.failWith(ctx, fmt.Sprintf("Failed to enter card creation: %v", err))
		return fmt.Errorf("failed to enter card creation: %w", err)
	}

	// 6. Publish the cards.
	result, err := t.publisher.Publish(ctx, meeting, record.Subject)
	if err != nil {
		t.failWith(ctx, fmt.Sprintf("Card creation failed: %v", err))
		return fmt.Errorf("failed to publish cards: %w", err)
	}

	t.logger.Info("cards published",
		"summary_card_ref", result.SummaryCardRef,
		"action_item_cards", len(result.ActionItemCardRefs))

	// 7. Record the card references and complete.
	if err := t.emailService.CompleteEmail(ctx, t.emailID, result.SummaryCardRef, result.ActionItemCardRefs); err != nil {
		t.failWith(ctx, fmt.Sprintf("Failed to record card references: %v", err))
		return fmt.Errorf("failed to record card references: %w", err)
	}

	t.logger.Info("email processing task completed")
	return nil
}

// failWith moves the record to failed with the given message. The write is
// best-effort with one retry: if both attempts fail the record stays
// in-flight and the stuck sweep will eventually fail it.
func (t *EmailProcessingTask) failWith(ctx context.Context, message string) {
	err := t.emailService.FailEmail(ctx, t.emailID, message)
	if err == nil {
		return
	}

	t.logger.Error("failed to mark email as failed, retrying once", "error", err)
	if err := t.emailService.FailEmail(ctx, t.emailID, message); err != nil {
		t.logger.Error("failed to mark email as failed after retry, leaving to stuck sweep",
			"error", err)
	}
}
