package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/events"
	"github.com/meetflow/meetflow-api/internal/store"
)

const (
	// retryCeiling is the maximum number of retries after which a failed
	// email is no longer offered for retry.
	retryCeiling = 3

	// retryableListLimit caps the number of failed emails returned by
	// ListRetryableEmails.
	retryableListLimit = 50

	// recentListLimit caps the recent-email and average-processing-time
	// windows in the status report.
	recentListLimit = 10
)

// StatusReport aggregates the processing statistics surface: per-status
// counts, the most recently ingested emails, and the average end-to-end
// processing time over the latest completed records.
type StatusReport struct {
	Counts        map[domain.EmailStatus]int
	RecentEmails  []*domain.EmailRecord
	AvgProcessing time.Duration // zero when nothing has completed yet
}

// EmailServiceError wraps errors from the email service with context.
type EmailServiceError struct {
	// Operation is the operation that failed (e.g., "ingest_email", "retry_email")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for EmailServiceError.
func (e *EmailServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("email service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("email service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EmailServiceError) Unwrap() error {
	return e.Err
}

// NewEmailServiceError creates a new EmailServiceError.
// It returns known sentinel errors directly without wrapping.
func NewEmailServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	// Check for service-defined sentinel errors
	if errors.Is(err, ErrEmailNotFound) {
		return ErrEmailNotFound
	}
	if errors.Is(err, ErrRetryNotAllowed) {
		return ErrRetryNotAllowed
	}
	if errors.Is(err, ErrEmptyEmailBody) {
		return ErrEmptyEmailBody
	}

	// Check for store and domain sentinel errors that map to service-level ones
	if errors.Is(err, store.ErrEmailNotFound) {
		return ErrEmailNotFound
	}
	if errors.Is(err, store.ErrRetryConflict) {
		return ErrRetryNotAllowed
	}
	if errors.Is(err, domain.ErrEmptyEmailBody) {
		return ErrEmptyEmailBody
	}

	// If not a sentinel to be returned directly, wrap it
	return &EmailServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// EmailService owns the email processing lifecycle: it ingests inbound
// emails, advances records through the pipeline on behalf of processing
// tasks, and handles retries of failed records. Status transitions are
// validated against the domain state machine inside a transaction, so a
// record can never skip a stage or leave a terminal state through this
// service.
type EmailService struct {
	db           *sql.DB
	emailStore   store.EmailStore
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewEmailService creates a new EmailService.
// It returns an error if any of the required dependencies are nil.
func NewEmailService(
	db *sql.DB,
	emailStore store.EmailStore,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (*EmailService, error) {
	if db == nil {
		return nil, &EmailServiceError{
			Operation: "create_service",
			Message:   "db cannot be nil",
		}
	}
	if emailStore == nil {
		return nil, &EmailServiceError{
			Operation: "create_service",
			Message:   "emailStore cannot be nil",
		}
	}
	if eventEmitter == nil {
		return nil, &EmailServiceError{
			Operation: "create_service",
			Message:   "eventEmitter cannot be nil",
		}
	}
	if logger == nil {
		return nil, &EmailServiceError{
			Operation: "create_service",
			Message:   "logger cannot be nil",
		}
	}

	return &EmailService{
		db:           db,
		emailStore:   emailStore,
		eventEmitter: eventEmitter,
		logger:       logger,
	}, nil
}

// IngestEmail persists a new inbound email with received status and emits an
// event requesting asynchronous processing. The record creation is
// transactional; the returned record reflects the stored state.
func (s *EmailService) IngestEmail(
	ctx context.Context,
	subject, body, sender string,
	receivedAt time.Time,
) (*domain.EmailRecord, error) {
	record, err := domain.NewEmailRecord(subject, body, sender, receivedAt)
	if err != nil {
		s.logger.Error("failed to create email record",
			"error", err,
			"sender", sender)
		return nil, NewEmailServiceError("ingest_email", "failed to create email record", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.emailStore.WithTx(tx)

		if err := txStore.Create(ctx, record); err != nil {
			s.logger.Error("failed to create email in transaction",
				"error", err,
				"email_id", record.ID)
			return NewEmailServiceError("ingest_email", "failed to save email to database", err)
		}
		return nil
	})
	if err != nil {
		// Error is already wrapped in the transaction
		return nil, err
	}

	s.logger.Info("email ingested with received status",
		"email_id", record.ID,
		"sender", record.Sender)

	if err := s.emitProcessingEvent(ctx, record.ID); err != nil {
		return nil, NewEmailServiceError("ingest_email", "failed to request processing", err)
	}

	return record, nil
}

// GetEmail retrieves an email record by its ID.
func (s *EmailService) GetEmail(ctx context.Context, emailID uuid.UUID) (*domain.EmailRecord, error) {
	record, err := s.emailStore.GetByID(ctx, emailID)
	if err != nil {
		s.logger.Error("failed to retrieve email",
			"error", err,
			"email_id", emailID)

		if errors.Is(err, store.ErrEmailNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, NewEmailServiceError("get_email", "failed to retrieve email", err)
	}
	return record, nil
}

// MarkParsing moves an email from received to parsing. It is the claim step
// a processing task performs before doing any work.
func (s *EmailService) MarkParsing(ctx context.Context, emailID uuid.UUID) error {
	return s.transition(ctx, "mark_parsing", emailID, domain.EmailStatusParsing)
}

// SaveExtraction stores the extracted meeting data and moves the email from
// parsing to parsed in a single transactional write.
func (s *EmailService) SaveExtraction(
	ctx context.Context,
	emailID uuid.UUID,
	meeting *domain.MeetingData,
) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.emailStore.WithTx(tx)

		record, err := txStore.GetByID(ctx, emailID)
		if err != nil {
			return err
		}
		if err := record.TransitionTo(domain.EmailStatusParsed); err != nil {
			return err
		}
		return txStore.SaveExtraction(ctx, emailID, meeting)
	})
	if err != nil {
		s.logger.Error("failed to save extraction",
			"error", err,
			"email_id", emailID)
		return NewEmailServiceError("save_extraction", "failed to save extraction result", err)
	}

	s.logger.Debug("extraction saved",
		"email_id", emailID)
	return nil
}

// MarkCreatingCards moves an email from parsed to creating_cards before the
// card publishing step begins.
func (s *EmailService) MarkCreatingCards(ctx context.Context, emailID uuid.UUID) error {
	return s.transition(ctx, "mark_creating_cards", emailID, domain.EmailStatusCreatingCards)
}

// CompleteEmail stores the created card references and moves the email to
// the completed terminal status.
func (s *EmailService) CompleteEmail(
	ctx context.Context,
	emailID uuid.UUID,
	summaryRef string,
	itemRefs []string,
) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.emailStore.WithTx(tx)

		record, err := txStore.GetByID(ctx, emailID)
		if err != nil {
			return err
		}
		if err := record.TransitionTo(domain.EmailStatusCompleted); err != nil {
			return err
		}
		return txStore.SaveCardRefs(ctx, emailID, summaryRef, itemRefs)
	})
	if err != nil {
		s.logger.Error("failed to complete email",
			"error", err,
			"email_id", emailID)
		return NewEmailServiceError("complete_email", "failed to record card references", err)
	}

	s.logger.Info("email processing completed",
		"email_id", emailID)
	return nil
}

// FailEmail marks an email as failed with the given message. Terminal
// records are left untouched: completed emails cannot fail, and a failed
// email keeps its original error message.
func (s *EmailService) FailEmail(ctx context.Context, emailID uuid.UUID, message string) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.emailStore.WithTx(tx)

		record, err := txStore.GetByID(ctx, emailID)
		if err != nil {
			return err
		}
		if err := record.TransitionTo(domain.EmailStatusFailed); err != nil {
			return err
		}
		return txStore.MarkFailed(ctx, emailID, message)
	})
	if err != nil {
		s.logger.Error("failed to mark email as failed",
			"error", err,
			"email_id", emailID)
		return NewEmailServiceError("fail_email", "failed to mark email as failed", err)
	}

	s.logger.Warn("email marked as failed",
		"email_id", emailID,
		"error_message", message)
	return nil
}

// ListRetryableEmails returns failed emails that have not exhausted the
// retry ceiling, most recent first.
func (s *EmailService) ListRetryableEmails(ctx context.Context) ([]*domain.EmailRecord, error) {
	records, err := s.emailStore.FindRetryable(ctx, retryCeiling, retryableListLimit)
	if err != nil {
		s.logger.Error("failed to list retryable emails",
			"error", err)
		return nil, NewEmailServiceError("list_retryable", "failed to list retryable emails", err)
	}
	return records, nil
}

// RetryEmail resets a failed email back to received, increments its retry
// count, and emits a new processing event. Emails in any other status are
// rejected with ErrRetryNotAllowed.
func (s *EmailService) RetryEmail(ctx context.Context, emailID uuid.UUID) (*domain.EmailRecord, error) {
	record, err := s.emailStore.ResetForRetry(ctx, emailID)
	if err != nil {
		s.logger.Error("failed to reset email for retry",
			"error", err,
			"email_id", emailID)
		return nil, NewEmailServiceError("retry_email", "failed to reset email for retry", err)
	}

	s.logger.Info("email reset for retry",
		"email_id", record.ID,
		"retry_count", record.RetryCount)

	if err := s.emitProcessingEvent(ctx, record.ID); err != nil {
		// The record is already reset; the stuck-email sweep will pick it
		// up if the event never reaches the runner.
		s.logger.Warn("failed to emit processing event after retry reset",
			"error", err,
			"email_id", record.ID)
	}

	return record, nil
}

// StatusReport builds the processing statistics report.
func (s *EmailService) StatusReport(ctx context.Context) (*StatusReport, error) {
	counts, err := s.emailStore.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count emails by status",
			"error", err)
		return nil, NewEmailServiceError("status_report", "failed to count emails by status", err)
	}

	recent, err := s.emailStore.FindRecent(ctx, recentListLimit)
	if err != nil {
		s.logger.Error("failed to list recent emails",
			"error", err)
		return nil, NewEmailServiceError("status_report", "failed to list recent emails", err)
	}

	completed, err := s.emailStore.FindByStatus(ctx, domain.EmailStatusCompleted, recentListLimit, 0)
	if err != nil {
		s.logger.Error("failed to list completed emails",
			"error", err)
		return nil, NewEmailServiceError("status_report", "failed to list completed emails", err)
	}

	var total time.Duration
	var measured int
	for _, record := range completed {
		if record.ProcessingCompletedAt != nil {
			total += record.ProcessingCompletedAt.Sub(record.CreatedAt)
			measured++
		}
	}

	report := &StatusReport{
		Counts:       counts,
		RecentEmails: recent,
	}
	if measured > 0 {
		report.AvgProcessing = total / time.Duration(measured)
	}
	return report, nil
}

// CountByStatus returns the number of emails in each pipeline status.
func (s *EmailService) CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error) {
	counts, err := s.emailStore.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count emails by status",
			"error", err)
		return nil, NewEmailServiceError("count_by_status", "failed to count emails by status", err)
	}
	return counts, nil
}

// transition performs a validated status change in a transaction: the
// current record is loaded, the domain state machine checks the move, and
// the write itself is a compare-and-set on the status the record was read
// in. A concurrent claimant that advanced the record first makes the guard
// miss, surfacing store.ErrStatusConflict instead of a double claim.
func (s *EmailService) transition(
	ctx context.Context,
	operation string,
	emailID uuid.UUID,
	target domain.EmailStatus,
) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.emailStore.WithTx(tx)

		record, err := txStore.GetByID(ctx, emailID)
		if err != nil {
			return err
		}
		from := record.Status
		if err := record.TransitionTo(target); err != nil {
			return err
		}
		// The guarded write is the real arbiter: if another worker advanced
		// the record between our read and this UPDATE, the guard misses and
		// the store reports the conflict.
		return txStore.UpdateStatus(ctx, emailID, from, target)
	})
	if err != nil {
		s.logger.Error("failed to transition email status",
			"error", err,
			"email_id", emailID,
			"target_status", string(target))
		return NewEmailServiceError(operation, fmt.Sprintf("failed to move email to %s", target), err)
	}

	s.logger.Debug("email status transitioned",
		"email_id", emailID,
		"target_status", string(target))
	return nil
}

// emitProcessingEvent creates and emits a task request event asking the
// runner to process the given email.
func (s *EmailService) emitProcessingEvent(ctx context.Context, emailID uuid.UUID) error {
	payload := events.EmailProcessingPayload{EmailID: emailID}

	event, err := events.NewTaskRequestEvent(events.TaskTypeEmailProcessing, payload)
	if err != nil {
		s.logger.Error("failed to create processing event",
			"error", err,
			"email_id", emailID)
		return err
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit processing event",
			"error", err,
			"email_id", emailID,
			"event_id", event.ID)
		return err
	}

	s.logger.Debug("processing event emitted",
		"email_id", emailID,
		"event_id", event.ID)
	return nil
}
