package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow-api/internal/domain"
)

// EmailStore defines the interface for email record persistence.
// It is the single collaborator the pipeline orchestrator talks to between
// stages; all durable pipeline state lives behind it.
type EmailStore interface {
	// Create saves a new email record to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain EmailRecord if data is invalid.
	Create(ctx context.Context, record *domain.EmailRecord) error

	// GetByID retrieves an email record by its unique ID.
	// Returns ErrEmailNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)

	// UpdateStatus advances the record from one status to another, along
	// with the stage timestamp that entering the status implies (parsing
	// sets processing_started_at, completed sets processing_completed_at).
	// The write is a compare-and-set guarded on the from status: when two
	// workers race to claim the same record, exactly one wins and the loser
	// gets ErrStatusConflict. Returns ErrEmailNotFound if the record does
	// not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.EmailStatus) error

	// SaveExtraction persists the extraction result and moves the record
	// from parsing to parsed in a single write, guarded like UpdateStatus.
	SaveExtraction(ctx context.Context, id uuid.UUID, meeting *domain.MeetingData) error

	// SaveCardRefs persists the external card references and moves the
	// record from creating_cards to completed, setting
	// processing_completed_at, guarded like UpdateStatus.
	SaveCardRefs(ctx context.Context, id uuid.UUID, summaryRef string, itemRefs []string) error

	// MarkFailed moves the record to the failed status with the given
	// error message, guarded on the record being in a non-terminal status.
	// Unlike ResetForRetry it never touches retry_count.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// FindByStatus retrieves records with the given status, newest first.
	// Returns an empty slice if no records match.
	FindByStatus(ctx context.Context, status domain.EmailStatus, limit, offset int) ([]*domain.EmailRecord, error)

	// FindRecent retrieves the most recently ingested records regardless
	// of status, newest first.
	FindRecent(ctx context.Context, limit int) ([]*domain.EmailRecord, error)

	// FindRetryable retrieves failed records whose retry_count is below
	// maxRetries, newest first.
	FindRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.EmailRecord, error)

	// FindStale retrieves records that have been sitting in the given
	// status since before the cutoff.
	FindStale(ctx context.Context, status domain.EmailStatus, cutoff time.Time) ([]*domain.EmailRecord, error)

	// ResetForRetry atomically resets a failed record to received:
	// clears error_message, increments retry_count in place and stamps
	// last_retry_at, guarded by status = 'failed' so a record mid-pipeline
	// can never be reset. Returns ErrRetryConflict when the guard does not
	// match and ErrEmailNotFound when the record does not exist at all.
	ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error)

	// WithTx returns a new EmailStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) EmailStore
}
