package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/platform/logger"
	"github.com/meetflow/meetflow-api/internal/store"
)

// emailColumns is the canonical column list for reading email records.
// Every SELECT and RETURNING clause in this file uses it so scanning stays
// in one place.
const emailColumns = `id, subject, body, sender, received_at, status,
	processing_started_at, processing_completed_at,
	summary, action_items, participants, meeting_date,
	summary_card_ref, action_item_card_refs,
	error_message, retry_count, last_retry_at,
	created_at, updated_at`

// PostgresEmailStore implements the store.EmailStore interface
// using a PostgreSQL database as the storage backend.
type PostgresEmailStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEmailStore creates a new PostgreSQL implementation of the
// EmailStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresEmailStore(db store.DBTX, logger *slog.Logger) *PostgresEmailStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEmailStore{
		db:     db,
		logger: logger.With(slog.String("component", "email_store")),
	}
}

// Ensure PostgresEmailStore implements store.EmailStore interface
var _ store.EmailStore = (*PostgresEmailStore)(nil)

// WithTx implements store.EmailStore.WithTx
func (s *PostgresEmailStore) WithTx(tx *sql.Tx) store.EmailStore {
	return &PostgresEmailStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.EmailStore.Create
// It saves a new email record to the database, handling domain validation.
// Returns validation errors from the domain EmailRecord if data is invalid.
func (s *PostgresEmailStore) Create(ctx context.Context, record *domain.EmailRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("email validation failed during create",
			slog.String("error", err.Error()),
			slog.String("email_id", record.ID.String()))
		return err
	}

	actionItems, participants, cardRefs, err := marshalExtractionColumns(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO emails (id, subject, body, sender, received_at, status,
			processing_started_at, processing_completed_at,
			summary, action_items, participants, meeting_date,
			summary_card_ref, action_item_card_refs,
			error_message, retry_count, last_retry_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Subject,
		record.Body,
		record.Sender,
		record.ReceivedAt,
		record.Status,
		record.ProcessingStartedAt,
		record.ProcessingCompletedAt,
		record.Summary,
		actionItems,
		participants,
		record.MeetingDate,
		record.SummaryCardRef,
		cardRefs,
		record.ErrorMessage,
		record.RetryCount,
		record.LastRetryAt,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create email record",
			slog.String("error", err.Error()),
			slog.String("email_id", record.ID.String()))
		return MapError(err)
	}

	log.Info("email record created",
		slog.String("email_id", record.ID.String()),
		slog.String("status", string(record.Status)))
	return nil
}

// GetByID implements store.EmailStore.GetByID
// Returns store.ErrEmailNotFound if the record does not exist.
func (s *PostgresEmailStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`

	record, err := scanEmailRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("email record not found", slog.String("email_id", id.String()))
			return nil, store.ErrEmailNotFound
		}
		log.Error("failed to get email record by ID",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()))
		return nil, MapError(err)
	}

	return record, nil
}

// UpdateStatus implements store.EmailStore.UpdateStatus
// The write is guarded on the from status so concurrent claimants of the
// same record cannot both advance it: the predicate is re-evaluated after
// any blocking row lock, and the loser's UPDATE matches zero rows. Entering
// parsing stamps processing_started_at; entering completed stamps
// processing_completed_at.
func (s *PostgresEmailStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.EmailStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.IsValidEmailStatus(to) || !domain.IsValidEmailStatus(from) {
		return domain.ErrInvalidEmailStatus
	}

	now := time.Now().UTC()

	query := `
		UPDATE emails
		SET status = $1,
			updated_at = $2,
			processing_started_at = CASE
				WHEN $1 = 'parsing' THEN $2
				ELSE processing_started_at
			END,
			processing_completed_at = CASE
				WHEN $1 = 'completed' THEN $2
				ELSE processing_completed_at
			END
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, string(to), now, id, string(from))
	if err != nil {
		log.Error("failed to update email status",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()),
			slog.String("status", string(to)))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		return s.resolveGuardMiss(ctx, id, string(from))
	}

	log.Info("email status updated",
		slog.String("email_id", id.String()),
		slog.String("status", string(to)))
	return nil
}

// resolveGuardMiss tells a missing record apart from one whose status no
// longer matched the guard of a zero-row stage write.
func (s *PostgresEmailStore) resolveGuardMiss(ctx context.Context, id uuid.UUID, expected string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	log.Warn("stage write lost to a concurrent status change",
		slog.String("email_id", id.String()),
		slog.String("expected_status", expected),
		slog.String("actual_status", string(record.Status)))
	return store.ErrStatusConflict
}

// SaveExtraction implements store.EmailStore.SaveExtraction
// It persists the extraction result and moves the record to parsed in a
// single write, so a crash between "extracted" and "saved" cannot leave a
// parsed record without its data. Guarded on the parsing status.
func (s *PostgresEmailStore) SaveExtraction(
	ctx context.Context,
	id uuid.UUID,
	meeting *domain.MeetingData,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if meeting == nil {
		return fmt.Errorf("%w: meeting data cannot be nil", store.ErrInvalidEntity)
	}

	actionItems, err := json.Marshal(meeting.ActionItems)
	if err != nil {
		return fmt.Errorf("%w: marshaling action items: %v", store.ErrInvalidEntity, err)
	}
	participants, err := json.Marshal(meeting.Participants)
	if err != nil {
		return fmt.Errorf("%w: marshaling participants: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE emails
		SET status = $1,
			summary = $2,
			action_items = $3,
			participants = $4,
			meeting_date = $5,
			updated_at = $6
		WHERE id = $7 AND status = $8
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.EmailStatusParsed,
		meeting.Summary,
		actionItems,
		participants,
		meeting.MeetingDate,
		time.Now().UTC(),
		id,
		domain.EmailStatusParsing,
	)
	if err != nil {
		log.Error("failed to save extraction result",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		return s.resolveGuardMiss(ctx, id, string(domain.EmailStatusParsing))
	}

	log.Info("extraction result saved",
		slog.String("email_id", id.String()),
		slog.Int("action_items", len(meeting.ActionItems)))
	return nil
}

// SaveCardRefs implements store.EmailStore.SaveCardRefs
// It persists the external card references and moves the record to
// completed, stamping processing_completed_at. Guarded on the
// creating_cards status.
func (s *PostgresEmailStore) SaveCardRefs(
	ctx context.Context,
	id uuid.UUID,
	summaryRef string,
	itemRefs []string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if itemRefs == nil {
		itemRefs = []string{}
	}
	refs, err := json.Marshal(itemRefs)
	if err != nil {
		return fmt.Errorf("%w: marshaling card refs: %v", store.ErrInvalidEntity, err)
	}

	now := time.Now().UTC()

	query := `
		UPDATE emails
		SET status = $1,
			summary_card_ref = $2,
			action_item_card_refs = $3,
			processing_completed_at = $4,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.EmailStatusCompleted,
		summaryRef,
		refs,
		now,
		id,
		domain.EmailStatusCreatingCards,
	)
	if err != nil {
		log.Error("failed to save card references",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		return s.resolveGuardMiss(ctx, id, string(domain.EmailStatusCreatingCards))
	}

	log.Info("card references saved",
		slog.String("email_id", id.String()),
		slog.String("summary_card_ref", summaryRef),
		slog.Int("action_item_cards", len(itemRefs)))
	return nil
}

// MarkFailed implements store.EmailStore.MarkFailed
// It moves the record to failed with the given error message, guarded on
// the record being in a non-terminal status: a completed email cannot fail
// and a failed email keeps its original message. The retry counter is
// untouched; only a successful ResetForRetry spends a retry.
func (s *PostgresEmailStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE emails
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4 AND status NOT IN ($5, $6)
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.EmailStatusFailed,
		errorMessage,
		time.Now().UTC(),
		id,
		domain.EmailStatusCompleted,
		domain.EmailStatusFailed,
	)
	if err != nil {
		log.Error("failed to mark email as failed",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		return s.resolveGuardMiss(ctx, id, "non-terminal")
	}

	log.Warn("email marked as failed",
		slog.String("email_id", id.String()),
		slog.String("error_message", errorMessage))
	return nil
}

// FindByStatus implements store.EmailStore.FindByStatus
// Returns an empty slice if no records match.
func (s *PostgresEmailStore) FindByStatus(
	ctx context.Context,
	status domain.EmailStatus,
	limit, offset int,
) ([]*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		log.Error("failed to query emails by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}

	return collectEmailRecords(rows, log)
}

// FindRecent implements store.EmailStore.FindRecent
// It retrieves the most recently ingested records regardless of status.
func (s *PostgresEmailStore) FindRecent(
	ctx context.Context,
	limit int,
) ([]*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + emailColumns + `
		FROM emails
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error("failed to query recent emails",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return collectEmailRecords(rows, log)
}

// FindRetryable implements store.EmailStore.FindRetryable
// It retrieves failed records whose retry_count is still below maxRetries.
func (s *PostgresEmailStore) FindRetryable(
	ctx context.Context,
	maxRetries, limit int,
) ([]*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, domain.EmailStatusFailed, maxRetries, limit)
	if err != nil {
		log.Error("failed to query retryable emails",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return collectEmailRecords(rows, log)
}

// FindStale implements store.EmailStore.FindStale
// It retrieves records stuck in the given status since before the cutoff,
// oldest first so the longest-stuck ones are handled first.
func (s *PostgresEmailStore) FindStale(
	ctx context.Context,
	status domain.EmailStatus,
	cutoff time.Time,
) ([]*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, status, cutoff)
	if err != nil {
		log.Error("failed to query stale emails",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}

	return collectEmailRecords(rows, log)
}

// ResetForRetry implements store.EmailStore.ResetForRetry
// The reset is a single guarded UPDATE: the status = 'failed' predicate and
// the in-place retry_count increment make concurrent retries of the same
// record safe, exactly one caller wins and the loser gets ErrRetryConflict.
func (s *PostgresEmailStore) ResetForRetry(
	ctx context.Context,
	id uuid.UUID,
) (*domain.EmailRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()

	query := `
		UPDATE emails
		SET status = $1,
			error_message = '',
			retry_count = retry_count + 1,
			last_retry_at = $2,
			updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + emailColumns

	record, err := scanEmailRecord(s.db.QueryRowContext(
		ctx,
		query,
		domain.EmailStatusReceived,
		now,
		id,
		domain.EmailStatusFailed,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The guard did not match: either the record is gone or it is
			// not in the failed status. Look it up to tell the two apart.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			log.Warn("retry rejected, email is not in failed status",
				slog.String("email_id", id.String()))
			return nil, store.ErrRetryConflict
		}
		log.Error("failed to reset email for retry",
			slog.String("error", err.Error()),
			slog.String("email_id", id.String()))
		return nil, MapError(err)
	}

	log.Info("email reset for retry",
		slog.String("email_id", id.String()),
		slog.Int("retry_count", record.RetryCount))
	return record, nil
}

// CountByStatus implements store.EmailStore.CountByStatus
// Statuses with no records are absent from the returned map.
func (s *PostgresEmailStore) CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT status, COUNT(*) FROM emails GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to count emails by status",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	counts := make(map[domain.EmailStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}
		counts[domain.EmailStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEmailRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEmailRecord reads one email row into a domain record, decoding the
// JSONB columns. A SQL NULL in a JSONB column leaves the corresponding
// slice nil, which is how an unparsed record round-trips.
func scanEmailRecord(row rowScanner) (*domain.EmailRecord, error) {
	var record domain.EmailRecord
	var status string
	var actionItems, participants, cardRefs []byte

	err := row.Scan(
		&record.ID,
		&record.Subject,
		&record.Body,
		&record.Sender,
		&record.ReceivedAt,
		&status,
		&record.ProcessingStartedAt,
		&record.ProcessingCompletedAt,
		&record.Summary,
		&actionItems,
		&participants,
		&record.MeetingDate,
		&record.SummaryCardRef,
		&cardRefs,
		&record.ErrorMessage,
		&record.RetryCount,
		&record.LastRetryAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = domain.EmailStatus(status)

	if actionItems != nil {
		if err := json.Unmarshal(actionItems, &record.ActionItems); err != nil {
			return nil, fmt.Errorf("decoding action_items for email %s: %w", record.ID, err)
		}
	}
	if participants != nil {
		if err := json.Unmarshal(participants, &record.Participants); err != nil {
			return nil, fmt.Errorf("decoding participants for email %s: %w", record.ID, err)
		}
	}
	if cardRefs != nil {
		if err := json.Unmarshal(cardRefs, &record.ActionItemCardRefs); err != nil {
			return nil, fmt.Errorf("decoding action_item_card_refs for email %s: %w", record.ID, err)
		}
	}

	return &record, nil
}

// collectEmailRecords drains a result set into domain records, always
// returning a non-nil slice.
func collectEmailRecords(rows *sql.Rows, log *slog.Logger) ([]*domain.EmailRecord, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	records := []*domain.EmailRecord{}
	for rows.Next() {
		record, err := scanEmailRecord(rows)
		if err != nil {
			log.Error("failed to scan email row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return records, nil
}

// marshalExtractionColumns encodes the record's slice fields for the JSONB
// columns. Nil slices become SQL NULLs so an unparsed record stores no
// extraction payload at all.
func marshalExtractionColumns(record *domain.EmailRecord) (actionItems, participants, cardRefs []byte, err error) {
	if record.ActionItems != nil {
		if actionItems, err = json.Marshal(record.ActionItems); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: marshaling action items: %v", store.ErrInvalidEntity, err)
		}
	}
	if record.Participants != nil {
		if participants, err = json.Marshal(record.Participants); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: marshaling participants: %v", store.ErrInvalidEntity, err)
		}
	}
	if record.ActionItemCardRefs != nil {
		if cardRefs, err = json.Marshal(record.ActionItemCardRefs); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: marshaling card refs: %v", store.ErrInvalidEntity, err)
		}
	}
	return actionItems, participants, cardRefs, nil
}
