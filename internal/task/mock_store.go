package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/store"
)

// MockEmailStore implements store.EmailStore with function fields so tests
// can override exactly the calls they care about. Unset fields are no-ops.
type MockEmailStore struct {
	CreateFn         func(ctx context.Context, record *domain.EmailRecord) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)
	UpdateStatusFn   func(ctx context.Context, id uuid.UUID, from, to domain.EmailStatus) error
	SaveExtractionFn func(ctx context.Context, id uuid.UUID, meeting *domain.MeetingData) error
	SaveCardRefsFn   func(ctx context.Context, id uuid.UUID, summaryRef string, itemRefs []string) error
	MarkFailedFn     func(ctx context.Context, id uuid.UUID, errorMessage string) error
	FindByStatusFn   func(ctx context.Context, status domain.EmailStatus, limit, offset int) ([]*domain.EmailRecord, error)
	FindRecentFn     func(ctx context.Context, limit int) ([]*domain.EmailRecord, error)
	FindRetryableFn  func(ctx context.Context, maxRetries, limit int) ([]*domain.EmailRecord, error)
	FindStaleFn      func(ctx context.Context, status domain.EmailStatus, cutoff time.Time) ([]*domain.EmailRecord, error)
	ResetForRetryFn  func(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)
	CountByStatusFn  func(ctx context.Context) (map[domain.EmailStatus]int, error)
}

// Ensure MockEmailStore implements store.EmailStore
var _ store.EmailStore = (*MockEmailStore)(nil)

func (m *MockEmailStore) Create(ctx context.Context, record *domain.EmailRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, record)
	}
	return nil
}

func (m *MockEmailStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, store.ErrEmailNotFound
}

func (m *MockEmailStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.EmailStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, from, to)
	}
	return nil
}

func (m *MockEmailStore) SaveExtraction(ctx context.Context, id uuid.UUID, meeting *domain.MeetingData) error {
	if m.SaveExtractionFn != nil {
		return m.SaveExtractionFn(ctx, id, meeting)
	}
	return nil
}

func (m *MockEmailStore) SaveCardRefs(ctx context.Context, id uuid.UUID, summaryRef string, itemRefs []string) error {
	if m.SaveCardRefsFn != nil {
		return m.SaveCardRefsFn(ctx, id, summaryRef, itemRefs)
	}
	return nil
}

func (m *MockEmailStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, id, errorMessage)
	}
	return nil
}

func (m *MockEmailStore) FindByStatus(
	ctx context.Context,
	status domain.EmailStatus,
	limit, offset int,
) ([]*domain.EmailRecord, error) {
	if m.FindByStatusFn != nil {
		return m.FindByStatusFn(ctx, status, limit, offset)
	}
	return []*domain.EmailRecord{}, nil
}

func (m *MockEmailStore) FindRecent(ctx context.Context, limit int) ([]*domain.EmailRecord, error) {
	if m.FindRecentFn != nil {
		return m.FindRecentFn(ctx, limit)
	}
	return []*domain.EmailRecord{}, nil
}

func (m *MockEmailStore) FindRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.EmailRecord, error) {
	if m.FindRetryableFn != nil {
		return m.FindRetryableFn(ctx, maxRetries, limit)
	}
	return []*domain.EmailRecord{}, nil
}

func (m *MockEmailStore) FindStale(
	ctx context.Context,
	status domain.EmailStatus,
	cutoff time.Time,
) ([]*domain.EmailRecord, error) {
	if m.FindStaleFn != nil {
		return m.FindStaleFn(ctx, status, cutoff)
	}
	return []*domain.EmailRecord{}, nil
}

func (m *MockEmailStore) ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	if m.ResetForRetryFn != nil {
		return m.ResetForRetryFn(ctx, id)
	}
	return nil, store.ErrEmailNotFound
}

func (m *MockEmailStore) CountByStatus(ctx context.Context) (map[domain.EmailStatus]int, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	return map[domain.EmailStatus]int{}, nil
}

func (m *MockEmailStore) WithTx(tx *sql.Tx) store.EmailStore {
	return m
}
