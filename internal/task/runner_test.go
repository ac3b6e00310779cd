package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetflow/meetflow-api/internal/domain"
)

// mockFactory implements TaskFactory.
type mockFactory struct {
	mu      sync.Mutex
	created []uuid.UUID
	fn      func(emailID uuid.UUID) (Task, error)
}

func (f *mockFactory) CreateTask(emailID uuid.UUID) (Task, error) {
	f.mu.Lock()
	f.created = append(f.created, emailID)
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(emailID)
	}
	return NewMockTask(), nil
}

func (f *mockFactory) createdIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.created...)
}

func testRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:   2,
		QueueSize:     10,
		StuckEmailAge: time.Minute,
		SweepInterval: time.Hour, // Sweeps are driven manually in tests.
	}
}

// receivedRecord builds a minimal record in the given status.
func recordInStatus(status domain.EmailStatus) *domain.EmailRecord {
	return &domain.EmailRecord{
		ID:         uuid.New(),
		Body:       "body",
		Status:     status,
		ReceivedAt: time.Now().UTC(),
	}
}

func waitExecuted(t *testing.T, mock *MockTask) {
	t.Helper()

	select {
	case <-mock.Executed:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not executed in time")
	}
}

func TestTaskRunner_SubmitAndExecute(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(&MockEmailStore{}, &mockFactory{}, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	mock := NewMockTask()
	require.NoError(t, runner.Submit(context.Background(), mock))

	waitExecuted(t, mock)
}

func TestTaskRunner_SubmitFullQueue(t *testing.T) {
	t.Parallel()

	config := testRunnerConfig()
	config.WorkerCount = 0 // Nothing drains the queue.
	config.QueueSize = 1

	runner := NewTaskRunner(&MockEmailStore{}, &mockFactory{}, config, testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), NewMockTask()))
	err := runner.Submit(context.Background(), NewMockTask())
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTaskRunner_RecoverRequeuesReceived(t *testing.T) {
	t.Parallel()

	received := recordInStatus(domain.EmailStatusReceived)
	emailStore := &MockEmailStore{
		FindByStatusFn: func(_ context.Context, status domain.EmailStatus, _, _ int) ([]*domain.EmailRecord, error) {
			if status == domain.EmailStatusReceived {
				return []*domain.EmailRecord{received}, nil
			}
			return []*domain.EmailRecord{}, nil
		},
	}

	mock := NewMockTask()
	factory := &mockFactory{fn: func(uuid.UUID) (Task, error) { return mock, nil }}

	runner := NewTaskRunner(emailStore, factory, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	waitExecuted(t, mock)
	assert.Equal(t, []uuid.UUID{received.ID}, factory.createdIDs())
}

func TestTaskRunner_RecoverFailsInterrupted(t *testing.T) {
	t.Parallel()

	parsing := recordInStatus(domain.EmailStatusParsing)
	creating := recordInStatus(domain.EmailStatusCreatingCards)

	var mu sync.Mutex
	failed := map[uuid.UUID]string{}

	emailStore := &MockEmailStore{
		FindByStatusFn: func(_ context.Context, status domain.EmailStatus, _, _ int) ([]*domain.EmailRecord, error) {
			switch status {
			case domain.EmailStatusParsing:
				return []*domain.EmailRecord{parsing}, nil
			case domain.EmailStatusCreatingCards:
				return []*domain.EmailRecord{creating}, nil
			default:
				return []*domain.EmailRecord{}, nil
			}
		},
		MarkFailedFn: func(_ context.Context, id uuid.UUID, message string) error {
			mu.Lock()
			failed[id] = message
			mu.Unlock()
			return nil
		},
	}

	factory := &mockFactory{}
	runner := NewTaskRunner(emailStore, factory, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Recover())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 2)
	assert.Contains(t, failed[parsing.ID], "interrupted by restart")
	assert.Contains(t, failed[parsing.ID], "parsing")
	assert.Contains(t, failed[creating.ID], "creating_cards")
	assert.Empty(t, factory.createdIDs(), "interrupted records are failed, not re-run")
}

func TestTaskRunner_SweepFailsStuckAndRequeuesDropped(t *testing.T) {
	t.Parallel()

	stuck := recordInStatus(domain.EmailStatusParsing)
	dropped := recordInStatus(domain.EmailStatusReceived)

	var mu sync.Mutex
	failed := map[uuid.UUID]string{}

	emailStore := &MockEmailStore{
		FindStaleFn: func(_ context.Context, status domain.EmailStatus, _ time.Time) ([]*domain.EmailRecord, error) {
			switch status {
			case domain.EmailStatusParsing:
				return []*domain.EmailRecord{stuck}, nil
			case domain.EmailStatusReceived:
				return []*domain.EmailRecord{dropped}, nil
			default:
				return []*domain.EmailRecord{}, nil
			}
		},
		MarkFailedFn: func(_ context.Context, id uuid.UUID, message string) error {
			mu.Lock()
			failed[id] = message
			mu.Unlock()
			return nil
		},
	}

	factory := &mockFactory{}
	runner := NewTaskRunner(emailStore, factory, testRunnerConfig(), testLogger())

	runner.sweepOnce()

	mu.Lock()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[stuck.ID], "abandoned")
	mu.Unlock()

	assert.Equal(t, []uuid.UUID{dropped.ID}, factory.createdIDs(),
		"a stale received record gets a fresh task")
}

func TestTaskRunner_StopDrainsWorkers(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(&MockEmailStore{}, &mockFactory{}, testRunnerConfig(), testLogger())
	require.NoError(t, runner.Start())

	mock := NewMockTask()
	require.NoError(t, runner.Submit(context.Background(), mock))
	waitExecuted(t, mock)

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}
