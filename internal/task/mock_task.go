package task

import (
	"context"

	"github.com/google/uuid"
)

// MockTask is a configurable Task implementation for tests.
type MockTask struct {
	TaskID    uuid.UUID
	TaskType  string
	ExecuteFn func(ctx context.Context) error
	Executed  chan struct{}
}

// NewMockTask creates a MockTask with a fresh ID and a buffered Executed
// channel that receives once per Execute call.
func NewMockTask() *MockTask {
	return &MockTask{
		TaskID:   uuid.New(),
		TaskType: "mock_task",
		Executed: make(chan struct{}, 16),
	}
}

// ID implements the Task interface
func (m *MockTask) ID() uuid.UUID {
	return m.TaskID
}

// Type implements the Task interface
func (m *MockTask) Type() string {
	return m.TaskType
}

// Execute implements the Task interface
func (m *MockTask) Execute(ctx context.Context) error {
	defer func() {
		select {
		case m.Executed <- struct{}{}:
		default:
		}
	}()

	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx)
	}
	return nil
}
