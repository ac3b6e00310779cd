package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailRecord(t *testing.T) {
	t.Parallel()

	receivedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	t.Run("creates record in received status", func(t *testing.T) {
		record, err := NewEmailRecord("Kickoff", "Sarah will write specs by June 15", "pm@example.com", receivedAt)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, EmailStatusReceived, record.Status)
		assert.Equal(t, "Kickoff", record.Subject)
		assert.Equal(t, receivedAt, record.ReceivedAt)
		assert.Zero(t, record.RetryCount)
		assert.Nil(t, record.ProcessingStartedAt)
		assert.Nil(t, record.ProcessingCompletedAt)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		a, err := NewEmailRecord("a", "body", "s@example.com", receivedAt)
		require.NoError(t, err)
		b, err := NewEmailRecord("b", "body", "s@example.com", receivedAt)
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		record, err := NewEmailRecord("subject", "", "s@example.com", receivedAt)

		assert.ErrorIs(t, err, ErrEmptyEmailBody)
		assert.Nil(t, record)
	})
}

func TestEmailRecordTransitions(t *testing.T) {
	t.Parallel()

	newRecord := func(t *testing.T, status EmailStatus) *EmailRecord {
		t.Helper()
		record, err := NewEmailRecord("subject", "body", "s@example.com", time.Now().UTC())
		require.NoError(t, err)
		record.Status = status
		if status == EmailStatusParsed || status == EmailStatusCreatingCards ||
			status == EmailStatusCompleted {
			record.ActionItems = []ActionItem{}
		}
		return record
	}

	t.Run("advances through the full pipeline", func(t *testing.T) {
		record := newRecord(t, EmailStatusReceived)

		require.NoError(t, record.TransitionTo(EmailStatusParsing))
		record.ActionItems = []ActionItem{}
		require.NoError(t, record.TransitionTo(EmailStatusParsed))
		require.NoError(t, record.TransitionTo(EmailStatusCreatingCards))
		require.NoError(t, record.TransitionTo(EmailStatusCompleted))

		assert.True(t, record.IsTerminal())
	})

	t.Run("rejects skipping stages", func(t *testing.T) {
		record := newRecord(t, EmailStatusReceived)

		err := record.TransitionTo(EmailStatusCompleted)

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, EmailStatusReceived, record.Status)
	})

	t.Run("rejects regression", func(t *testing.T) {
		record := newRecord(t, EmailStatusParsed)

		err := record.TransitionTo(EmailStatusParsing)

		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("failed is reachable from every non-terminal state", func(t *testing.T) {
		for _, from := range []EmailStatus{
			EmailStatusReceived, EmailStatusParsing, EmailStatusParsed, EmailStatusCreatingCards,
		} {
			record := newRecord(t, from)
			assert.True(t, record.CanTransitionTo(EmailStatusFailed), "from %s", from)
		}
	})

	t.Run("failed is absorbing", func(t *testing.T) {
		record := newRecord(t, EmailStatusFailed)

		for _, to := range []EmailStatus{
			EmailStatusReceived, EmailStatusParsing, EmailStatusParsed,
			EmailStatusCreatingCards, EmailStatusCompleted, EmailStatusFailed,
		} {
			assert.False(t, record.CanTransitionTo(to), "to %s", to)
		}
	})

	t.Run("completed cannot fail", func(t *testing.T) {
		record := newRecord(t, EmailStatusCompleted)

		assert.False(t, record.CanTransitionTo(EmailStatusFailed))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		record := newRecord(t, EmailStatusReceived)

		err := record.TransitionTo(EmailStatus("bogus"))

		assert.ErrorIs(t, err, ErrInvalidEmailStatus)
	})
}

func TestEmailRecordValidate(t *testing.T) {
	t.Parallel()

	t.Run("nil action items invalid once parsed", func(t *testing.T) {
		record, err := NewEmailRecord("subject", "body", "s@example.com", time.Now().UTC())
		require.NoError(t, err)
		record.Status = EmailStatusParsed
		record.ActionItems = nil

		assert.ErrorIs(t, record.Validate(), ErrNilActionItemsAfter)
	})

	t.Run("duplicate action item IDs rejected", func(t *testing.T) {
		record, err := NewEmailRecord("subject", "body", "s@example.com", time.Now().UTC())
		require.NoError(t, err)
		record.Status = EmailStatusParsed
		record.ActionItems = []ActionItem{
			{ID: "ai_1", Task: "one", Assignee: UnassignedAssignee, Priority: PriorityMedium},
			{ID: "ai_1", Task: "two", Assignee: UnassignedAssignee, Priority: PriorityLow},
		}

		assert.ErrorIs(t, record.Validate(), ErrDuplicateActionItemID)
	})
}

func TestActionItemValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid item", func(t *testing.T) {
		item := ActionItem{ID: "ai_abc", Task: "write specs", Assignee: "Sarah", Priority: PriorityHigh}
		assert.NoError(t, item.Validate())
	})

	t.Run("missing ID", func(t *testing.T) {
		item := ActionItem{Task: "write specs", Assignee: "Sarah", Priority: PriorityHigh}
		assert.ErrorIs(t, item.Validate(), ErrEmptyActionItemID)
	})

	t.Run("unknown priority", func(t *testing.T) {
		item := ActionItem{ID: "ai_abc", Task: "write specs", Assignee: "Sarah", Priority: "urgent"}
		assert.ErrorIs(t, item.Validate(), ErrInvalidPriority)
	})
}
