package extraction

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer(t *testing.T, at time.Time) *Normalizer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewNormalizer(logger).WithClock(func() time.Time { return at })
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	processedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("empty object yields fully-typed defaults", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{})

		assert.Equal(t, "Unable to extract meeting summary", meeting.Summary)
		assert.NotNil(t, meeting.ActionItems)
		assert.Empty(t, meeting.ActionItems)
		assert.NotNil(t, meeting.Participants)
		assert.Empty(t, meeting.Participants)
		assert.Equal(t, "2025-06-01", meeting.MeetingDate)
	})

	t.Run("wrong-typed summary replaced with placeholder", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"summary": 42.0,
		})

		assert.Equal(t, "Unable to extract meeting summary", meeting.Summary)
	})

	t.Run("non-array action_items replaced with empty sequence", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"action_items": "do things",
		})

		assert.NotNil(t, meeting.ActionItems)
		assert.Empty(t, meeting.ActionItems)
	})

	t.Run("null meeting date gets processing-date fallback", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"summary":      "x",
			"action_items": []any{},
			"participants": []any{},
			"meeting_date": nil,
		})

		assert.Equal(t, "2025-06-01", meeting.MeetingDate)
	})

	t.Run("literal null string treated as absent", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"meeting_date": "null",
		})

		assert.Equal(t, "2025-06-01", meeting.MeetingDate)
	})

	t.Run("valid meeting date kept verbatim", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"meeting_date": "2025-05-28 14:30",
		})

		assert.Equal(t, "2025-05-28 14:30", meeting.MeetingDate)
	})

	t.Run("non-text participants silently dropped", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"participants": []any{"Sarah", 17.0, nil, "Tom", map[string]any{"name": "Eve"}, "Sarah"},
		})

		// Order and duplicates preserved, only non-strings removed.
		assert.Equal(t, []string{"Sarah", "Tom", "Sarah"}, meeting.Participants)
	})
}

func TestNormalizeActionItems(t *testing.T) {
	t.Parallel()

	processedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("malformed item does not discard siblings", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"action_items": []any{
				map[string]any{"id": "ai_1", "task": "write specs", "assignee": "Sarah", "priority": "high"},
				"not an object",
				map[string]any{"id": "ai_3", "task": "review budget", "assignee": "Tom", "priority": "low"},
			},
		})

		require.Len(t, meeting.ActionItems, 3)
		assert.Equal(t, "write specs", meeting.ActionItems[0].Task)
		assert.Equal(t, "Unknown task", meeting.ActionItems[1].Task)
		assert.Equal(t, "review budget", meeting.ActionItems[2].Task)
	})

	t.Run("per-field defaults", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"action_items": []any{
				map[string]any{
					"task":      17.0,
					"assignee":  nil,
					"due_date":  false,
					"priority":  "urgent",
					"completed": true,
				},
			},
		})

		require.Len(t, meeting.ActionItems, 1)
		item := meeting.ActionItems[0]
		assert.True(t, strings.HasPrefix(item.ID, "ai_"))
		assert.Equal(t, "Unknown task", item.Task)
		assert.Equal(t, domain.UnassignedAssignee, item.Assignee)
		assert.Empty(t, item.DueDate)
		assert.Equal(t, domain.PriorityMedium, item.Priority)
		assert.False(t, item.Completed, "completed must be forced false regardless of model output")
	})

	t.Run("priority accepted only when exactly recognized", func(t *testing.T) {
		for raw, want := range map[string]domain.Priority{
			"low":    domain.PriorityLow,
			"medium": domain.PriorityMedium,
			"high":   domain.PriorityHigh,
			"HIGH":   domain.PriorityMedium,
			"":       domain.PriorityMedium,
		} {
			meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
				"action_items": []any{map[string]any{"task": "t", "priority": raw}},
			})
			assert.Equal(t, want, meeting.ActionItems[0].Priority, "priority %q", raw)
		}
	})

	t.Run("IDs unique within batch", func(t *testing.T) {
		meeting := testNormalizer(t, processedAt).Normalize(map[string]any{
			"action_items": []any{
				map[string]any{"id": "ai_dup", "task": "one"},
				map[string]any{"id": "ai_dup", "task": "two"},
				map[string]any{"task": "three"},
			},
		})

		require.Len(t, meeting.ActionItems, 3)
		seen := make(map[string]struct{})
		for _, item := range meeting.ActionItems {
			assert.NotEmpty(t, item.ID)
			_, dup := seen[item.ID]
			assert.False(t, dup, "duplicate ID %s", item.ID)
			seen[item.ID] = struct{}{}
		}
	})
}

// Normalizing an already-normalized value is a no-op.
func TestNormalizeFixedPoint(t *testing.T) {
	t.Parallel()

	processedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	n := testNormalizer(t, processedAt)

	first := n.Normalize(map[string]any{
		"summary": "Quarterly planning recap",
		"action_items": []any{
			map[string]any{"id": "ai_1", "task": "write specs", "assignee": "Sarah",
				"due_date": "2025-06-15", "priority": "high", "completed": false},
		},
		"participants": []any{"Sarah", "Tom"},
		"meeting_date": "2025-05-28",
	})

	// Round-trip through the loose representation the normalizer consumes.
	items := make([]any, 0, len(first.ActionItems))
	for _, item := range first.ActionItems {
		items = append(items, map[string]any{
			"id": item.ID, "task": item.Task, "assignee": item.Assignee,
			"due_date": item.DueDate, "priority": string(item.Priority), "completed": item.Completed,
		})
	}
	participants := make([]any, 0, len(first.Participants))
	for _, p := range first.Participants {
		participants = append(participants, p)
	}

	second := n.Normalize(map[string]any{
		"summary":      first.Summary,
		"action_items": items,
		"participants": participants,
		"meeting_date": first.MeetingDate,
	})

	assert.Equal(t, first, second)
}
