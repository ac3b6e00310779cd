package extraction

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/meetflow/meetflow-api/internal/domain"
)

// Placeholder values substituted when the model omits or mistypes a field.
const (
	placeholderSummary = "Unable to extract meeting summary"
	placeholderTask    = "Unknown task"

	// actionItemIDPrefix makes generated IDs traceable back to extraction.
	actionItemIDPrefix = "ai_"
)

// Normalizer converts the loose, untyped output of the extraction service
// into a canonical domain.MeetingData. Every field has a total,
// deterministic default, so downstream consumers can assume a fully-typed
// value: the model's output is adversarial from a type-safety standpoint
// and is never trusted.
//
// Normalization is idempotent: feeding a normalized result back through
// produces the same value.
type Normalizer struct {
	logger *slog.Logger

	// now supplies the processing time used for the meeting-date fallback.
	now func() time.Time
}

// NewNormalizer creates a Normalizer. A nil logger falls back to the
// process default.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		logger: logger.With("component", "extraction_normalizer"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the Normalizer using the given clock.
// Used by tests to pin the processing-date fallback.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	return &Normalizer{logger: n.logger, now: now}
}

// Normalize produces a canonical MeetingData from raw parsed JSON.
// It never fails: malformed fields are replaced with deterministic
// defaults, and a malformed action item never discards its siblings.
func (n *Normalizer) Normalize(raw map[string]any) *domain.MeetingData {
	meeting := &domain.MeetingData{
		Summary:      placeholderSummary,
		ActionItems:  []domain.ActionItem{},
		Participants: []string{},
	}

	if summary, ok := raw["summary"].(string); ok {
		meeting.Summary = summary
	}

	if items, ok := raw["action_items"].([]any); ok {
		meeting.ActionItems = make([]domain.ActionItem, 0, len(items))
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			normalized := n.normalizeActionItem(item)
			// Regenerate on collision so IDs stay unique within the batch.
			for {
				if _, dup := seen[normalized.ID]; !dup {
					break
				}
				normalized.ID = generateActionItemID()
			}
			seen[normalized.ID] = struct{}{}
			meeting.ActionItems = append(meeting.ActionItems, normalized)
		}
	}

	if participants, ok := raw["participants"].([]any); ok {
		for _, p := range participants {
			// Non-text entries are silently dropped, not an error.
			if name, ok := p.(string); ok {
				meeting.Participants = append(meeting.Participants, name)
			}
		}
	}

	if date, ok := raw["meeting_date"].(string); ok && date != "" && date != "null" {
		meeting.MeetingDate = date
	} else {
		// Documented default-date policy: substitute the processing date so
		// downstream consumers can always rely on a date being present.
		meeting.MeetingDate = n.now().Format("2006-01-02")
		n.logger.Info("no meeting date extracted, falling back to processing date",
			"fallback_date", meeting.MeetingDate)
	}

	return meeting
}

// normalizeActionItem applies per-field defaults to a single raw item.
// A non-object item yields a fully-defaulted placeholder rather than an
// error.
func (n *Normalizer) normalizeActionItem(raw any) domain.ActionItem {
	item := domain.ActionItem{
		ID:       generateActionItemID(),
		Task:     placeholderTask,
		Assignee: domain.UnassignedAssignee,
		Priority: domain.PriorityMedium,
		// Completed is forced false regardless of model output: only
		// downstream board edits ever complete an item.
		Completed: false,
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return item
	}

	if id, ok := fields["id"].(string); ok && id != "" {
		item.ID = id
	}

	if task, ok := fields["task"].(string); ok {
		item.Task = task
	}

	if assignee, ok := fields["assignee"].(string); ok {
		item.Assignee = assignee
	}

	if dueDate, ok := fields["due_date"].(string); ok && dueDate != "null" {
		item.DueDate = dueDate
	}

	if priority, ok := fields["priority"].(string); ok {
		if p := domain.Priority(priority); domain.IsValidPriority(p) {
			item.Priority = p
		}
	}

	return item
}

// generateActionItemID returns a short random token with the ai_ prefix.
func generateActionItemID() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; use a
		// timestamp-derived token rather than a constant.
		return actionItemIDPrefix + hex.EncodeToString([]byte(time.Now().Format("150405.000")))[:10]
	}
	return actionItemIDPrefix + hex.EncodeToString(b)
}
