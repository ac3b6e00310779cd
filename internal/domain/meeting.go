package domain

import "errors"

// Priority indicates the urgency of an action item.
type Priority string

// Recognized priorities. Anything else coming out of extraction is coerced
// to PriorityMedium by the normalizer.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// UnassignedAssignee is the sentinel used when extraction cannot attribute
// an action item to a person.
const UnassignedAssignee = "Unassigned"

// Common validation errors for meeting data
var (
	ErrEmptyActionItemID = errors.New("action item ID cannot be empty")
	ErrInvalidPriority   = errors.New("invalid action item priority")
)

// ActionItem is a single task extracted from a meeting email.
// DueDate is either empty or a date string ("2006-01-02", optionally with
// a " 15:04" time component). Completed is never set by extraction; it only
// changes through edits on the external board.
type ActionItem struct {
	ID        string   `json:"id"`
	Task      string   `json:"task"`
	Assignee  string   `json:"assignee"`
	DueDate   string   `json:"due_date,omitempty"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
}

// Validate checks if the ActionItem has valid data.
func (a *ActionItem) Validate() error {
	if a.ID == "" {
		return ErrEmptyActionItemID
	}
	if !IsValidPriority(a.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// MeetingData is the canonical, fully-typed shape produced by the
// extraction normalizer. Every consumer downstream of the parsing stage may
// rely on it being total: Summary non-empty, ActionItems non-nil,
// MeetingDate non-empty (the processing date is substituted when the email
// mentions none).
type MeetingData struct {
	Summary      string       `json:"summary"`
	ActionItems  []ActionItem `json:"action_items"`
	Participants []string     `json:"participants"`
	MeetingDate  string       `json:"meeting_date"`
}

// IsValidPriority reports whether p is one of the three recognized values.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}
