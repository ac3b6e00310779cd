package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EmailStatus represents the processing state of an inbound email
type EmailStatus string

// Possible email status values, in pipeline order
const (
	EmailStatusReceived      EmailStatus = "received"
	EmailStatusParsing       EmailStatus = "parsing"
	EmailStatusParsed        EmailStatus = "parsed"
	EmailStatusCreatingCards EmailStatus = "creating_cards"
	EmailStatusCompleted     EmailStatus = "completed"
	EmailStatusFailed        EmailStatus = "failed"
)

// Common validation errors for EmailRecord
var (
	ErrEmptyEmailID          = errors.New("email ID cannot be empty")
	ErrEmptyEmailBody        = errors.New("email body cannot be empty")
	ErrInvalidEmailStatus    = errors.New("invalid email status")
	ErrInvalidTransition     = errors.New("invalid email status transition")
	ErrNilActionItemsAfter   = errors.New("action items cannot be nil once parsed")
	ErrDuplicateActionItemID = errors.New("action item IDs must be unique within a record")
)

// EmailRecord represents an inbound meeting-summary email and the durable
// state of its processing pipeline. The status column is the single source
// of truth between pipeline stages: no in-memory state survives a stage
// boundary, which is what makes crash recovery and manual retry possible.
type EmailRecord struct {
	ID         uuid.UUID   `json:"id"`
	Subject    string      `json:"subject"`
	Body       string      `json:"body"`
	Sender     string      `json:"sender"`
	ReceivedAt time.Time   `json:"received_at"`
	Status     EmailStatus `json:"status"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`

	// Populated once extraction succeeds.
	Summary      string       `json:"summary,omitempty"`
	ActionItems  []ActionItem `json:"action_items,omitempty"`
	Participants []string     `json:"participants,omitempty"`
	MeetingDate  string       `json:"meeting_date,omitempty"`

	// External card references, populated once publishing completes.
	SummaryCardRef     string   `json:"summary_card_ref,omitempty"`
	ActionItemCardRefs []string `json:"action_item_card_refs,omitempty"`

	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	LastRetryAt  *time.Time `json:"last_retry_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEmailRecord creates a new EmailRecord in the received state.
// It generates a new UUID for the record and sets the bookkeeping timestamps.
// Returns an error if validation fails.
func NewEmailRecord(subject, body, sender string, receivedAt time.Time) (*EmailRecord, error) {
	now := time.Now().UTC()
	record := &EmailRecord{
		ID:         uuid.New(),
		Subject:    subject,
		Body:       body,
		Sender:     sender,
		ReceivedAt: receivedAt,
		Status:     EmailStatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the EmailRecord has valid data.
// Returns an error if any field fails validation.
func (e *EmailRecord) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEmailID
	}

	if e.Body == "" {
		return ErrEmptyEmailBody
	}

	if !isValidEmailStatus(e.Status) {
		return ErrInvalidEmailStatus
	}

	if e.Status == EmailStatusParsed || e.Status == EmailStatusCreatingCards ||
		e.Status == EmailStatusCompleted {
		if e.ActionItems == nil {
			return ErrNilActionItemsAfter
		}
		seen := make(map[string]struct{}, len(e.ActionItems))
		for _, item := range e.ActionItems {
			if _, dup := seen[item.ID]; dup {
				return ErrDuplicateActionItemID
			}
			seen[item.ID] = struct{}{}
		}
	}

	return nil
}

// TransitionTo advances the record's status and updates the UpdatedAt
// timestamp. Only forward transitions and jumps to failed are allowed; a
// failed record can only leave that state through the store's retry reset,
// never through a transition here.
func (e *EmailRecord) TransitionTo(status EmailStatus) error {
	if !isValidEmailStatus(status) {
		return ErrInvalidEmailStatus
	}

	if !canTransition(e.Status, status) {
		return ErrInvalidTransition
	}

	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// CanTransitionTo reports whether advancing to the given status would be a
// legal state machine move from the record's current status.
func (e *EmailRecord) CanTransitionTo(status EmailStatus) bool {
	return isValidEmailStatus(status) && canTransition(e.Status, status)
}

// IsTerminal reports whether the record has reached a terminal status.
func (e *EmailRecord) IsTerminal() bool {
	return e.Status == EmailStatusCompleted || e.Status == EmailStatusFailed
}

// canTransition encodes the pipeline state machine:
// received -> parsing -> parsed -> creating_cards -> completed,
// with failed reachable from every non-terminal state.
func canTransition(from, to EmailStatus) bool {
	if to == EmailStatusFailed {
		return from != EmailStatusCompleted && from != EmailStatusFailed
	}

	switch from {
	case EmailStatusReceived:
		return to == EmailStatusParsing
	case EmailStatusParsing:
		return to == EmailStatusParsed
	case EmailStatusParsed:
		return to == EmailStatusCreatingCards
	case EmailStatusCreatingCards:
		return to == EmailStatusCompleted
	default:
		return false
	}
}

// IsValidEmailStatus checks if the given status is a valid EmailStatus.
func IsValidEmailStatus(status EmailStatus) bool {
	return isValidEmailStatus(status)
}

// isValidEmailStatus checks if the given status is a valid EmailStatus.
func isValidEmailStatus(status EmailStatus) bool {
	switch status {
	case EmailStatusReceived, EmailStatusParsing, EmailStatusParsed,
		EmailStatusCreatingCards, EmailStatusCompleted, EmailStatusFailed:
		return true
	default:
		return false
	}
}
