package board

import "errors"

// Common errors returned by the board package
var (
	// ErrSummaryCardFailed is returned when the meeting summary card could
	// not be created. Fatal to the publish step: a meeting without a
	// summary card is not a meaningful batch, so the orchestrator marks
	// the record failed. Action item card failures are never wrapped in
	// this error; they are logged and skipped per item.
	ErrSummaryCardFailed = errors.New("failed to create meeting summary card")

	// ErrInvalidConfig is returned when the publisher configuration is
	// missing a board or list identifier.
	ErrInvalidConfig = errors.New("invalid board configuration")
)
