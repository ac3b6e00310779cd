package board

import (
	"context"
	"time"
)

// CardRequest is the payload for creating a single card on the external
// board. Due is always set: the formatter resolves a due timestamp for
// every card, falling back to processing time when nothing better exists.
type CardRequest struct {
	ListID      string
	Name        string
	Description string
	Due         time.Time
}

// CardRef identifies a card created on the external board.
type CardRef struct {
	ID  string
	URL string
}

// Label is a board label as reported by the external board.
type Label struct {
	ID    string
	Name  string
	Color string
}

// Client defines the operations the publisher needs from the external
// board tool. Implementations live under internal/platform.
type Client interface {
	// CreateCard creates a card in the given list and returns its
	// external reference.
	CreateCard(ctx context.Context, req CardRequest) (*CardRef, error)

	// ListLabels returns the labels defined on the board.
	ListLabels(ctx context.Context, boardID string) ([]Label, error)

	// CreateLabel creates a new label on the board.
	CreateLabel(ctx context.Context, boardID, name, color string) (*Label, error)

	// AttachLabel attaches an existing label to a card.
	AttachLabel(ctx context.Context, cardID, labelID string) error

	// CheckConnection verifies the board is reachable with the configured
	// credentials by fetching the board itself. Used for health reporting.
	CheckConnection(ctx context.Context, boardID string) error
}

// ListConfig names the two destination lists every publish run requires:
// one for meeting summary cards and one for action item cards.
type ListConfig struct {
	BoardID           string
	SummaryListID     string
	ActionItemsListID string
}
