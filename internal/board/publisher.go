package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meetflow/meetflow-api/internal/domain"
)

// priorityColors maps action item priorities to the label color used when
// a matching board label has to be created.
var priorityColors = map[domain.Priority]string{
	domain.PriorityHigh:   "red",
	domain.PriorityMedium: "yellow",
	domain.PriorityLow:    "green",
}

// PublishResult holds the external references of the cards a publish run
// actually created. ActionItemCardRefs may be shorter than the input action
// item sequence when individual card creations failed; callers must not
// assume a 1:1 positional correspondence.
type PublishResult struct {
	SummaryCardRef     string
	ActionItemCardRefs []string
}

// CardPublisher creates board cards for extracted meeting data: exactly one
// summary card, then one card per action item, strictly sequentially in
// input order so a rate-limited board API is never hit with a burst and
// card ordering on the board stays predictable.
type CardPublisher struct {
	client    Client
	formatter *Formatter
	lists     ListConfig
	logger    *slog.Logger
}

// NewCardPublisher creates a CardPublisher.
// Returns ErrInvalidConfig if any board or list identifier is missing.
func NewCardPublisher(client Client, lists ListConfig, logger *slog.Logger) (*CardPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if lists.BoardID == "" || lists.SummaryListID == "" || lists.ActionItemsListID == "" {
		return nil, fmt.Errorf("%w: board and list IDs are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CardPublisher{
		client:    client,
		formatter: NewFormatter(lists),
		lists:     lists,
		logger:    logger.With("component", "card_publisher"),
	}, nil
}

// WithFormatter returns a copy of the publisher using the given formatter.
// Used by tests to pin the formatter's clock.
func (p *CardPublisher) WithFormatter(formatter *Formatter) *CardPublisher {
	return &CardPublisher{
		client:    p.client,
		formatter: formatter,
		lists:     p.lists,
		logger:    p.logger,
	}
}

// Publish creates the summary card and the action item cards for the given
// meeting. Summary card failure is fatal (ErrSummaryCardFailed); a failure
// creating an individual action item card is logged and skipped so the
// remaining items still get their cards.
func (p *CardPublisher) Publish(
	ctx context.Context,
	meeting *domain.MeetingData,
	emailSubject string,
) (*PublishResult, error) {
	summaryReq := p.formatter.SummaryCard(meeting, emailSubject)
	summaryRef, err := p.client.CreateCard(ctx, summaryReq)
	if err != nil {
		p.logger.Error("failed to create meeting summary card",
			"error", err,
			"subject", emailSubject)
		return nil, fmt.Errorf("%w: %v", ErrSummaryCardFailed, err)
	}

	p.logger.Info("created meeting summary card",
		"card_id", summaryRef.ID,
		"due", summaryReq.Due)

	result := &PublishResult{
		SummaryCardRef:     summaryRef.ID,
		ActionItemCardRefs: make([]string, 0, len(meeting.ActionItems)),
	}

	for _, item := range meeting.ActionItems {
		ref, err := p.client.CreateCard(ctx, p.formatter.ActionItemCard(item, meeting.MeetingDate))
		if err != nil {
			// Continue with the remaining items even if one fails.
			p.logger.Error("failed to create action item card, skipping",
				"error", err,
				"action_item_id", item.ID,
				"task", item.Task)
			continue
		}

		result.ActionItemCardRefs = append(result.ActionItemCardRefs, ref.ID)
		p.logger.Info("created action item card",
			"card_id", ref.ID,
			"action_item_id", item.ID)

		p.attachPriorityLabel(ctx, ref.ID, item.Priority)
	}

	return result, nil
}

// attachPriorityLabel attaches a priority label to a card, creating the
// label if the board has none whose name contains the priority word.
// Label handling is best-effort: every failure here is swallowed, a card
// without its label is still a perfectly good card.
func (p *CardPublisher) attachPriorityLabel(ctx context.Context, cardID string, priority domain.Priority) {
	labels, err := p.client.ListLabels(ctx, p.lists.BoardID)
	if err != nil {
		p.logger.Warn("failed to list board labels, skipping priority label",
			"error", err,
			"card_id", cardID)
		return
	}

	var label *Label
	for i := range labels {
		if containsFold(labels[i].Name, string(priority)) {
			label = &labels[i]
			break
		}
	}

	if label == nil {
		name := "Priority: " + capitalize(string(priority))
		label, err = p.client.CreateLabel(ctx, p.lists.BoardID, name, priorityColors[priority])
		if err != nil {
			p.logger.Warn("failed to create priority label",
				"error", err,
				"card_id", cardID,
				"priority", priority)
			return
		}
	}

	if err := p.client.AttachLabel(ctx, cardID, label.ID); err != nil {
		p.logger.Warn("failed to attach priority label",
			"error", err,
			"card_id", cardID,
			"label_id", label.ID)
	}
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
