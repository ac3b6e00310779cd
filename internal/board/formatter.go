package board

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/meetflow/meetflow-api/internal/domain"
)

// defaultDueHour is appended to date-only meeting dates: a card due "on the
// meeting day" lands at noon rather than midnight.
const defaultDueHour = 12

var replyPrefixPattern = regexp.MustCompile(`(?i)^(fwd:|re:)\s*`)

// Formatter renders canonical meeting data into board card payloads.
// It performs no I/O and is deterministic given the same inputs and clock.
type Formatter struct {
	lists ListConfig

	// now supplies the processing time used when no better due date exists.
	now func() time.Time
}

// NewFormatter creates a Formatter targeting the given lists.
func NewFormatter(lists ListConfig) *Formatter {
	return &Formatter{
		lists: lists,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the Formatter using the given clock.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	return &Formatter{lists: f.lists, now: now}
}

// SummaryCard renders the meeting summary card payload.
// The title drops a leading reply/forward prefix from the email subject.
func (f *Formatter) SummaryCard(meeting *domain.MeetingData, subject string) CardRequest {
	return CardRequest{
		ListID:      f.lists.SummaryListID,
		Name:        "Meeting Summary: " + StripReplyPrefix(subject),
		Description: f.summaryDescription(meeting),
		Due:         f.resolveDate(meeting.MeetingDate),
	}
}

// ActionItemCard renders a single action item card payload.
// Due-date resolution order: the item's own due date, then the meeting
// date, then processing time as the last resort.
func (f *Formatter) ActionItemCard(item domain.ActionItem, meetingDate string) CardRequest {
	due := f.resolveDate(item.DueDate)
	if item.DueDate == "" {
		due = f.resolveDate(meetingDate)
	}

	return CardRequest{
		ListID:      f.lists.ActionItemsListID,
		Name:        fmt.Sprintf("%s (%s)", item.Task, item.Assignee),
		Description: f.actionItemDescription(item),
		Due:         due,
	}
}

// StripReplyPrefix removes one leading "Fwd:" or "Re:" (case-insensitive)
// from an email subject.
func StripReplyPrefix(subject string) string {
	return replyPrefixPattern.ReplaceAllString(subject, "")
}

// resolveDate converts a meeting/due date string into an absolute
// timestamp. Date-time strings are used as-is; date-only strings get the
// default time of day appended; empty or unparseable strings fall back to
// processing time.
func (f *Formatter) resolveDate(date string) time.Time {
	if date == "" {
		return f.now()
	}

	// Presence of a time separator means the string carries a time component.
	if strings.Contains(date, ":") {
		for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", time.RFC3339} {
			if t, err := time.Parse(layout, date); err == nil {
				return t.UTC()
			}
		}
		return f.now()
	}

	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return f.now()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), defaultDueHour, 0, 0, 0, time.UTC)
}

// summaryDescription builds the structured text block for the summary card:
// the extracted summary, the meeting date, the participant list and a
// numbered recap of the action items.
func (f *Formatter) summaryDescription(meeting *domain.MeetingData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Meeting Summary\n\n%s\n\n", meeting.Summary)

	if meeting.MeetingDate != "" {
		fmt.Fprintf(&b, "**Meeting Date:** %s\n\n", meeting.MeetingDate)
	}

	if len(meeting.Participants) > 0 {
		b.WriteString("**Participants:**\n")
		for _, p := range meeting.Participants {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if len(meeting.ActionItems) > 0 {
		b.WriteString("**Action Items Summary:**\n")
		for i, item := range meeting.ActionItems {
			fmt.Fprintf(&b, "%d. %s (%s)", i+1, item.Task, item.Assignee)
			if item.DueDate != "" {
				fmt.Fprintf(&b, " - Due: %s", item.DueDate)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n---\n*Generated automatically from meeting email*")

	return b.String()
}

// actionItemDescription builds the structured text block for an action item
// card.
func (f *Formatter) actionItemDescription(item domain.ActionItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Task:** %s\n\n", item.Task)
	fmt.Fprintf(&b, "**Assigned to:** %s\n\n", item.Assignee)
	fmt.Fprintf(&b, "**Priority:** %s\n\n", capitalize(string(item.Priority)))

	if item.DueDate != "" {
		fmt.Fprintf(&b, "**Due Date:** %s\n\n", item.DueDate)
	}

	status := "Pending"
	if item.Completed {
		status = "Completed"
	}
	fmt.Fprintf(&b, "**Status:** %s\n\n", status)
	b.WriteString("---\n*Generated automatically from meeting email*")

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
