package extraction

import (
	"context"

	"github.com/meetflow/meetflow-api/internal/domain"
)

// Extractor defines the interface for turning an email's free text into
// structured meeting data. It is the boundary between the pipeline core and
// the external LLM service: implementations call the model, parse whatever
// text comes back, and run it through the normalizer so callers always
// receive a total, fully-typed MeetingData.
type Extractor interface {
	// ExtractMeetingData extracts structured meeting data from the email's
	// subject and body.
	//
	// Returns ErrResponseNotParseable when no JSON-like content can be
	// located in the model's response, or ErrServiceFailure when the model
	// call itself fails. Malformed-but-parseable responses never error:
	// the normalizer substitutes deterministic defaults field by field.
	ExtractMeetingData(ctx context.Context, subject, body string) (*domain.MeetingData, error)

	// CheckConnection verifies that the model service is reachable and
	// responding, using the cheapest call the provider offers. It is meant
	// for health reporting, not for gating extraction.
	CheckConnection(ctx context.Context) error
}
