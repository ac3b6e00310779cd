package extraction

import "errors"

// Common errors returned by the extraction package
var (
	// ErrResponseNotParseable is returned when the model's response could
	// not be parsed as structured data by either the direct parse or the
	// balanced-object recovery scan. Fatal to a pipeline run.
	ErrResponseNotParseable = errors.New("extraction response is not parseable as JSON")

	// ErrServiceFailure is returned when the extraction service call itself
	// fails (network, timeout, rate limit). Fatal to a pipeline run.
	ErrServiceFailure = errors.New("extraction service call failed")

	// ErrContentBlocked is returned when the model refuses the content due
	// to safety filters. Treated like any other service failure by the
	// orchestrator but kept distinct for diagnostics.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the extractor configuration is invalid.
	ErrInvalidConfig = errors.New("invalid extractor configuration")
)
