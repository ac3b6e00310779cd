// Package gemini implements the extraction.Extractor interface using
// Google's Gemini API. It owns the prompt template, the retry policy for
// transient API failures, and the mapping from API-level failures to the
// extraction package's error taxonomy.
package gemini
