// Package extraction defines the boundary between the pipeline and the
// external language model: the Extractor interface, the response parser
// that tolerates JSON wrapped in prose, and the total normalizer that
// bridges the model's untrusted output into canonical meeting data.
package extraction
