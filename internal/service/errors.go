package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent expected conditions that callers check with errors.Is().
// The API layer maps them to HTTP status codes.
var (
	// ErrEmailNotFound indicates the requested email record does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrEmailNotFound = errors.New("email not found")

	// ErrRetryNotAllowed indicates a retry was requested for an email that is
	// not in the failed status. Only failed emails may be retried.
	// API layer should map this to HTTP 409 Conflict.
	ErrRetryNotAllowed = errors.New("email is not in a retryable state")

	// ErrEmptyEmailBody indicates an inbound email carried no usable body text.
	// API layer should map this to HTTP 400 Bad Request.
	ErrEmptyEmailBody = errors.New("email body cannot be empty")
)
