package api

import (
	"errors"
	"net/http"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/service"
	"github.com/meetflow/meetflow-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrEmailNotFound),
		errors.Is(err, store.ErrEmailNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrRetryNotAllowed),
		errors.Is(err, store.ErrStatusConflict):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrEmptyEmailBody),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrEmailNotFound),
		errors.Is(err, store.ErrEmailNotFound):
		return "Email not found"

	case errors.Is(err, service.ErrRetryNotAllowed):
		return "Email is not in a retryable state"

	case errors.Is(err, service.ErrEmptyEmailBody):
		return "Email body is empty"

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, store.ErrStatusConflict):
		return "Email is not in a state that allows this operation"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
