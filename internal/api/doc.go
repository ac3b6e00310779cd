// Package api contains the HTTP handlers for the inbound email webhook,
// the retry endpoints, and the processing status report. Handlers decode
// and validate requests, delegate to the service layer, and map service
// errors to HTTP status codes without leaking internal details.
package api
