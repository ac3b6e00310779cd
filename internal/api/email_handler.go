package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meetflow/meetflow-api/internal/api/shared"
	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/service"
)

// Defaults applied when the inbound webhook omits a field, matching what
// mail forwarding services send for bodiless notifications.
const (
	defaultSubject = "No subject"
	defaultSender  = "Unknown sender"
)

// EmailService defines the service operations the email handlers depend on.
type EmailService interface {
	IngestEmail(
		ctx context.Context,
		subject, body, sender string,
		receivedAt time.Time,
	) (*domain.EmailRecord, error)
	ListRetryableEmails(ctx context.Context) ([]*domain.EmailRecord, error)
	RetryEmail(ctx context.Context, emailID uuid.UUID) (*domain.EmailRecord, error)
	StatusReport(ctx context.Context) (*service.StatusReport, error)
}

// InboundEmailResponse is returned when an inbound email has been accepted.
type InboundEmailResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// EmailResponse represents an email record in list and retry responses.
type EmailResponse struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Sender       string     `json:"sender"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	LastRetryAt  *time.Time `json:"last_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FailedEmailsResponse wraps the list of failed emails eligible for retry.
type FailedEmailsResponse struct {
	FailedEmails []EmailResponse `json:"failed_emails"`
}

// EmailHandler handles email-related HTTP requests.
type EmailHandler struct {
	emailService EmailService
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(emailService EmailService) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
	}
}

// IngestEmail handles POST /api/emails/inbound requests from the mail
// forwarding webhook. It accepts both JSON and form-encoded payloads,
// stores the email, and returns 202 before processing completes.
func (h *EmailHandler) IngestEmail(w http.ResponseWriter, r *http.Request) {
	subject, body, sender, receivedAt, err := parseInboundEmail(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	record, err := h.emailService.IngestEmail(r.Context(), subject, body, sender, receivedAt)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, InboundEmailResponse{
		ID:      record.ID.String(),
		Status:  string(record.Status),
		Message: "Email received and processing started",
	})
}

// ListFailedEmails handles GET /api/emails/failed requests, returning
// failed emails that have not exhausted their retries.
func (h *EmailHandler) ListFailedEmails(w http.ResponseWriter, r *http.Request) {
	records, err := h.emailService.ListRetryableEmails(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := FailedEmailsResponse{
		FailedEmails: make([]EmailResponse, 0, len(records)),
	}
	for _, record := range records {
		response.FailedEmails = append(response.FailedEmails, emailToDTOResponse(record))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// RetryEmail handles POST /api/emails/{id}/retry requests. Only emails in
// the failed status can be retried; anything else gets a 409.
func (h *EmailHandler) RetryEmail(w http.ResponseWriter, r *http.Request) {
	emailID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid email ID")
		return
	}

	record, err := h.emailService.RetryEmail(r.Context(), emailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, emailToDTOResponse(record))
}

// emailToDTOResponse converts a domain.EmailRecord to an EmailResponse.
func emailToDTOResponse(record *domain.EmailRecord) EmailResponse {
	return EmailResponse{
		ID:           record.ID.String(),
		Subject:      record.Subject,
		Sender:       record.Sender,
		Status:       string(record.Status),
		ErrorMessage: record.ErrorMessage,
		RetryCount:   record.RetryCount,
		LastRetryAt:  record.LastRetryAt,
		CreatedAt:    record.CreatedAt,
	}
}

// inboundEmailPayload mirrors the field aliases mail forwarding services
// use for inbound webhooks. JSON unmarshalling is case-insensitive, so
// "Subject" and "From" map onto the same fields.
type inboundEmailPayload struct {
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	From      string `json:"from"`
	BodyPlain string `json:"body-plain"`
	Text      string `json:"text"`
	Body      string `json:"body"`
	BodyHTML  string `json:"body-html"`
	HTML      string `json:"html"`
	Timestamp string `json:"timestamp"`
}

// parseInboundEmail extracts the email fields from either a JSON or a
// form-encoded webhook request. The plain-text body is preferred; the HTML
// body is a fallback so HTML-only emails still get processed.
func parseInboundEmail(r *http.Request) (subject, body, sender string, receivedAt time.Time, err error) {
	var payload inboundEmailPayload

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := shared.DecodeJSON(r, &payload); err != nil {
			return "", "", "", time.Time{}, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", "", time.Time{}, err
		}
		payload = inboundEmailPayload{
			Subject:   firstNonEmpty(r.PostFormValue("subject"), r.PostFormValue("Subject")),
			Sender:    r.PostFormValue("sender"),
			From:      firstNonEmpty(r.PostFormValue("From"), r.PostFormValue("from")),
			BodyPlain: r.PostFormValue("body-plain"),
			Text:      r.PostFormValue("text"),
			Body:      r.PostFormValue("body"),
			BodyHTML:  r.PostFormValue("body-html"),
			HTML:      r.PostFormValue("html"),
			Timestamp: r.PostFormValue("timestamp"),
		}
	}

	subject = firstNonEmpty(payload.Subject, defaultSubject)
	sender = firstNonEmpty(payload.Sender, payload.From, defaultSender)
	body = firstNonEmpty(payload.BodyPlain, payload.Text, payload.Body)
	if body == "" {
		body = firstNonEmpty(payload.BodyHTML, payload.HTML)
	}

	return subject, body, sender, parseTimestamp(payload.Timestamp), nil
}

// parseTimestamp accepts the unix-seconds format the webhook sends, plus
// RFC 3339 for manually submitted requests. Anything else falls back to
// the current time.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
