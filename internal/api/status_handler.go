package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meetflow/meetflow-api/internal/api/shared"
	"github.com/meetflow/meetflow-api/internal/domain"
)

// healthProbeTimeout bounds each connection check so a hung dependency
// cannot stall the whole status report.
const healthProbeTimeout = 10 * time.Second

// StatisticsResponse reports how many emails are in each pipeline status.
type StatisticsResponse struct {
	Total                 int    `json:"total"`
	Received              int    `json:"received"`
	Parsing               int    `json:"parsing"`
	Parsed                int    `json:"parsed"`
	CreatingCards         int    `json:"creating_cards"`
	Completed             int    `json:"completed"`
	Failed                int    `json:"failed"`
	SuccessRate           string `json:"success_rate"`
	AverageProcessingTime string `json:"average_processing_time"`
}

// RecentEmailResponse represents a recently ingested email in the status
// report.
type RecentEmailResponse struct {
	ID                    string     `json:"id"`
	Subject               string     `json:"subject"`
	Sender                string     `json:"sender"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	SummaryCardRef        string     `json:"summary_card_ref,omitempty"`
}

// ServiceHealthResponse reports whether each external dependency responded
// to a live connection check.
type ServiceHealthResponse struct {
	Database   bool `json:"database"`
	Extraction bool `json:"extraction"`
	Board      bool `json:"board"`
}

// StatusResponse is the body of the processing status report.
type StatusResponse struct {
	Timestamp     time.Time             `json:"timestamp"`
	Statistics    StatisticsResponse    `json:"statistics"`
	ServiceHealth ServiceHealthResponse `json:"service_health"`
	RecentEmails  []RecentEmailResponse `json:"recent_emails"`
}

// HealthProbe checks one external dependency. A nil error means healthy.
type HealthProbe func(ctx context.Context) error

// HealthProbes bundles the connection checks the status report surfaces.
// A nil probe reports unhealthy: a dependency nobody wired up is not one
// we can vouch for.
type HealthProbes struct {
	Database   HealthProbe
	Extraction HealthProbe
	Board      HealthProbe
}

// StatusHandler handles processing status requests.
type StatusHandler struct {
	emailService EmailService
	probes       HealthProbes
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(emailService EmailService, probes HealthProbes) *StatusHandler {
	return &StatusHandler{
		emailService: emailService,
		probes:       probes,
	}
}

// GetStatus handles GET /api/status requests with per-status counts, the
// overall success rate, recent emails, and the average processing time of
// recently completed records.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.emailService.StatusReport(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	stats := StatisticsResponse{
		Received:      report.Counts[domain.EmailStatusReceived],
		Parsing:       report.Counts[domain.EmailStatusParsing],
		Parsed:        report.Counts[domain.EmailStatusParsed],
		CreatingCards: report.Counts[domain.EmailStatusCreatingCards],
		Completed:     report.Counts[domain.EmailStatusCompleted],
		Failed:        report.Counts[domain.EmailStatusFailed],
	}
	for _, count := range report.Counts {
		stats.Total += count
	}
	successRate := 0
	if stats.Total > 0 {
		successRate = stats.Completed * 100 / stats.Total
	}
	stats.SuccessRate = fmt.Sprintf("%d%%", successRate)

	stats.AverageProcessingTime = "Unknown"
	if report.AvgProcessing > 0 {
		stats.AverageProcessingTime = report.AvgProcessing.Round(time.Second).String()
	}

	recent := make([]RecentEmailResponse, 0, len(report.RecentEmails))
	for _, record := range report.RecentEmails {
		recent = append(recent, RecentEmailResponse{
			ID:                    record.ID.String(),
			Subject:               record.Subject,
			Sender:                record.Sender,
			Status:                string(record.Status),
			CreatedAt:             record.CreatedAt,
			ProcessingCompletedAt: record.ProcessingCompletedAt,
			ErrorMessage:          record.ErrorMessage,
			SummaryCardRef:        record.SummaryCardRef,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		Timestamp:  time.Now().UTC(),
		Statistics: stats,
		ServiceHealth: ServiceHealthResponse{
			Database:   h.probeHealthy(r.Context(), "database", h.probes.Database),
			Extraction: h.probeHealthy(r.Context(), "extraction", h.probes.Extraction),
			Board:      h.probeHealthy(r.Context(), "board", h.probes.Board),
		},
		RecentEmails: recent,
	})
}

// probeHealthy runs one connection check under its own timeout. Probe
// failures degrade the report, never the response.
func (h *StatusHandler) probeHealthy(ctx context.Context, name string, probe HealthProbe) bool {
	if probe == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	if err := probe(probeCtx); err != nil {
		slog.WarnContext(ctx, "service health check failed",
			slog.String("service", name),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
