package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/meetflow/meetflow-api/internal/api"
	apimiddleware "github.com/meetflow/meetflow-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	emailHandler := api.NewEmailHandler(app.emailService)
	statusHandler := api.NewStatusHandler(app.emailService, app.healthProbes())

	r.Route("/api", func(r chi.Router) {
		// Inbound webhook from the mail forwarding service
		r.Post("/emails/inbound", emailHandler.IngestEmail)

		// Retry management
		r.Get("/emails/failed", emailHandler.ListFailedEmails)
		r.Post("/emails/{id}/retry", emailHandler.RetryEmail)

		// Processing statistics
		r.Get("/status", statusHandler.GetStatus)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
