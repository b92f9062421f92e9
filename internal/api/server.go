// Package api implements the admin REST surface over the notification
// subsystem and the thin submission CRUD that triggers it.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projekportal/notifier/internal/service"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	submissions *service.SubmissionService
	notifier    *service.NotifierService
	logger      *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(submissions *service.SubmissionService, notifier *service.NotifierService, logger *slog.Logger) *Server {
	return &Server{
		submissions: submissions,
		notifier:    notifier,
		logger:      logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Submissions CRUD
	r.Get("/submissions", s.handleListSubmissions)
	r.Post("/submissions", s.handleCreateSubmission)
	r.Get("/submissions/{id}", s.handleGetSubmission)
	r.Put("/submissions/{id}", s.handleUpdateSubmission)

	// Notification subsystem
	r.Get("/notifications/stats", s.handleStats)
	r.Get("/notifications/logs", s.handleLogs)
	r.Post("/notifications/purge", s.handlePurge)
	r.Get("/notifications/status", s.handleStatus)
	r.Get("/notifications/config", s.handleGetChannelSettings)
	r.Put("/notifications/config", s.handleUpdateChannelSettings)
	r.Post("/notifications/test", s.handleTestChannel)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps typed service errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var notFound *service.NotFoundError
	var validation *service.ValidationError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
