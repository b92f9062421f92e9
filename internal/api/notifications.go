package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/projekportal/notifier/internal/notify"
)

// handleStats returns the audit-log aggregate, optionally scoped to one
// submission via ?submission_id=.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.notifier.Stats(r.Context(), r.URL.Query().Get("submission_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleLogs returns stored delivery attempts, optionally scoped to one
// submission.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.notifier.Logs(r.Context(), r.URL.Query().Get("submission_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// handlePurge deletes audit entries older than the requested age.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OlderThanDays int `json:"older_than_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// A query parameter is accepted as the console-friendly alternative.
		if d, perr := strconv.Atoi(r.URL.Query().Get("older_than_days")); perr == nil {
			req.OlderThanDays = d
		} else {
			writeError(w, http.StatusBadRequest, errInvalidJSONBody)
			return
		}
	}

	result, err := s.notifier.PurgeLogs(r.Context(), req.OlderThanDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStatus reports whether configuration and recipients are currently
// resolvable, for operator dashboards.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notifier.Status(r.Context()))
}

// handleGetChannelSettings returns the persisted channel configuration with
// keys masked.
func (s *Server) handleGetChannelSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.notifier.ChannelSettings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateChannelSettings persists new channel configuration. Masked key
// fields ("***") preserve the stored values.
func (s *Server) handleUpdateChannelSettings(w http.ResponseWriter, r *http.Request) {
	var incoming notify.ChannelSettings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	if err := s.notifier.UpdateChannelSettings(r.Context(), incoming); err != nil {
		writeServiceError(w, err)
		return
	}
	settings, err := s.notifier.ChannelSettings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleTestChannel sends a test message through the primary channel sink.
func (s *Server) handleTestChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.notifier.TestChannel(r.Context()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
