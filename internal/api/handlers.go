package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	DeviceID string `json:"device_id"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
}

// handleHealth reports liveness and identity.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		DeviceID: s.deviceID,
		Version:  s.version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

// KnobsResponse is the payload for GET /api/v1/knobs.
type KnobsResponse struct {
	DeviceID string               `json:"device_id"`
	Active   ActiveKnob           `json:"active"`
	Knobs    []protocol.KnobState `json:"knobs"`
}

// ActiveKnob identifies the grid position currently under pot control.
type ActiveKnob struct {
	Channel int `json:"channel"`
	Index   int `json:"index"`
}

// handleListKnobs returns a snapshot of the whole grid.
func (s *Server) handleListKnobs(w http.ResponseWriter, _ *http.Request) {
	channel, index := s.engine.Active()
	writeJSON(w, http.StatusOK, KnobsResponse{
		DeviceID: s.deviceID,
		Active:   ActiveKnob{Channel: channel, Index: index},
		Knobs:    s.engine.Snapshot(),
	})
}

// handleHistory returns recent mutation entries, newest first.
// Accepts an optional ?limit= query parameter (default 50, max 200).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "mutation history is disabled")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read mutation history", "error", err)
		writeInternalError(w, "failed to read mutation history")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// parseHistoryLimit validates the limit query parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &limitError{raw}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}

type limitError struct {
	raw string
}

func (e *limitError) Error() string {
	return "limit must be a positive integer, got " + strconv.Quote(e.raw)
}
