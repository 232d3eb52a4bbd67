package api

import (
	"net/http"
	"time"
)

// ReadingsResponse is the body of GET /api/v1/readings.
type ReadingsResponse struct {
	TakenAt string         `json:"taken_at"`
	Fields  map[string]any `json:"fields"`
}

// handleReadings returns the inbound mapping of the last read pass.
func (s *Server) handleReadings(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeNotFound(w, "no reading cache")
		return
	}
	fields, at, ok := s.cache.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "no read pass has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, ReadingsResponse{
		TakenAt: at.UTC().Format(time.RFC3339),
		Fields:  fields,
	})
}
