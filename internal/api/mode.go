package api

import (
	"encoding/json"
	"net/http"
)

// ModeBody is the request and response body of /api/v1/mode.
type ModeBody struct {
	Maintenance *bool `json:"maintenance"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	m := s.mode.Maintenance()
	writeJSON(w, http.StatusOK, ModeBody{Maintenance: &m})
}

// handleSetMode switches maintenance mode. A pending maintenance wait ends
// at once so the new interval applies to the next cycle.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body ModeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Maintenance == nil {
		writeBadRequest(w, "maintenance is required")
		return
	}

	s.mode.Set(*body.Maintenance)
	s.logger.Info("mode set via API", "maintenance", *body.Maintenance)

	m := s.mode.Maintenance()
	writeJSON(w, http.StatusOK, ModeBody{Maintenance: &m})
}
