package api

import (
	"net/http"
	"strconv"
)

// LogsResponse is the body of GET /api/v1/logs.
type LogsResponse struct {
	Boot    string   `json:"boot"`
	Entries []string `json:"entries"`
}

// handleLogs returns the most recent log entries, oldest first. The
// optional limit query parameter keeps only the newest n.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.logger.Recent()
	if entries == nil {
		writeNotFound(w, "log buffer disabled")
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, http.StatusOK, LogsResponse{Boot: s.logger.Boot(), Entries: entries})
}
