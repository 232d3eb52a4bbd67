package api

import (
	"net/http"
	"strings"
)

const redacted = "********"

// secretKeys are configuration keys whose values never leave the device.
var secretKeys = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
}

// ConfigResponse is the body of GET /api/v1/config.
type ConfigResponse struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// handleGetConfig returns the configuration value at the dotted "path"
// query parameter. An empty path returns the whole document.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeNotFound(w, "configuration not available")
		return
	}

	path := strings.Trim(r.URL.Query().Get("path"), ".")
	value := s.settings.Get(path, nil)
	if value == nil {
		writeNotFound(w, "no configuration value at "+path)
		return
	}

	if last := path[strings.LastIndex(path, ".")+1:]; secretKeys[strings.ToLower(last)] {
		value = redacted
	}
	writeJSON(w, http.StatusOK, ConfigResponse{Path: path, Value: redact(value)})
}

// redact replaces secret values in nested mappings. The store returns
// copies, so mutating in place is safe.
func redact(v any) any {
	switch m := v.(type) {
	case map[string]any:
		for k, child := range m {
			if secretKeys[strings.ToLower(k)] {
				m[k] = redacted
				continue
			}
			m[k] = redact(child)
		}
		return m
	case []any:
		for i, child := range m {
			m[i] = redact(child)
		}
		return m
	default:
		return v
	}
}
