package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/readings", s.handleReadings)

		r.Route("/mode", func(r chi.Router) {
			r.Get("/", s.handleGetMode)
			r.Put("/", s.handleSetMode)
		})

		r.Get("/config", s.handleGetConfig)
		r.Get("/logs", s.handleLogs)
	})

	return r
}

// handleHealth returns the server health status. A failing database
// check reports "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = "ok"
	writeJSON(w, http.StatusOK, resp)
}
