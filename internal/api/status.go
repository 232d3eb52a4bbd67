package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	DeviceID      string         `json:"device_id"`
	Version       string         `json:"version"`
	Boot          string         `json:"boot"`
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Maintenance   bool           `json:"maintenance"`
	LastCycle     *CycleStatus   `json:"last_cycle,omitempty"`
	State         *StateStatus   `json:"state,omitempty"`
	Links         []LinkStatus   `json:"links,omitempty"`
	Runtime       RuntimeMetrics `json:"runtime"`
}

// CycleStatus summarises the most recent duty cycle.
type CycleStatus struct {
	ID        string          `json:"id"`
	StartedAt string          `json:"started_at"`
	ElapsedMS int64           `json:"elapsed_ms"`
	SleepMS   int64           `json:"sleep_ms"`
	Fields    int             `json:"fields"`
	Succeeded int             `json:"succeeded"`
	Total     int             `json:"total"`
	Channels  map[string]bool `json:"channels"`
}

// StateStatus is the persistent scheduler state.
type StateStatus struct {
	IntervalOverrideMinutes int  `json:"interval_override_minutes,omitempty"`
	Paused                  bool `json:"paused"`
}

// LinkStatus is one supervised link daemon.
type LinkStatus struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Restarts      int    `json:"restarts"`
	LastError     string `json:"last_error,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatusResponse{
		DeviceID:      s.deviceID,
		Version:       s.version,
		Boot:          s.logger.Boot(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Maintenance:   s.mode.Maintenance(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.cycles != nil {
		if report, ok := s.cycles.LastReport(); ok {
			cs := &CycleStatus{
				ID:        report.ID,
				StartedAt: report.StartedAt.UTC().Format(time.RFC3339),
				ElapsedMS: report.Elapsed.Milliseconds(),
				SleepMS:   report.Sleep.Milliseconds(),
				Succeeded: report.Outcome.Succeeded(),
				Total:     report.Outcome.Total(),
				Channels:  map[string]bool(report.Outcome),
			}
			if report.Frame != nil {
				cs.Fields = len(report.Frame.Inbound)
			}
			resp.LastCycle = cs
		}
	}

	if s.state != nil {
		snap, err := s.state.Load(r.Context())
		if err != nil {
			s.logger.Warn("loading persistent state failed", "error", err)
		} else {
			st := &StateStatus{Paused: snap.Paused}
			if snap.HasOverride {
				st.IntervalOverrideMinutes = int(snap.IntervalOverride / time.Minute)
			}
			resp.State = st
		}
	}

	if s.links != nil {
		for _, st := range s.links.Links() {
			resp.Links = append(resp.Links, LinkStatus{
				Name:          st.Name,
				Status:        string(st.Status),
				PID:           st.PID,
				UptimeSeconds: int64(st.Uptime.Seconds()),
				Restarts:      st.RestartCount,
				LastError:     st.LastError,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
