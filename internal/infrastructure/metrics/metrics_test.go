package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Recording(t *testing.T) {
	m := New("")

	m.SensorRead("bme", "ok")
	m.SensorRead("bme", "ok")
	m.SensorRead("ds", "error")
	m.Transmitted("mqtt://broker/a/data.json", true)
	m.Transmitted("http://ingest/data", false)
	m.CycleCompleted(3*time.Second, 1, 2)
	m.NextSleep(57 * time.Second)
	m.ModeChanged(true)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sensor ok", testutil.ToFloat64(m.sensorReads.WithLabelValues("bme", "ok")), 2},
		{"sensor error", testutil.ToFloat64(m.sensorReads.WithLabelValues("ds", "error")), 1},
		{"transmit success", testutil.ToFloat64(m.transmits.WithLabelValues("mqtt://broker/a/data.json", "success")), 1},
		{"transmit failure", testutil.ToFloat64(m.transmits.WithLabelValues("http://ingest/data", "failure")), 1},
		{"cycles", testutil.ToFloat64(m.cyclesTotal), 1},
		{"failed channels", testutil.ToFloat64(m.lastCycleFailed), 1},
		{"next sleep", testutil.ToFloat64(m.nextSleep), 57},
		{"maintenance", testutil.ToFloat64(m.maintenance), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New("testlogger")
	m.CycleCompleted(time.Second, 2, 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "testlogger_cycle_total") {
		t.Error("response does not contain testlogger_cycle_total")
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New("")
	b := New("")
	a.ModeChanged(true)

	if got := testutil.ToFloat64(b.maintenance); got != 0 {
		t.Errorf("second instance maintenance = %v, want 0", got)
	}
}
