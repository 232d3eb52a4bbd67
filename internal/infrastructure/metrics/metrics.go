// Package metrics exposes duty-cycle, sensor and telemetry counters in
// Prometheus format.
//
// Metrics live in a private registry so tests can create as many instances
// as they like; the admin API serves it on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "fieldlogger"

// Metrics contains all field logger metrics.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal     prometheus.Counter
	cycleDuration   prometheus.Histogram
	sensorReads     *prometheus.CounterVec
	transmits       *prometheus.CounterVec
	lastCycleFailed prometheus.Gauge
	nextSleep       prometheus.Gauge
	maintenance     prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
// An empty namespace uses DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of completed duty cycles",
		}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time from cycle start to sleep decision",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		sensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "reads_total",
			Help:      "Sensor reads by outcome (ok, not_initialized, error)",
		}, []string{"sensor", "status"}),

		transmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "transmits_total",
			Help:      "Telemetry transmissions by channel and result",
		}, []string{"channel", "result"}),

		lastCycleFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "last_cycle_failed_channels",
			Help:      "Number of channels that failed in the most recent cycle",
		}),

		nextSleep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "next_sleep_seconds",
			Help:      "Sleep duration computed at the end of the most recent cycle",
		}),

		maintenance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "maintenance_mode",
			Help:      "Maintenance mode flag (0=field, 1=maintenance)",
		}),
	}

	m.registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.sensorReads,
		m.transmits,
		m.lastCycleFailed,
		m.nextSleep,
		m.maintenance,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SensorRead records one sensor outcome.
func (m *Metrics) SensorRead(sensorID, status string) {
	m.sensorReads.WithLabelValues(sensorID, status).Inc()
}

// Transmitted records one channel outcome.
func (m *Metrics) Transmitted(channel string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.transmits.WithLabelValues(channel, result).Inc()
}

// CycleCompleted records a finished cycle.
func (m *Metrics) CycleCompleted(elapsed time.Duration, succeeded, total int) {
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.lastCycleFailed.Set(float64(total - succeeded))
}

// NextSleep records the computed sleep duration.
func (m *Metrics) NextSleep(d time.Duration) {
	m.nextSleep.Set(d.Seconds())
}

// ModeChanged records the maintenance flag.
func (m *Metrics) ModeChanged(maintenance bool) {
	value := 0.0
	if maintenance {
		value = 1.0
	}
	m.maintenance.Set(value)
}
