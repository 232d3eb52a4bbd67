package telemetry

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/reading"
)

// Observer receives one call per adapter per cycle.
// *metrics.Metrics satisfies it.
type Observer interface {
	Transmitted(channel string, ok bool)
}

// Outcome maps each channel URI to whether its transmission succeeded.
type Outcome map[string]bool

// Total returns the number of channels attempted.
func (o Outcome) Total() int { return len(o) }

// Succeeded returns the number of successful channels.
func (o Outcome) Succeeded() int {
	n := 0
	for _, ok := range o {
		if ok {
			n++
		}
	}
	return n
}

// Failed returns the number of failed channels.
func (o Outcome) Failed() int { return o.Total() - o.Succeeded() }

// AllSucceeded reports whether every channel succeeded. An empty outcome
// counts as success.
func (o Outcome) AllSucceeded() bool { return o.Failed() == 0 }

// FailedChannels returns the failed channel URIs, sorted.
func (o Outcome) FailedChannels() []string {
	var out []string
	for ch, ok := range o {
		if !ok {
			out = append(out, ch)
		}
	}
	sort.Strings(out)
	return out
}

// Manager owns every adapter and transmits to them in configuration order.
type Manager struct {
	adapters []*Adapter
	deps     Deps
	logger   Logger
	observer Observer
}

// NewManager builds an adapter for each enabled target.
//
// Returns:
//   - error: the first target that cannot be resolved; misconfiguration
//     is fatal at startup
func NewManager(targets []config.TargetConfig, deps Deps) (*Manager, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Manager{deps: deps, logger: logger}

	for i, t := range targets {
		if !t.Enabled {
			logger.Debug("telemetry target disabled", "target", t.ID)
			continue
		}
		a, err := NewAdapter(t, deps)
		if err != nil {
			name := t.ID
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("telemetry target %s: %w", name, err)
		}
		m.adapters = append(m.adapters, a)
		logger.Info("telemetry target ready", "target", a.ID(), "channel", a.Channel(), "format", a.Format())
	}
	return m, nil
}

// SetObserver sets the per-channel outcome observer.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

// Adapters returns the adapters in transmission order.
func (m *Manager) Adapters() []*Adapter {
	out := make([]*Adapter, len(m.adapters))
	copy(out, m.adapters)
	return out
}

// Transmit sends frame to every adapter in turn.
func (m *Manager) Transmit(ctx context.Context, frame *reading.Frame) Outcome {
	outcome := make(Outcome, len(m.adapters))
	for _, a := range m.adapters {
		ok := m.transmitOne(ctx, a, frame)
		outcome[a.Channel()] = ok
		if m.observer != nil {
			m.observer.Transmitted(a.Channel(), ok)
		}
	}

	m.logger.Info("telemetry transmitted",
		"succeeded", outcome.Succeeded(),
		"total", outcome.Total(),
	)
	return outcome
}

func (m *Manager) transmitOne(ctx context.Context, a *Adapter, frame *reading.Frame) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("telemetry adapter panicked", "channel", a.Channel(), "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return a.Transmit(ctx, frame)
}

// Close closes the transports.
func (m *Manager) Close() error {
	if m.deps.Pool == nil {
		return nil
	}
	return m.deps.Pool.Close()
}
