package connectivity

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/process"
)

var (
	// ErrLinkDown is returned when a medium did not come up in time.
	ErrLinkDown = errors.New("connectivity: link down")

	// ErrNoSuchInterface is returned when the kernel has no such interface.
	ErrNoSuchInterface = errors.New("connectivity: no such interface")

	// ErrRadio wraps radio module errors.
	ErrRadio = errors.New("connectivity: radio error")

	// ErrRadioTimeout is returned when the radio did not answer in time.
	ErrRadioTimeout = errors.New("connectivity: radio timeout")
)

// Logger defines the logging interface used by connectivity.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Medium is one network medium.
type Medium interface {
	Name() string

	// Ensure brings the medium up if needed and waits for the link.
	Ensure(ctx context.Context) error

	// Teardown brings the medium down. It is called before deep sleep.
	Teardown(ctx context.Context) error
}

// Manager owns the configured media.
type Manager struct {
	media  []Medium
	ifaces []*Interface
	modem  *Modem
	logger Logger
}

// NewManager builds the media described by cfg.
func NewManager(cfg config.ConnectivityConfig) *Manager {
	m := &Manager{logger: noopLogger{}}
	for _, mc := range cfg.Media {
		iface := NewInterface(mc)
		m.ifaces = append(m.ifaces, iface)
		if mc.Kind == config.MediumModem {
			modem := NewModem(iface)
			m.modem = modem
			m.media = append(m.media, modem)
			continue
		}
		m.media = append(m.media, iface)
	}
	return m
}

// NewManagerWith creates a manager over existing media.
func NewManagerWith(media ...Medium) *Manager {
	m := &Manager{media: media, logger: noopLogger{}}
	for _, md := range media {
		if modem, ok := md.(*Modem); ok {
			m.modem = modem
		}
	}
	return m
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	for _, i := range m.ifaces {
		i.SetLogger(logger)
	}
}

// Modem returns the modem medium, or nil when none is configured.
func (m *Manager) Modem() *Modem {
	return m.modem
}

// Media returns the managed media.
func (m *Manager) Media() []Medium {
	out := make([]Medium, len(m.media))
	copy(out, m.media)
	return out
}

// Ensure brings every medium up. A failing medium does not stop the
// others; the joined error lists every failure.
func (m *Manager) Ensure(ctx context.Context) error {
	var errs []error
	for _, md := range m.media {
		if err := md.Ensure(ctx); err != nil {
			m.logger.Warn("connectivity not available", "medium", md.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", md.Name(), err))
			continue
		}
		m.logger.Debug("connectivity ready", "medium", md.Name())
	}
	return errors.Join(errs...)
}

// Teardown brings every medium down, in reverse order.
func (m *Manager) Teardown(ctx context.Context) error {
	var errs []error
	for i := len(m.media) - 1; i >= 0; i-- {
		md := m.media[i]
		if err := md.Teardown(ctx); err != nil {
			m.logger.Warn("connectivity teardown failed", "medium", md.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", md.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops every supervised link daemon. Links brought up by commands
// are left alone; Teardown handles those before deep sleep.
func (m *Manager) Close() error {
	var errs []error
	for _, i := range m.ifaces {
		if d := i.Daemon(); d != nil {
			if err := d.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", i.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Links returns the state of every supervised link daemon.
func (m *Manager) Links() []process.Stats {
	var out []process.Stats
	for _, i := range m.ifaces {
		if d := i.Daemon(); d != nil {
			out = append(out, d.Stats())
		}
	}
	return out
}
