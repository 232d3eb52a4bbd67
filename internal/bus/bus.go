package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// Bus families.
const (
	FamilyI2C     = "i2c"
	FamilyOneWire = "onewire"
)

// Bus is one shared hardware bus.
type Bus interface {
	// Name returns "<family>:<number>".
	Name() string
	Family() string
	Number() int

	// Start opens the bus. It must be called before ScanDevices.
	Start(ctx context.Context) error

	// ScanDevices discovers attached devices and remembers them.
	ScanDevices(ctx context.Context) ([]string, error)

	// Devices returns the addresses found by the last scan.
	Devices() []string

	// Handle returns the low-level handle drivers use to talk to devices.
	Handle() any
}

// Powered is implemented by buses with switchable power.
type Powered interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// Factory builds an unstarted bus from configuration.
type Factory func(cfg config.BusConfig) (Bus, error)

// Logger defines the logging interface used by the Registry.
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

// Registry holds the started buses, keyed by name.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	buses     map[string]Bus
	order     []string
	factories map[string]Factory
	logger    Logger
}

// NewRegistry creates a registry that knows the built-in families.
func NewRegistry() *Registry {
	r := &Registry{
		buses:     make(map[string]Bus),
		factories: make(map[string]Factory),
		logger:    noopLogger{},
	}
	r.RegisterFamily(FamilyI2C, NewI2C)
	r.RegisterFamily(FamilyOneWire, NewOneWire)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RegisterFamily adds or replaces the factory for a bus family.
func (r *Registry) RegisterFamily(family string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = f
}

// RegisterBus adds a bus. Returns ErrBusExists if the name is taken.
func (r *Registry) RegisterBus(b Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buses[b.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrBusExists, b.Name())
	}
	r.buses[b.Name()] = b
	r.order = append(r.order, b.Name())
	return nil
}

// GetBusByName returns the bus registered under name.
func (r *Registry) GetBusByName(name string) (Bus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buses[name]
	return b, ok
}

// Buses returns all buses in registration order.
func (r *Registry) Buses() []Bus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Bus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.buses[name])
	}
	return out
}

// SetupBuses builds, starts, scans and registers every enabled bus.
//
// A failure on one bus is logged and does not stop the others. The
// returned error joins all per-bus failures for the caller's summary; a
// bus that failed is absent from the registry.
func (r *Registry) SetupBuses(ctx context.Context, cfgs []config.BusConfig) error {
	var errs []error

	for _, cfg := range cfgs {
		if !cfg.Enabled {
			r.logger.Debug("bus disabled", "bus", cfg.Name())
			continue
		}

		if err := r.setupBus(ctx, cfg); err != nil {
			r.logger.Error("bus setup failed", "bus", cfg.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", cfg.Name(), err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) setupBus(ctx context.Context, cfg config.BusConfig) error {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Family]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFamily, cfg.Family)
	}

	b, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("creating bus: %w", err)
	}

	if p, ok := b.(Powered); ok {
		if err := p.PowerOn(ctx); err != nil {
			return fmt.Errorf("powering bus: %w", err)
		}
	}

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bus: %w", err)
	}

	devices, err := b.ScanDevices(ctx)
	if err != nil {
		return fmt.Errorf("scanning bus: %w", err)
	}

	if err := r.RegisterBus(b); err != nil {
		return err
	}

	r.logger.Info("bus started", "bus", b.Name(), "devices", devices)
	return nil
}

// PowerOn powers every bus that supports it. Failures are logged; the
// first is returned after all buses were attempted.
func (r *Registry) PowerOn(ctx context.Context) error {
	return r.eachPowered(func(name string, p Powered) error {
		if err := p.PowerOn(ctx); err != nil {
			r.logger.Warn("bus power on failed", "bus", name, "error", err)
			return err
		}
		return nil
	})
}

// PowerOff cuts power to every bus that supports it.
func (r *Registry) PowerOff(ctx context.Context) error {
	return r.eachPowered(func(name string, p Powered) error {
		if err := p.PowerOff(ctx); err != nil {
			r.logger.Warn("bus power off failed", "bus", name, "error", err)
			return err
		}
		return nil
	})
}

func (r *Registry) eachPowered(fn func(name string, p Powered) error) error {
	var first error
	for _, b := range r.Buses() {
		p, ok := b.(Powered)
		if !ok {
			continue
		}
		if err := fn(b.Name(), p); err != nil && first == nil {
			first = fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	return first
}
