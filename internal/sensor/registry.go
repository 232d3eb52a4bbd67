package sensor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/fieldlogger/internal/bus"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/reading"
)

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

// Observer receives one call per sensor per read pass.
type Observer interface {
	SensorRead(sensorID, status string)
}

type entry struct {
	sensor      Sensor
	decimals    *int
	initialized bool
}

// Registry owns the configured sensors.
//
// The read pass is not re-entrant; callers run one cycle at a time. Get,
// Sensors and FindByFamily may be called concurrently with it.
type Registry struct {
	mu        sync.RWMutex
	entries   []*entry
	byID      map[string]*entry
	factories map[string]Factory

	buses    *bus.Registry
	logger   Logger
	observer Observer
	now      func() time.Time
}

// NewRegistry creates a sensor registry that resolves buses through buses
// and knows the built-in sensor types.
func NewRegistry(buses *bus.Registry) *Registry {
	r := &Registry{
		byID:      make(map[string]*entry),
		factories: make(map[string]Factory),
		buses:     buses,
		logger:    noopLogger{},
		now:       time.Now,
	}

	r.RegisterType(TypeSystemMemory, NewSystemMemory)
	r.RegisterType(TypeSystemTemperature, NewSystemTemperature)
	r.RegisterType(TypeSystemVoltage, NewSystemVoltage)
	r.RegisterType(TypeSystemUptime, NewSystemUptime)
	r.RegisterType(TypeDS18x20, NewDS18x20)
	r.RegisterType(TypeBME280, NewBME280)
	r.RegisterType(TypeIIO, NewIIO)
	r.RegisterType(TypeCompensated, NewCompensated)

	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetObserver sets the receiver of per-sensor outcomes.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// RegisterType adds or replaces the factory for a sensor type.
func (r *Registry) RegisterType(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// Register builds one configured sensor and adds it to the registry.
// Disabled sensors are ignored.
//
// Returns:
//   - ErrUnknownSensorType: no factory for cfg.Type
//   - ErrBusMissing: cfg.Bus names a bus that is not registered
//   - ErrSensorExists: cfg.ID is already taken
//   - any factory error
func (r *Registry) Register(_ context.Context, cfg config.SensorConfig) error {
	if !cfg.Enabled {
		r.logger.Debug("sensor disabled", "sensor", cfg.ID)
		return nil
	}

	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	_, exists := r.byID[cfg.ID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s (sensor %s)", ErrUnknownSensorType, cfg.Type, cfg.ID)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrSensorExists, cfg.ID)
	}

	spec := Spec{
		ID:       cfg.ID,
		Type:     cfg.Type,
		Settings: Settings(cfg.Settings),
		Lookup:   r.Get,
		Read:     r.Read,
	}
	if spec.Settings == nil {
		spec.Settings = Settings{}
	}

	if cfg.Bus != "" {
		var b bus.Bus
		if r.buses != nil {
			b, _ = r.buses.GetBusByName(cfg.Bus)
		}
		if b == nil {
			return fmt.Errorf("%w: %s (sensor %s)", ErrBusMissing, cfg.Bus, cfg.ID)
		}
		spec.Bus = b
	}

	s, err := factory(spec)
	if err != nil {
		return fmt.Errorf("creating sensor %s: %w", cfg.ID, err)
	}

	e := &entry{sensor: s, decimals: cfg.Decimals}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.byID[cfg.ID] = e
	return nil
}

// RegisterAll registers every configured sensor.
//
// Unknown types and factory errors are configuration errors and abort
// registration. A missing bus only skips that sensor.
func (r *Registry) RegisterAll(ctx context.Context, cfgs []config.SensorConfig) error {
	for _, cfg := range cfgs {
		err := r.Register(ctx, cfg)
		if errors.Is(err, ErrBusMissing) {
			r.logger.Warn("sensor skipped", "sensor", cfg.ID, "bus", cfg.Bus, "error", err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Start starts every registered sensor. A failure leaves that sensor
// registered but not initialized; the others are unaffected.
// Returns the number of sensors that started.
func (r *Registry) Start(ctx context.Context) int {
	started := 0
	for _, e := range r.snapshot() {
		if err := r.startOne(ctx, e.sensor); err != nil {
			r.logger.Error("sensor start failed", "sensor", e.sensor.ID(), "type", e.sensor.Type(), "error", err)
			continue
		}
		r.mu.Lock()
		e.initialized = true
		r.mu.Unlock()
		started++
	}
	r.logger.Info("sensors started", "started", started, "total", r.Len())
	return started
}

func (r *Registry) startOne(ctx context.Context, s Sensor) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return s.Start(ctx)
}

// ReadSensors runs one read pass and returns the resulting frame.
// It never fails; per-sensor failures are logged and recorded as outcomes.
func (r *Registry) ReadSensors(ctx context.Context) *reading.Frame {
	frame := reading.NewFrame(r.now())

	for _, e := range r.snapshot() {
		id := e.sensor.ID()
		res := r.readOne(ctx, e)

		switch res.Status {
		case StatusOK:
			frame.Merge(reading.Reading{
				SensorID:   id,
				SensorType: e.sensor.Type(),
				Values:     res.Values,
				Time:       r.now(),
			})
		case StatusNotInitialized:
			r.logger.Debug("sensor not initialized", "sensor", id)
		case StatusError:
			r.logger.Error("sensor read failed", "sensor", id, "error", res.Err)
		}

		frame.AddOutcome(reading.SensorOutcome{SensorID: id, Status: res.Status.String(), Err: res.Err})
		if r.observer != nil {
			r.observer.SensorRead(id, res.Status.String())
		}
	}

	return frame
}

// Read reads a single sensor by id.
func (r *Registry) Read(ctx context.Context, id string) (Result, bool) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	return r.readOne(ctx, e), true
}

// readOne reads e with the collector suspended for the duration of the
// driver call only.
func (r *Registry) readOne(ctx context.Context, e *entry) Result {
	r.mu.RLock()
	initialized := e.initialized
	r.mu.RUnlock()
	if !initialized {
		return Result{Status: StatusNotInitialized}
	}

	values, err := r.callDriver(ctx, e.sensor)
	if errors.Is(err, ErrNotInitialized) {
		return Result{Status: StatusNotInitialized, Err: err}
	}
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	if e.decimals != nil {
		for k, v := range values {
			values[k] = reading.Round(v, *e.decimals)
		}
	}
	return Result{Status: StatusOK, Values: values}
}

func (r *Registry) callDriver(ctx context.Context, s Sensor) (values Values, err error) {
	prev := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prev)

	defer func() {
		if p := recover(); p != nil {
			values, err = nil, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	return s.Read(ctx)
}

// PowerOn powers buses first, then sensors. Failures are logged; the first
// is returned after everything was attempted.
func (r *Registry) PowerOn(ctx context.Context) error {
	var first error
	if r.buses != nil {
		first = r.buses.PowerOn(ctx)
	}
	if err := r.eachPowered(ctx, true); err != nil && first == nil {
		first = err
	}
	return first
}

// PowerOff powers sensors off first, then buses.
func (r *Registry) PowerOff(ctx context.Context) error {
	first := r.eachPowered(ctx, false)
	if r.buses != nil {
		if err := r.buses.PowerOff(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Registry) eachPowered(ctx context.Context, on bool) error {
	var first error
	for _, e := range r.snapshot() {
		p, ok := e.sensor.(Powered)
		if !ok {
			continue
		}
		var err error
		if on {
			err = p.PowerOn(ctx)
		} else {
			err = p.PowerOff(ctx)
		}
		if err != nil {
			r.logger.Warn("sensor power change failed", "sensor", e.sensor.ID(), "on", on, "error", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", e.sensor.ID(), err)
			}
		}
	}
	return first
}

// Get returns the sensor registered under id.
func (r *Registry) Get(id string) (Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.sensor, true
}

// FindByFamily returns the sensors of a family in registration order.
func (r *Registry) FindByFamily(family string) []Sensor {
	var out []Sensor
	for _, e := range r.snapshot() {
		if e.sensor.Family() == family {
			out = append(out, e.sensor)
		}
	}
	return out
}

// Sensors returns all sensors in registration order.
func (r *Registry) Sensors() []Sensor {
	entries := r.snapshot()
	out := make([]Sensor, len(entries))
	for i, e := range entries {
		out[i] = e.sensor
	}
	return out
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*entry(nil), r.entries...)
}
