package sensor

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"testing"

	"github.com/nerrad567/fieldlogger/internal/bus"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// fakeSensor is a scriptable Sensor for registry tests.
type fakeSensor struct {
	base
	values   Values
	readErr  error
	startErr error
	panicMsg string
	reads    int
	gcSeen   int
	events   *[]string
}

func (s *fakeSensor) Start(context.Context) error { return s.startErr }

func (s *fakeSensor) Read(context.Context) (Values, error) {
	s.reads++
	s.gcSeen = debug.SetGCPercent(-1)
	debug.SetGCPercent(s.gcSeen)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(Values, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *fakeSensor) PowerOn(context.Context) error {
	s.record("on")
	return nil
}

func (s *fakeSensor) PowerOff(context.Context) error {
	s.record("off")
	return nil
}

func (s *fakeSensor) record(ev string) {
	if s.events != nil {
		*s.events = append(*s.events, s.id+":"+ev)
	}
}

// fakeBus is a minimal bus.Bus.
type fakeBus struct {
	family  string
	number  int
	devices []string
	handle  any
	events  *[]string
}

func (b *fakeBus) Name() string                                  { return config.BusConfig{Family: b.family, Number: b.number}.Name() }
func (b *fakeBus) Family() string                                { return b.family }
func (b *fakeBus) Number() int                                   { return b.number }
func (b *fakeBus) Start(context.Context) error                   { return nil }
func (b *fakeBus) ScanDevices(context.Context) ([]string, error) { return b.devices, nil }
func (b *fakeBus) Devices() []string                             { return b.devices }
func (b *fakeBus) Handle() any                                   { return b.handle }

func (b *fakeBus) PowerOn(context.Context) error {
	b.record("on")
	return nil
}

func (b *fakeBus) PowerOff(context.Context) error {
	b.record("off")
	return nil
}

func (b *fakeBus) record(ev string) {
	if b.events != nil {
		*b.events = append(*b.events, b.Name()+":"+ev)
	}
}

// newTestRegistry registers each fake under type "fake-<id>".
func newTestRegistry(t *testing.T, buses *bus.Registry, fakes ...*fakeSensor) *Registry {
	t.Helper()
	r := NewRegistry(buses)
	for _, f := range fakes {
		f.typ = "fake"
		r.RegisterType("fake-"+f.id, func(Spec) (Sensor, error) { return f, nil })
		if err := r.Register(context.Background(), config.SensorConfig{
			ID: f.id, Type: "fake-" + f.id, Enabled: true,
		}); err != nil {
			t.Fatalf("Register(%s) error = %v", f.id, err)
		}
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	buses := bus.NewRegistry()
	if err := buses.RegisterBus(&fakeBus{family: bus.FamilyOneWire, number: 0}); err != nil {
		t.Fatalf("RegisterBus() error = %v", err)
	}

	tests := []struct {
		name    string
		cfg     config.SensorConfig
		wantErr error
		wantLen int
	}{
		{
			name:    "system sensor",
			cfg:     config.SensorConfig{ID: "mem", Type: TypeSystemMemory, Enabled: true},
			wantLen: 1,
		},
		{
			name:    "disabled sensor is ignored",
			cfg:     config.SensorConfig{ID: "off", Type: TypeSystemMemory},
			wantLen: 0,
		},
		{
			name:    "unknown type",
			cfg:     config.SensorConfig{ID: "x", Type: "dht22", Enabled: true},
			wantErr: ErrUnknownSensorType,
		},
		{
			name:    "missing bus",
			cfg:     config.SensorConfig{ID: "t", Type: TypeDS18x20, Enabled: true, Bus: "onewire:1"},
			wantErr: ErrBusMissing,
		},
		{
			name:    "bus of the wrong family",
			cfg:     config.SensorConfig{ID: "env", Type: TypeBME280, Enabled: true, Bus: "onewire:0"},
			wantErr: ErrWrongBus,
		},
		{
			name:    "onewire sensor on its bus",
			cfg:     config.SensorConfig{ID: "t", Type: TypeDS18x20, Enabled: true, Bus: "onewire:0"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(buses)
			err := r.Register(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if r.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.wantLen)
			}
		})
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	cfg := config.SensorConfig{ID: "mem", Type: TypeSystemMemory, Enabled: true}
	if err := r.Register(context.Background(), cfg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(context.Background(), cfg); !errors.Is(err, ErrSensorExists) {
		t.Errorf("second Register() error = %v, want ErrSensorExists", err)
	}
}

func TestRegistry_RegisterAll(t *testing.T) {
	t.Run("missing bus is skipped", func(t *testing.T) {
		r := NewRegistry(bus.NewRegistry())
		err := r.RegisterAll(context.Background(), []config.SensorConfig{
			{ID: "t", Type: TypeDS18x20, Enabled: true, Bus: "onewire:0"},
			{ID: "mem", Type: TypeSystemMemory, Enabled: true},
		})
		if err != nil {
			t.Fatalf("RegisterAll() error = %v", err)
		}
		if _, ok := r.Get("t"); ok {
			t.Error("sensor on missing bus was registered")
		}
		if _, ok := r.Get("mem"); !ok {
			t.Error("system sensor not registered")
		}
	})

	t.Run("unknown type is fatal", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.RegisterAll(context.Background(), []config.SensorConfig{
			{ID: "x", Type: "nope", Enabled: true},
		})
		if !errors.Is(err, ErrUnknownSensorType) {
			t.Errorf("RegisterAll() error = %v, want ErrUnknownSensorType", err)
		}
	})
}

func TestRegistry_ReadSensors_IsolatesFailures(t *testing.T) {
	a := &fakeSensor{base: base{id: "a"}, values: Values{"system.memfree": 1000000}}
	b := &fakeSensor{base: base{id: "b"}, readErr: errors.New("i2c nack")}
	c := &fakeSensor{base: base{id: "c"}, panicMsg: "index out of range"}
	d := &fakeSensor{base: base{id: "d"}, values: Values{"system.temperature": 44.7}}

	r := newTestRegistry(t, nil, a, b, c, d)
	if got := r.Start(context.Background()); got != 4 {
		t.Fatalf("Start() = %d, want 4", got)
	}

	frame := r.ReadSensors(context.Background())

	want := map[string]any{"system.memfree": 1000000.0, "system.temperature": 44.7}
	if !reflect.DeepEqual(map[string]any(frame.Inbound), want) {
		t.Errorf("Inbound = %v, want %v", frame.Inbound, want)
	}
	if len(frame.Readings) != 2 {
		t.Errorf("len(Readings) = %d, want 2", len(frame.Readings))
	}

	statuses := make(map[string]string)
	for _, o := range frame.Outcomes {
		statuses[o.SensorID] = o.Status
	}
	wantStatuses := map[string]string{"a": "ok", "b": "error", "c": "error", "d": "ok"}
	if !reflect.DeepEqual(statuses, wantStatuses) {
		t.Errorf("outcomes = %v, want %v", statuses, wantStatuses)
	}
}

func TestRegistry_ReadSensors_SuspendsGCPerCall(t *testing.T) {
	prev := debug.SetGCPercent(100)
	defer debug.SetGCPercent(prev)

	a := &fakeSensor{base: base{id: "a"}, values: Values{"x": 1}}
	b := &fakeSensor{base: base{id: "b"}, panicMsg: "boom"}
	r := newTestRegistry(t, nil, a, b)
	r.Start(context.Background())
	r.ReadSensors(context.Background())

	if a.gcSeen != -1 || b.gcSeen != -1 {
		t.Errorf("GC percent inside Read = %d, %d, want -1", a.gcSeen, b.gcSeen)
	}
	if got := debug.SetGCPercent(100); got != 100 {
		t.Errorf("GC percent after pass = %d, want 100", got)
	}
}

func TestRegistry_ReadSensors_LastWriterWins(t *testing.T) {
	a := &fakeSensor{base: base{id: "a"}, values: Values{"system.temperature": 40}}
	b := &fakeSensor{base: base{id: "b"}, values: Values{"system.temperature": 41}}
	r := newTestRegistry(t, nil, a, b)
	r.Start(context.Background())

	frame := r.ReadSensors(context.Background())
	if got := frame.Inbound["system.temperature"]; got != 41.0 {
		t.Errorf("system.temperature = %v, want 41", got)
	}
}

func TestRegistry_NotInitialized(t *testing.T) {
	broken := &fakeSensor{base: base{id: "broken"}, startErr: errors.New("no ack"), values: Values{"x": 1}}
	ok := &fakeSensor{base: base{id: "ok"}, values: Values{"y": 2}}
	r := newTestRegistry(t, nil, broken, ok)

	if got := r.Start(context.Background()); got != 1 {
		t.Errorf("Start() = %d, want 1", got)
	}
	if _, found := r.Get("broken"); !found {
		t.Fatal("failed sensor was removed from the registry")
	}

	frame := r.ReadSensors(context.Background())
	if _, present := frame.Inbound["x"]; present {
		t.Error("uninitialized sensor contributed fields")
	}
	if broken.reads != 0 {
		t.Errorf("uninitialized driver was read %d times", broken.reads)
	}

	res, found := r.Read(context.Background(), "broken")
	if !found || res.Status != StatusNotInitialized {
		t.Errorf("Read(broken) = %+v, %v; want StatusNotInitialized", res, found)
	}
}

func TestRegistry_CompensatedCompanionNotInitialized(t *testing.T) {
	scale := &fakeSensor{base: base{id: "scale"}, values: Values{"weight.hive1": 50}}
	soil := &fakeSensor{base: base{id: "soil"}, startErr: errors.New("no ack"), values: Values{"soil.temperature": 30}}
	r := newTestRegistry(t, nil, scale, soil)
	if err := r.Register(context.Background(), config.SensorConfig{
		ID: "comp", Type: TypeCompensated, Enabled: true,
		Settings: map[string]any{"base": "scale", "temperature": "soil", "coefficient": 0.1},
	}); err != nil {
		t.Fatalf("Register(comp) error = %v", err)
	}

	if got := r.Start(context.Background()); got != 2 {
		t.Errorf("Start() = %d, want 2", got)
	}

	res, found := r.Read(context.Background(), "comp")
	if !found || res.Status != StatusNotInitialized {
		t.Errorf("Read(comp) = %+v, %v; want StatusNotInitialized", res, found)
	}
	if soil.reads != 0 {
		t.Errorf("uninitialized companion was read %d times", soil.reads)
	}

	frame := r.ReadSensors(context.Background())
	if _, present := frame.Inbound["weight.hive1.compensated"]; present {
		t.Error("compensated value emitted without an initialized temperature source")
	}
}

func TestRegistry_Rounding(t *testing.T) {
	r := NewRegistry(nil)
	s := &fakeSensor{base: base{id: "t"}, values: Values{"system.temperature": 44.7053182608696}}
	r.RegisterType("fake", func(Spec) (Sensor, error) { return s, nil })

	two := 2
	if err := r.Register(context.Background(), config.SensorConfig{
		ID: "t", Type: "fake", Enabled: true, Decimals: &two,
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	r.Start(context.Background())

	frame := r.ReadSensors(context.Background())
	if got := frame.Inbound["system.temperature"]; got != 44.71 {
		t.Errorf("system.temperature = %v, want 44.71", got)
	}
}

func TestRegistry_PowerOrdering(t *testing.T) {
	var events []string
	buses := bus.NewRegistry()
	if err := buses.RegisterBus(&fakeBus{family: bus.FamilyI2C, number: 1, events: &events}); err != nil {
		t.Fatalf("RegisterBus() error = %v", err)
	}
	s := &fakeSensor{base: base{id: "s"}, events: &events}
	r := newTestRegistry(t, buses, s)

	if err := r.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn() error = %v", err)
	}
	if err := r.PowerOff(context.Background()); err != nil {
		t.Fatalf("PowerOff() error = %v", err)
	}

	want := []string{"i2c:1:on", "s:on", "s:off", "i2c:1:off"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestRegistry_FindByFamily(t *testing.T) {
	a := &fakeSensor{base: base{id: "a", family: "system"}}
	b := &fakeSensor{base: base{id: "b", family: "onewire"}}
	c := &fakeSensor{base: base{id: "c", family: "system"}}
	r := newTestRegistry(t, nil, a, b, c)

	got := r.FindByFamily("system")
	if len(got) != 2 || got[0].ID() != "a" || got[1].ID() != "c" {
		t.Errorf("FindByFamily(system) = %v", got)
	}
	if len(r.FindByFamily("iio")) != 0 {
		t.Error("FindByFamily(iio) should be empty")
	}
}

type countingObserver map[string]string

func (o countingObserver) SensorRead(id, status string) { o[id] = status }

func TestRegistry_Observer(t *testing.T) {
	a := &fakeSensor{base: base{id: "a"}, values: Values{"x": 1}}
	b := &fakeSensor{base: base{id: "b"}, startErr: errors.New("x")}
	r := newTestRegistry(t, nil, a, b)
	obs := countingObserver{}
	r.SetObserver(obs)
	r.Start(context.Background())
	r.ReadSensors(context.Background())

	want := countingObserver{"a": "ok", "b": "not_initialized"}
	if !reflect.DeepEqual(obs, want) {
		t.Errorf("observer = %v, want %v", obs, want)
	}
}
