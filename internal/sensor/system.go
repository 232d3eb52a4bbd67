package sensor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Built-in system sensor types.
const (
	TypeSystemMemory      = "system.memory"
	TypeSystemTemperature = "system.temperature"
	TypeSystemVoltage     = "system.voltage"
	TypeSystemUptime      = "system.uptime"
)

const familySystem = "system"

// SystemMemory reports available memory in bytes as system.memfree.
type SystemMemory struct {
	base
	path string
}

// NewSystemMemory is the Factory for system.memory.
// Settings: path (default /proc/meminfo).
func NewSystemMemory(spec Spec) (Sensor, error) {
	return &SystemMemory{
		base: base{id: spec.ID, typ: TypeSystemMemory, family: familySystem},
		path: spec.Settings.String("path", "/proc/meminfo"),
	}, nil
}

// Start checks the source is readable.
func (s *SystemMemory) Start(context.Context) error {
	_, err := s.memAvailable()
	return err
}

// Read implements Sensor.
func (s *SystemMemory) Read(context.Context) (Values, error) {
	avail, err := s.memAvailable()
	if err != nil {
		return nil, err
	}
	return Values{"system.memfree": avail}, nil
}

func (s *SystemMemory) memAvailable() (float64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemAvailable:" {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing MemAvailable: %w", err)
		}
		return kb * 1024, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: MemAvailable not in %s", ErrNoDevice, s.path)
}

// SystemTemperature reports the SoC temperature in °C as system.temperature.
type SystemTemperature struct {
	base
	path string
}

// NewSystemTemperature is the Factory for system.temperature.
// Settings: path (default thermal zone 0, value in millidegrees).
func NewSystemTemperature(spec Spec) (Sensor, error) {
	return &SystemTemperature{
		base: base{id: spec.ID, typ: TypeSystemTemperature, family: familySystem},
		path: spec.Settings.String("path", "/sys/class/thermal/thermal_zone0/temp"),
	}, nil
}

// Start checks the source is readable.
func (s *SystemTemperature) Start(context.Context) error {
	_, err := readFloatFile(s.path)
	return err
}

// Read implements Sensor.
func (s *SystemTemperature) Read(context.Context) (Values, error) {
	milli, err := readFloatFile(s.path)
	if err != nil {
		return nil, err
	}
	return Values{"system.temperature": milli / 1000}, nil
}

// SystemVoltage reports an ADC channel in volts as system.voltage.<name>.
//
// value = (raw + offset) * scale * divider, where scale is the product of
// the scale setting and, when scale_path is set, the number in that file
// (IIO in_voltageN_scale is in millivolts per LSB, hence scale 0.001).
type SystemVoltage struct {
	base
	name      string
	path      string
	scalePath string
	scale     float64
	divider   float64
	offset    float64
	ioScale   float64
}

// NewSystemVoltage is the Factory for system.voltage.
// Settings: name (default battery), path (required), scale_path, scale,
// divider, offset.
func NewSystemVoltage(spec Spec) (Sensor, error) {
	path := spec.Settings.String("path", "")
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidSettings)
	}
	return &SystemVoltage{
		base:      base{id: spec.ID, typ: TypeSystemVoltage, family: familySystem},
		name:      spec.Settings.String("name", "battery"),
		path:      path,
		scalePath: spec.Settings.String("scale_path", ""),
		scale:     spec.Settings.Float("scale", 1),
		divider:   spec.Settings.Float("divider", 1),
		offset:    spec.Settings.Float("offset", 0),
		ioScale:   1,
	}, nil
}

// Start reads the channel scale once.
func (s *SystemVoltage) Start(context.Context) error {
	if s.scalePath != "" {
		v, err := readFloatFile(s.scalePath)
		if err != nil {
			return err
		}
		s.ioScale = v
	}
	_, err := readFloatFile(s.path)
	return err
}

// Read implements Sensor.
func (s *SystemVoltage) Read(context.Context) (Values, error) {
	raw, err := readFloatFile(s.path)
	if err != nil {
		return nil, err
	}
	v := (raw + s.offset) * s.ioScale * s.scale * s.divider
	return Values{"system.voltage." + s.name: v}, nil
}

// SystemUptime reports seconds since boot as system.uptime.
type SystemUptime struct {
	base
	path string
}

// NewSystemUptime is the Factory for system.uptime.
// Settings: path (default /proc/uptime).
func NewSystemUptime(spec Spec) (Sensor, error) {
	return &SystemUptime{
		base: base{id: spec.ID, typ: TypeSystemUptime, family: familySystem},
		path: spec.Settings.String("path", "/proc/uptime"),
	}, nil
}

// Start implements Sensor.
func (s *SystemUptime) Start(ctx context.Context) error {
	_, err := s.Read(ctx)
	return err
}

// Read implements Sensor.
func (s *SystemUptime) Read(context.Context) (Values, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrNoDevice, s.path)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing uptime: %w", err)
	}
	return Values{"system.uptime": secs}, nil
}
