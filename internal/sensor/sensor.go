package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nerrad567/fieldlogger/internal/bus"
)

// Status is the outcome class of one read.
type Status int

// Read outcomes.
const (
	StatusOK Status = iota
	StatusNotInitialized
	StatusError
)

// String returns the label used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInitialized:
		return "not_initialized"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Values is one sensor's output: field name to value.
type Values map[string]float64

// Result is the tagged outcome of reading one sensor.
type Result struct {
	Status Status
	Values Values
	Err    error
}

// Sensor is a driver instance.
type Sensor interface {
	ID() string
	Type() string

	// Family groups sensors for lookup ("system", "i2c", "onewire", ...).
	Family() string

	// Start brings the device up. Called once before the first read.
	Start(ctx context.Context) error

	// Read returns the current values.
	Read(ctx context.Context) (Values, error)
}

// Powered is implemented by sensors with their own power control.
type Powered interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// Spec is everything a Factory needs to build a sensor.
type Spec struct {
	ID       string
	Type     string
	Settings Settings

	// Bus is the resolved bus; nil for system-level sensors.
	Bus bus.Bus

	// Lookup resolves another registered sensor by id. Composite sensors
	// use it in Start, once every sensor is registered.
	Lookup func(id string) (Sensor, bool)

	// Read reads another registered sensor through the registry, so a
	// companion that failed to start reports StatusNotInitialized.
	Read func(ctx context.Context, id string) (Result, bool)
}

// Factory builds a sensor from a Spec.
type Factory func(spec Spec) (Sensor, error)

// base carries the identity every built-in driver shares.
type base struct {
	id     string
	typ    string
	family string
}

func (b base) ID() string     { return b.id }
func (b base) Type() string   { return b.typ }
func (b base) Family() string { return b.family }

// Settings is a sensor's free-form configuration.
type Settings map[string]any

// String returns the setting as a string, or def.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Float returns the setting as a float64, or def.
func (s Settings) Float(key string, def float64) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the setting as an int, or def. Strings accept 0x prefixes.
func (s Settings) Int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.ParseInt(v, 0, 0); err == nil {
			return int(n)
		}
	}
	return def
}

// Strings returns the setting as a string slice.
func (s Settings) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// readFloatFile reads a sysfs-style file holding one number.
func readFloatFile(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}
