// Package reading is the in-memory model of one duty cycle: the readings
// each sensor produced, the merged inbound field mapping and what each
// telemetry target made of it.
package reading

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Fields maps field names ("system.temperature", "i2c:0.0x76.pressure")
// to values. Sensor output is always float64; extra fields from target
// configuration may carry strings, integers or booleans.
type Fields map[string]any

// Clone returns a shallow copy. Values are scalars so the copy is independent.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the value of key as a float64 when it is numeric.
func (f Fields) Float(key string) (float64, bool) {
	return ToFloat(f[key])
}

// ToFloat converts numeric scalars (and numeric strings) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Reading is one sensor's output for one cycle.
type Reading struct {
	SensorID   string
	SensorType string
	Values     map[string]float64
	Time       time.Time
}

// SensorOutcome records how one sensor fared in a read pass.
type SensorOutcome struct {
	SensorID string
	Status   string
	Err      error
}

// Delivery is what one telemetry target produced from the frame.
type Delivery struct {
	Channel  string
	Outbound Fields
	Payload  []byte
}

// Frame is the unit of work of one duty cycle.
type Frame struct {
	StartedAt time.Time

	// Readings in read order.
	Readings []Reading

	// Inbound holds every reading's values; keys are unique and a later
	// reading overwrites an earlier one with the same key.
	Inbound Fields

	// Outcomes holds one entry per registered sensor.
	Outcomes []SensorOutcome

	// Deliveries are appended by telemetry adapters.
	Deliveries []Delivery
}

// NewFrame creates an empty frame.
func NewFrame(startedAt time.Time) *Frame {
	return &Frame{
		StartedAt: startedAt,
		Inbound:   make(Fields),
	}
}

// Merge appends r and copies its values into Inbound (last writer wins).
func (f *Frame) Merge(r Reading) {
	f.Readings = append(f.Readings, r)
	for k, v := range r.Values {
		f.Inbound[k] = v
	}
}

// AddOutcome records a sensor outcome.
func (f *Frame) AddOutcome(o SensorOutcome) {
	f.Outcomes = append(f.Outcomes, o)
}

// Record appends a delivery.
func (f *Frame) Record(channel string, outbound Fields, payload []byte) {
	f.Deliveries = append(f.Deliveries, Delivery{
		Channel:  channel,
		Outbound: outbound,
		Payload:  payload,
	})
}

// Delivery returns the delivery recorded for channel.
func (f *Frame) Delivery(channel string) (Delivery, bool) {
	for _, d := range f.Deliveries {
		if d.Channel == channel {
			return d, true
		}
	}
	return Delivery{}, false
}
