// Package cayenne frames channel/type/value triples in the Cayenne Low
// Power Payload layout: for every triple one channel byte, one type byte and
// a big-endian fixed-point value whose width and resolution depend on the
// type.
package cayenne

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type is an LPP data type identifier.
type Type byte

// LPP data types.
const (
	DigitalInput  Type = 0
	DigitalOutput Type = 1
	AnalogInput   Type = 2
	AnalogOutput  Type = 3
	Illuminance   Type = 101
	Presence      Type = 102
	Temperature   Type = 103
	Humidity      Type = 104
	Accelerometer Type = 113
	Barometer     Type = 115
	Gyrometer     Type = 134
	GPS           Type = 136
)

// Errors returned by the framer.
var (
	ErrUnknownType = errors.New("cayenne: unknown type")
	ErrArity       = errors.New("cayenne: wrong number of values")
	ErrTruncated   = errors.New("cayenne: truncated payload")
)

// component describes one value inside a type's encoding.
type component struct {
	size   int
	scale  float64
	signed bool
}

var layouts = map[Type][]component{
	DigitalInput:  {{1, 1, false}},
	DigitalOutput: {{1, 1, false}},
	AnalogInput:   {{2, 100, true}},
	AnalogOutput:  {{2, 100, true}},
	Illuminance:   {{2, 1, false}},
	Presence:      {{1, 1, false}},
	Temperature:   {{2, 10, true}},
	Humidity:      {{1, 2, false}},
	Accelerometer: {{2, 1000, true}, {2, 1000, true}, {2, 1000, true}},
	Barometer:     {{2, 10, false}},
	Gyrometer:     {{2, 100, true}, {2, 100, true}, {2, 100, true}},
	GPS:           {{3, 10000, true}, {3, 10000, true}, {3, 100, true}},
}

// Arity returns how many values a type carries (3 for the axis types and
// GPS, 1 otherwise), or 0 for unknown types.
func Arity(t Type) int {
	return len(layouts[t])
}

// String returns the LPP name of the type.
func (t Type) String() string {
	switch t {
	case DigitalInput:
		return "digital_in"
	case DigitalOutput:
		return "digital_out"
	case AnalogInput:
		return "analog_in"
	case AnalogOutput:
		return "analog_out"
	case Illuminance:
		return "illuminance"
	case Presence:
		return "presence"
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case Accelerometer:
		return "accelerometer"
	case Barometer:
		return "barometer"
	case Gyrometer:
		return "gyrometer"
	case GPS:
		return "gps"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Triple is one decoded channel entry.
type Triple struct {
	Channel byte
	Type    Type
	Values  []float64
}

// Encoder accumulates triples in insertion order.
type Encoder struct {
	buf     []byte
	triples int
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Add appends one triple. values must match the type's arity; values
// outside the representable range are clamped.
func (e *Encoder) Add(channel byte, t Type, values ...float64) error {
	layout, ok := layouts[t]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownType, byte(t))
	}
	if len(values) != len(layout) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, t, len(layout), len(values))
	}

	e.buf = append(e.buf, channel, byte(t))
	for i, c := range layout {
		e.buf = appendFixed(e.buf, values[i], c)
	}
	e.triples++
	return nil
}

// Len returns the number of triples added.
func (e *Encoder) Len() int { return e.triples }

// Bytes returns the framed payload.
func (e *Encoder) Bytes() []byte {
	return append([]byte(nil), e.buf...)
}

// Reset discards all triples.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.triples = 0
}

func appendFixed(dst []byte, v float64, c component) []byte {
	bits := uint(c.size * 8)
	raw := math.Round(v * c.scale)

	var lo, hi float64
	if c.signed {
		lo, hi = -math.Exp2(float64(bits-1)), math.Exp2(float64(bits-1))-1
	} else {
		lo, hi = 0, math.Exp2(float64(bits))-1
	}
	raw = math.Max(lo, math.Min(hi, raw))

	var word [8]byte
	binary.BigEndian.PutUint64(word[:], uint64(int64(raw)))
	return append(dst, word[8-c.size:]...)
}

// Decode parses a payload back into triples.
func Decode(data []byte) ([]Triple, error) {
	var out []Triple
	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return nil, ErrTruncated
		}
		ch, t := data[i], Type(data[i+1])
		i += 2

		layout, ok := layouts[t]
		if !ok {
			return nil, fmt.Errorf("%w: %d at offset %d", ErrUnknownType, byte(t), i-1)
		}

		tr := Triple{Channel: ch, Type: t, Values: make([]float64, len(layout))}
		for j, c := range layout {
			if i+c.size > len(data) {
				return nil, ErrTruncated
			}
			tr.Values[j] = readFixed(data[i:i+c.size], c)
			i += c.size
		}
		out = append(out, tr)
	}
	return out, nil
}

func readFixed(b []byte, c component) float64 {
	var word [8]byte
	copy(word[8-len(b):], b)
	u := binary.BigEndian.Uint64(word[:])

	if c.signed {
		shift := uint(64 - 8*len(b))
		return float64(int64(u<<shift)>>shift) / c.scale
	}
	return float64(u) / c.scale
}
