package codec

import (
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
	"github.com/nerrad567/fieldlogger/internal/telemetry/cayenne"
)

// Fixed LPP channels.
const (
	chBattery       = 0
	chSolar         = 1
	chSystemTemp    = 0
	chEnvironmental = 5
	chFirstWeight   = 5

	firstVoltageCounter = 2
	firstWeightCounter  = 6
	firstOneWireCounter = 10
)

type kindRule struct {
	channel byte
	typ     cayenne.Type
}

// kindChannels gives every generic LPP kind its own channel. A field may
// override it with a numeric suffix: analog_in.3 goes to channel 3.
var kindChannels = map[string]kindRule{
	"analog_in":     {20, cayenne.AnalogInput},
	"analog_out":    {21, cayenne.AnalogOutput},
	"digital_in":    {22, cayenne.DigitalInput},
	"digital_out":   {23, cayenne.DigitalOutput},
	"illuminance":   {24, cayenne.Illuminance},
	"barometer":     {25, cayenne.Barometer},
	"presence":      {26, cayenne.Presence},
	"accelerometer": {27, cayenne.Accelerometer},
	"gyrometer":     {28, cayenne.Gyrometer},
	"gps":           {29, cayenne.GPS},
}

// axisNames lists the sub-field names of multi-value kinds, in encoding order.
var axisNames = map[cayenne.Type][]string{
	cayenne.Accelerometer: {"x", "y", "z"},
	cayenne.Gyrometer:     {"x", "y", "z"},
	cayenne.GPS:           {"lat", "lon", "alt"},
}

// LPP maps field names onto Cayenne LPP channels.
//
// Channels come from the field name alone, visiting fields in sorted order:
//
//	system.*voltage*      battery 0, solar 1, others 2, 3, ... (analog input)
//	system.*temperature*  0 (temperature)
//	i2c*                  5, typed by temperature/humidity/pressure
//	weight*               first 5, others 6, 7, ... (analog input)
//	onewire*temperature*  10, 11, ... (temperature)
//	<kind>[.<n>][.<axis>] per-kind channel 20..29 or n
//
// Anything else is dropped and logged at debug level. Counters live for
// one Marshal call only, so equal input always gives equal bytes.
type LPP struct {
	logger Logger
}

// Name implements Codec.
func (*LPP) Name() string { return FormatLPP }

// ContentType implements Codec.
func (*LPP) ContentType() string { return "application/octet-stream" }

type axisGroup struct {
	channel byte
	typ     cayenne.Type
	values  []float64
}

// Marshal implements Codec.
func (l *LPP) Marshal(fields reading.Fields, _ time.Time) ([]byte, error) {
	enc := cayenne.NewEncoder()

	voltageNext := byte(firstVoltageCounter)
	weightNext := byte(firstWeightCounter)
	onewireNext := byte(firstOneWireCounter)
	weightSeen := false

	var groups []*axisGroup
	groupIndex := make(map[string]*axisGroup)

	for _, name := range fields.Keys() {
		value, ok := reading.ToFloat(fields[name])
		if !ok {
			l.drop(name, "not numeric")
			continue
		}

		var (
			ch  byte
			typ cayenne.Type
		)
		switch {
		case strings.HasPrefix(name, "system") && strings.Contains(name, "voltage"):
			typ = cayenne.AnalogInput
			switch {
			case strings.Contains(name, "battery"):
				ch = chBattery
			case strings.Contains(name, "solar"):
				ch = chSolar
			default:
				ch = voltageNext
				voltageNext++
			}

		case strings.HasPrefix(name, "system") && strings.Contains(name, "temperature"):
			ch, typ = chSystemTemp, cayenne.Temperature

		case strings.HasPrefix(name, "i2c"):
			var found bool
			if typ, found = environmentalType(name); !found {
				l.drop(name, "no environmental kind")
				continue
			}
			ch = chEnvironmental

		case strings.HasPrefix(name, "weight"):
			typ = cayenne.AnalogInput
			if !weightSeen {
				ch, weightSeen = chFirstWeight, true
			} else {
				ch = weightNext
				weightNext++
			}

		case strings.HasPrefix(name, "onewire") && strings.Contains(name, "temperature"):
			ch, typ = onewireNext, cayenne.Temperature
			onewireNext++

		default:
			kind, channel, axis, found := parseKind(name)
			if !found {
				l.drop(name, "no channel rule")
				continue
			}
			if axes, multi := axisNames[kind.typ]; multi {
				idx := indexOf(axes, axis)
				if idx < 0 {
					l.drop(name, "unknown axis")
					continue
				}
				key := kind.typ.String() + "/" + strconv.Itoa(int(channel))
				g, exists := groupIndex[key]
				if !exists {
					g = &axisGroup{channel: channel, typ: kind.typ, values: make([]float64, len(axes))}
					groupIndex[key] = g
					groups = append(groups, g)
				}
				g.values[idx] = value
				continue
			}
			if axis != "" {
				l.drop(name, "unexpected sub-field")
				continue
			}
			ch, typ = channel, kind.typ
		}

		if err := enc.Add(ch, typ, value); err != nil {
			return nil, err
		}
	}

	for _, g := range groups {
		if err := enc.Add(g.channel, g.typ, g.values...); err != nil {
			return nil, err
		}
	}

	return enc.Bytes(), nil
}

func (l *LPP) drop(name, reason string) {
	l.logger.Debug("lpp field dropped", "field", name, "reason", reason)
}

func environmentalType(name string) (cayenne.Type, bool) {
	switch {
	case strings.Contains(name, "temperature"):
		return cayenne.Temperature, true
	case strings.Contains(name, "humidity"):
		return cayenne.Humidity, true
	case strings.Contains(name, "pressure"):
		return cayenne.Barometer, true
	}
	return 0, false
}

// parseKind splits "<kind>[.<n>][.<axis>]".
func parseKind(name string) (kind kindRule, channel byte, axis string, ok bool) {
	parts := strings.Split(name, ".")
	kind, ok = kindChannels[parts[0]]
	if !ok {
		return kind, 0, "", false
	}
	channel = kind.channel
	rest := parts[1:]

	if len(rest) > 0 {
		if n, err := strconv.ParseUint(rest[0], 10, 8); err == nil {
			channel = byte(n)
			rest = rest[1:]
		}
	}
	switch len(rest) {
	case 0:
	case 1:
		axis = rest[0]
	default:
		return kind, 0, "", false
	}
	return kind, channel, axis, true
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
