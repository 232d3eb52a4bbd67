package sensor

import (
	"context"
	"fmt"
	"path/filepath"
)

// TypeIIO is a generic Linux IIO channel, typically an HX711 load cell.
const TypeIIO = "iio"

const familyIIO = "iio"

// IIO emits <prefix>.<name> = (raw - zero) * scale * factor, where scale
// comes from <channel>_scale when the driver exposes one.
type IIO struct {
	base
	dir     string
	channel string
	field   string
	zero    float64
	factor  float64
	scale   float64
}

// NewIIO is the Factory for iio.
// Settings: device_dir (required), channel (default in_voltage0),
// prefix (default weight), name (default the sensor id), zero, factor.
func NewIIO(spec Spec) (Sensor, error) {
	dir := spec.Settings.String("device_dir", "")
	if dir == "" {
		return nil, fmt.Errorf("%w: device_dir is required", ErrInvalidSettings)
	}
	prefix := spec.Settings.String("prefix", "weight")
	name := spec.Settings.String("name", spec.ID)
	return &IIO{
		base:    base{id: spec.ID, typ: TypeIIO, family: familyIIO},
		dir:     dir,
		channel: spec.Settings.String("channel", "in_voltage0"),
		field:   prefix + "." + name,
		zero:    spec.Settings.Float("zero", 0),
		factor:  spec.Settings.Float("factor", 1),
		scale:   1,
	}, nil
}

// Start reads the channel scale, if any, and checks the raw channel exists.
func (s *IIO) Start(context.Context) error {
	if v, err := readFloatFile(filepath.Join(s.dir, s.channel+"_scale")); err == nil {
		s.scale = v
	}
	_, err := readFloatFile(filepath.Join(s.dir, s.channel+"_raw"))
	return err
}

// Read implements Sensor.
func (s *IIO) Read(context.Context) (Values, error) {
	raw, err := readFloatFile(filepath.Join(s.dir, s.channel+"_raw"))
	if err != nil {
		return nil, err
	}
	return Values{s.field: (raw - s.zero) * s.scale * s.factor}, nil
}
