package sensor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/nerrad567/fieldlogger/internal/bus"
)

// TypeBME280 is the Bosch temperature/humidity/pressure sensor, read through
// the kernel bmp280 IIO driver.
const TypeBME280 = "bme280"

const (
	bme280DefaultAddr = 0x76
	iioSysfsRoot      = "/sys/bus/i2c/devices"
)

// BME280 emits i2c:<n>.<addr>.temperature (°C), .humidity (%RH) and
// .pressure (hPa).
type BME280 struct {
	base
	bus  bus.Bus
	addr uint16
	root string
	dir  string
}

// NewBME280 is the Factory for bme280.
// Settings: address (default 0x76), sysfs_root (default /sys/bus/i2c/devices).
func NewBME280(spec Spec) (Sensor, error) {
	if spec.Bus == nil || spec.Bus.Family() != bus.FamilyI2C {
		return nil, fmt.Errorf("%w: bme280 needs an i2c bus", ErrWrongBus)
	}
	addr := spec.Settings.Int("address", bme280DefaultAddr)
	if addr < 0x03 || addr > 0x77 {
		return nil, fmt.Errorf("%w: address 0x%x out of range", ErrInvalidSettings, addr)
	}
	return &BME280{
		base: base{id: spec.ID, typ: TypeBME280, family: bus.FamilyI2C},
		bus:  spec.Bus,
		addr: uint16(addr),
		root: spec.Settings.String("sysfs_root", iioSysfsRoot),
	}, nil
}

// Start locates the IIO device the kernel bound to the sensor.
func (s *BME280) Start(context.Context) error {
	pattern := filepath.Join(s.root, fmt.Sprintf("%d-%04x", s.bus.Number(), s.addr), "iio:device*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: no iio device at %s", ErrNoDevice, pattern)
	}
	sort.Strings(matches)
	s.dir = matches[0]
	return nil
}

// Read implements Sensor.
func (s *BME280) Read(context.Context) (Values, error) {
	prefix := fmt.Sprintf("%s.%s.", s.bus.Name(), bus.FormatI2CAddress(s.addr))

	temp, err := readFloatFile(filepath.Join(s.dir, "in_temp_input"))
	if err != nil {
		return nil, err
	}
	out := Values{prefix + "temperature": temp / 1000}

	// BMP280 variants have no humidity channel.
	if hum, err := readFloatFile(filepath.Join(s.dir, "in_humidityrelative_input")); err == nil {
		out[prefix+"humidity"] = hum / 1000
	}

	press, err := readFloatFile(filepath.Join(s.dir, "in_pressure_input"))
	if err != nil {
		return nil, err
	}
	out[prefix+"pressure"] = press * 10 // kPa to hPa

	return out, nil
}
