package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nerrad567/fieldlogger/internal/bus"
)

// TypeDS18x20 is the 1-Wire temperature sensor family (DS18B20 and relatives).
const TypeDS18x20 = "ds18x20"

// DS18x20 reads every temperature device on a onewire bus.
//
// Each device yields onewire:<n>.<rom>.temperature in °C. A device that
// fails to read is left out while the others still report.
type DS18x20 struct {
	base
	bus    bus.Bus
	filter map[string]bool
	roms   []string
	dir    string
}

// NewDS18x20 is the Factory for ds18x20.
// Settings: roms (optional list restricting which devices are read).
func NewDS18x20(spec Spec) (Sensor, error) {
	if spec.Bus == nil || spec.Bus.Family() != bus.FamilyOneWire {
		return nil, fmt.Errorf("%w: ds18x20 needs a onewire bus", ErrWrongBus)
	}
	s := &DS18x20{
		base: base{id: spec.ID, typ: TypeDS18x20, family: bus.FamilyOneWire},
		bus:  spec.Bus,
	}
	if roms := spec.Settings.Strings("roms"); len(roms) > 0 {
		s.filter = make(map[string]bool, len(roms))
		for _, rom := range roms {
			s.filter[strings.ToLower(rom)] = true
		}
	}
	return s, nil
}

// Start selects the devices found by the last bus scan.
func (s *DS18x20) Start(context.Context) error {
	h, ok := s.bus.Handle().(*bus.OneWireHandle)
	if !ok {
		return fmt.Errorf("%w: unexpected handle %T", ErrWrongBus, s.bus.Handle())
	}
	s.dir = h.DevicesDir

	s.roms = s.roms[:0]
	for _, rom := range s.bus.Devices() {
		if s.filter == nil || s.filter[rom] {
			s.roms = append(s.roms, rom)
		}
	}
	if len(s.roms) == 0 {
		return fmt.Errorf("%w: no temperature devices on %s", ErrNoDevice, s.bus.Name())
	}
	return nil
}

// Read implements Sensor. It fails only when no device could be read.
func (s *DS18x20) Read(context.Context) (Values, error) {
	out := make(Values, len(s.roms))
	var firstErr error
	for _, rom := range s.roms {
		t, err := readW1Slave(filepath.Join(s.dir, rom, "w1_slave"))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", rom, err)
			}
			continue
		}
		out[fmt.Sprintf("%s.%s.temperature", s.bus.Name(), rom)] = t
	}
	if len(out) == 0 {
		return nil, firstErr
	}
	return out, nil
}

// readW1Slave parses the w1_slave file of a temperature device:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func readW1Slave(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("short w1_slave output in %s", path)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrCRC
	}
	_, raw, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, fmt.Errorf("no temperature in %s", path)
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing temperature: %w", err)
	}
	return milli / 1000, nil
}
