package bus

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// OneWireFamilies lists the 1-Wire family codes the logger understands:
// DS18S20 (0x10), DS1822 (0x22), DS18B20 (0x28), MAX31850 (0x3B) and
// DS28EA00 (0x42). All of them are temperature sensors.
var OneWireFamilies = map[string]bool{
	"10": true,
	"22": true,
	"28": true,
	"3b": true,
	"42": true,
}

// OneWireHandle is what drivers receive from a onewire bus.
type OneWireHandle struct {
	// DevicesDir holds one directory per ROM id, e.g. DevicesDir/28-0316a2791bff/.
	DevicesDir string
}

// OneWire is a single-wire enumerable bus behind the Linux w1 subsystem.
type OneWire struct {
	powerSwitch

	number    int
	masterDir string

	mu      sync.RWMutex
	started bool
	devices []string
}

// NewOneWire is the Factory for the onewire family.
func NewOneWire(cfg config.BusConfig) (Bus, error) {
	dir := cfg.Path
	if dir == "" {
		dir = fmt.Sprintf("/sys/bus/w1/devices/w1_bus_master%d", cfg.Number+1)
	}
	return &OneWire{
		powerSwitch: powerSwitch{path: cfg.PowerPath},
		number:      cfg.Number,
		masterDir:   dir,
	}, nil
}

// Name implements Bus.
func (b *OneWire) Name() string { return fmt.Sprintf("%s:%d", FamilyOneWire, b.number) }

// Family implements Bus.
func (b *OneWire) Family() string { return FamilyOneWire }

// Number implements Bus.
func (b *OneWire) Number() int { return b.number }

// Start checks the bus master is present.
func (b *OneWire) Start(context.Context) error {
	info, err := os.Stat(b.masterDir)
	if err != nil {
		return fmt.Errorf("onewire master %s: %w", b.masterDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("onewire master %s: not a directory", b.masterDir)
	}

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	return nil
}

// ScanDevices reads the master's slave list and keeps the ROM ids of known
// families, lower-cased ("28-0316a2791bff").
func (b *OneWire) ScanDevices(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil, ErrNotStarted
	}

	data, err := os.ReadFile(filepath.Join(b.masterDir, "w1_master_slaves"))
	if err != nil {
		return nil, fmt.Errorf("reading slave list: %w", err)
	}

	var found []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		rom := strings.ToLower(strings.TrimSpace(sc.Text()))
		family, _, ok := strings.Cut(rom, "-")
		if !ok || !OneWireFamilies[family] {
			continue
		}
		found = append(found, rom)
	}

	b.devices = found
	return append([]string(nil), found...), nil
}

// Devices implements Bus.
func (b *OneWire) Devices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.devices...)
}

// Handle returns a *OneWireHandle.
func (b *OneWire) Handle() any {
	return &OneWireHandle{DevicesDir: filepath.Dir(b.masterDir)}
}
