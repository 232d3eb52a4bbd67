package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// I2C scan range: addresses below 0x03 and above 0x77 are reserved.
const (
	i2cFirstAddr = 0x03
	i2cLastAddr  = 0x77
)

// prober talks to an opened I2C adapter.
type prober interface {
	// probe reports whether a device acknowledges at addr.
	probe(addr uint16) bool
	close() error
}

// opener opens the adapter at path.
type opener func(path string) (prober, error)

// I2C is an addressed, multiplexed bus on a Linux i2c-dev adapter.
type I2C struct {
	powerSwitch

	number int
	path   string
	open   opener

	mu      sync.RWMutex
	adapter prober
	devices []string
}

// NewI2C is the Factory for the i2c family.
func NewI2C(cfg config.BusConfig) (Bus, error) {
	path := cfg.Path
	if path == "" {
		path = fmt.Sprintf("/dev/i2c-%d", cfg.Number)
	}
	return &I2C{
		powerSwitch: powerSwitch{path: cfg.PowerPath},
		number:      cfg.Number,
		path:        path,
		open:        openAdapter,
	}, nil
}

// Name implements Bus.
func (b *I2C) Name() string { return fmt.Sprintf("%s:%d", FamilyI2C, b.number) }

// Family implements Bus.
func (b *I2C) Family() string { return FamilyI2C }

// Number implements Bus.
func (b *I2C) Number() int { return b.number }

// Path returns the character device path.
func (b *I2C) Path() string { return b.path }

// Start opens the adapter.
func (b *I2C) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.adapter != nil {
		return nil
	}
	adapter, err := b.open(b.path)
	if err != nil {
		return err
	}
	b.adapter = adapter
	return nil
}

// ScanDevices probes every address in 0x03..0x77. Found devices are
// returned as "0xNN".
func (b *I2C) ScanDevices(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.adapter == nil {
		return nil, ErrNotStarted
	}

	var found []string
	for addr := uint16(i2cFirstAddr); addr <= i2cLastAddr; addr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.adapter.probe(addr) {
			found = append(found, FormatI2CAddress(addr))
		}
	}
	b.devices = found
	return append([]string(nil), found...), nil
}

// Devices implements Bus.
func (b *I2C) Devices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.devices...)
}

// Handle returns the bus itself; drivers use Path and Number.
func (b *I2C) Handle() any { return b }

// Close releases the adapter.
func (b *I2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.adapter == nil {
		return nil
	}
	err := b.adapter.close()
	b.adapter = nil
	return err
}

// FormatI2CAddress renders a 7-bit address the way field names use it.
func FormatI2CAddress(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
