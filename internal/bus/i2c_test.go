package bus

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

type fakeAdapter struct {
	present map[uint16]bool
	probed  []uint16
	closed  bool
}

func (a *fakeAdapter) probe(addr uint16) bool {
	a.probed = append(a.probed, addr)
	return a.present[addr]
}

func (a *fakeAdapter) close() error {
	a.closed = true
	return nil
}

func newTestI2C(t *testing.T, adapter *fakeAdapter, openErr error) *I2C {
	t.Helper()
	b, err := NewI2C(config.BusConfig{Family: FamilyI2C, Number: 1})
	if err != nil {
		t.Fatalf("NewI2C() error = %v", err)
	}
	i2c := b.(*I2C)
	i2c.open = func(string) (prober, error) {
		if openErr != nil {
			return nil, openErr
		}
		return adapter, nil
	}
	return i2c
}

func TestI2C_Scan(t *testing.T) {
	adapter := &fakeAdapter{present: map[uint16]bool{0x76: true, 0x48: true, 0x02: true, 0x78: true}}
	b := newTestI2C(t, adapter, nil)
	ctx := context.Background()

	if b.Name() != "i2c:1" || b.Path() != "/dev/i2c-1" {
		t.Errorf("Name()/Path() = %q/%q", b.Name(), b.Path())
	}

	if _, err := b.ScanDevices(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("ScanDevices() before Start error = %v, want ErrNotStarted", err)
	}

	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	got, err := b.ScanDevices(ctx)
	if err != nil {
		t.Fatalf("ScanDevices() error = %v", err)
	}

	// 0x02 and 0x78 are outside the scan range.
	want := []string{"0x48", "0x76"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanDevices() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(b.Devices(), want) {
		t.Errorf("Devices() = %v, want %v", b.Devices(), want)
	}
	if first, last := adapter.probed[0], adapter.probed[len(adapter.probed)-1]; first != 0x03 || last != 0x77 {
		t.Errorf("probed range = 0x%02x..0x%02x, want 0x03..0x77", first, last)
	}

	if err := b.Close(); err != nil || !adapter.closed {
		t.Errorf("Close() error = %v, closed = %v", err, adapter.closed)
	}
}

func TestI2C_StartFailure(t *testing.T) {
	b := newTestI2C(t, nil, errors.New("permission denied"))
	if err := b.Start(context.Background()); err == nil {
		t.Error("Start() expected error, got nil")
	}
}

func TestFormatI2CAddress(t *testing.T) {
	tests := []struct {
		addr uint16
		want string
	}{
		{0x03, "0x03"},
		{0x76, "0x76"},
		{0x5a, "0x5a"},
	}
	for _, tt := range tests {
		if got := FormatI2CAddress(tt.addr); got != tt.want {
			t.Errorf("FormatI2CAddress(0x%x) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
