//go:build linux

package watchdog

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// magicClose disarms drivers built with nowayout disabled.
const magicClose = 'V'

type linuxDevice struct {
	f *os.File
}

func openDevice(path string) (device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening watchdog device %s: %w", path, err)
	}
	return &linuxDevice{f: f}, nil
}

func (d *linuxDevice) keepalive() error {
	if err := unix.IoctlWatchdogKeepalive(int(d.f.Fd())); err != nil {
		return fmt.Errorf("watchdog keepalive: %w", err)
	}
	return nil
}

func (d *linuxDevice) setTimeout(timeout time.Duration) error {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	if err := unix.IoctlSetPointerInt(int(d.f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		return fmt.Errorf("setting watchdog timeout: %w", err)
	}
	return nil
}

func (d *linuxDevice) close() error {
	_, _ = d.f.Write([]byte{magicClose}) //nolint:errcheck // Best effort disarm
	return d.f.Close()
}
