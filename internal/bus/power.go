package bus

import (
	"context"
	"fmt"
	"os"
)

// powerSwitch drives a sysfs GPIO value file ("1" on, "0" off).
// A zero powerSwitch has no switch and every call is a no-op.
type powerSwitch struct {
	path string
}

// PowerOn implements Powered.
func (p powerSwitch) PowerOn(context.Context) error {
	return p.write("1")
}

// PowerOff implements Powered.
func (p powerSwitch) PowerOff(context.Context) error {
	return p.write("0")
}

func (p powerSwitch) write(v string) error {
	if p.path == "" {
		return nil
	}
	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", p.path, err)
	}
	if _, err := f.WriteString(v); err != nil {
		f.Close() //nolint:errcheck // Error path
		return fmt.Errorf("writing %s: %w", p.path, err)
	}
	return f.Close()
}
