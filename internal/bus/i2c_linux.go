//go:build linux

package bus

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl from <linux/i2c-dev.h>.
const i2cSlave = 0x0703

type devAdapter struct {
	f *os.File
}

func openAdapter(path string) (prober, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening i2c adapter %s: %w", path, err)
	}
	return &devAdapter{f: f}, nil
}

// probe selects addr and reads one byte, like i2cdetect -r. Busy addresses
// (claimed by a kernel driver) count as present.
func (a *devAdapter) probe(addr uint16) bool {
	fd := int(a.f.Fd())
	if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		return errors.Is(err, unix.EBUSY)
	}
	var buf [1]byte
	n, err := unix.Read(fd, buf[:])
	return err == nil && n == 1
}

func (a *devAdapter) close() error {
	return a.f.Close()
}
