//go:build linux

package power

import "golang.org/x/sys/unix"

// powerOff flushes filesystems and powers the board off.
func powerOff() error {
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
}
