//go:build !linux

package connectivity

import "syscall"

// bindToDevice is a no-op where SO_BINDTODEVICE does not exist; requests
// follow the routing table.
func bindToDevice(string) func(network, address string, c syscall.RawConn) error {
	return nil
}
