//go:build !linux

package power

func powerOff() error { return ErrUnsupported }
