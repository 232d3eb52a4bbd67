// Package watchdog guards the duty cycle against hangs.
//
// A software timer fires OnExpire when Feed is not called within the
// timeout. When a device such as /dev/watchdog is configured the same
// feeds are forwarded to the kernel driver, which resets the board if the
// process stops feeding altogether.
//
// The scheduler feeds at the start of each cycle, each adapter feeds before
// network I/O, and AdjustForInterval stretches the timeout before a sleep.
package watchdog
