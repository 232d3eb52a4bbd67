// Package power executes the sleep between duty cycles.
//
// Two backends exist. The process backend waits in-process for every
// sleep kind; a deep sleep returns normally and the caller ends the
// process so its supervisor starts a fresh one. The rtc backend programs
// the RTC wake alarm and then suspends to RAM (light sleep) or powers the
// board off (deep sleep).
package power

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendProcess = "process"
	BackendRTC     = "rtc"
)

var (
	// ErrUnknownBackend is returned by New for an unknown backend name.
	ErrUnknownBackend = errors.New("power: unknown sleep backend")

	// ErrUnsupported is returned where the platform cannot suspend or
	// power off.
	ErrUnsupported = errors.New("power: not supported on this platform")
)

// Sleeper executes the three kinds of sleep.
type Sleeper interface {
	// Wait blocks for d or until ctx is done.
	Wait(ctx context.Context, d time.Duration) error

	// LightSleep suspends for d; memory is retained.
	LightSleep(ctx context.Context, d time.Duration) error

	// DeepSleep powers down for d; nothing in memory survives.
	DeepSleep(ctx context.Context, d time.Duration) error
}

// New returns the sleeper for backend. An empty backend means process.
func New(backend, rtcDevice string) (Sleeper, error) {
	switch backend {
	case "", BackendProcess:
		return ProcessSleeper{}, nil
	case BackendRTC:
		return NewRTCSleeper(rtcDevice), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// ProcessSleeper sleeps in-process.
type ProcessSleeper struct{}

// Wait implements Sleeper.
func (ProcessSleeper) Wait(ctx context.Context, d time.Duration) error {
	return wait(ctx, d)
}

// LightSleep implements Sleeper as a plain wait.
func (ProcessSleeper) LightSleep(ctx context.Context, d time.Duration) error {
	return wait(ctx, d)
}

// DeepSleep implements Sleeper as a plain wait; the caller then exits.
func (ProcessSleeper) DeepSleep(ctx context.Context, d time.Duration) error {
	return wait(ctx, d)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
