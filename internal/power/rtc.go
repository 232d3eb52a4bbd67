package power

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultRTCDevice  = "/sys/class/rtc/rtc0"
	defaultPowerState = "/sys/power/state"
)

// RTCSleeper wakes the board through the RTC alarm.
type RTCSleeper struct {
	rtcDir     string
	powerState string
	poweroff   func() error
}

// NewRTCSleeper creates an RTC sleeper for the RTC sysfs directory.
func NewRTCSleeper(rtcDir string) *RTCSleeper {
	if rtcDir == "" {
		rtcDir = defaultRTCDevice
	}
	return &RTCSleeper{
		rtcDir:     rtcDir,
		powerState: defaultPowerState,
		poweroff:   powerOff,
	}
}

// Wait implements Sleeper.
func (s *RTCSleeper) Wait(ctx context.Context, d time.Duration) error {
	return wait(ctx, d)
}

// LightSleep arms the alarm and suspends to RAM. The write to the power
// state file returns after resume.
func (s *RTCSleeper) LightSleep(_ context.Context, d time.Duration) error {
	if err := s.setAlarm(d); err != nil {
		return err
	}
	if err := os.WriteFile(s.powerState, []byte("mem"), 0); err != nil {
		return fmt.Errorf("suspending: %w", err)
	}
	return nil
}

// DeepSleep arms the alarm and powers off. It only returns on failure.
func (s *RTCSleeper) DeepSleep(_ context.Context, d time.Duration) error {
	if err := s.setAlarm(d); err != nil {
		return err
	}
	if err := s.poweroff(); err != nil {
		return fmt.Errorf("powering off: %w", err)
	}
	return nil
}

// setAlarm clears and then sets the relative wake alarm, rounded up to
// whole seconds.
func (s *RTCSleeper) setAlarm(d time.Duration) error {
	path := filepath.Join(s.rtcDir, "wakealarm")
	if err := os.WriteFile(path, []byte("0"), 0); err != nil {
		return fmt.Errorf("clearing wake alarm: %w", err)
	}
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	if err := os.WriteFile(path, []byte("+"+strconv.FormatInt(secs, 10)), 0); err != nil {
		return fmt.Errorf("setting wake alarm: %w", err)
	}
	return nil
}
