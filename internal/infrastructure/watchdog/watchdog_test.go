package watchdog

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDevice struct {
	mu         sync.Mutex
	keepalives int
	timeouts   []time.Duration
	closed     bool
	failFeed   error
}

func (f *fakeDevice) keepalive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepalives++
	return f.failFeed
}

func (f *fakeDevice) setTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakeDevice) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestWatchdog_ExpiresWithoutFeed(t *testing.T) {
	expired := make(chan struct{}, 1)
	w, err := New(Config{
		Timeout:  20 * time.Millisecond,
		OnExpire: func() { expired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop() //nolint:errcheck // Test cleanup

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not expire")
	}
}

func TestWatchdog_FeedPostponesExpiry(t *testing.T) {
	expired := make(chan struct{}, 1)
	w, err := New(Config{
		Timeout:  80 * time.Millisecond,
		OnExpire: func() { expired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop() //nolint:errcheck // Test cleanup

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		if err := w.Feed(); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
	}

	select {
	case <-expired:
		t.Fatal("watchdog expired despite regular feeding")
	default:
	}

	if _, feeds := w.LastFeed(); feeds != 5 {
		t.Errorf("feeds = %d, want 5", feeds)
	}
}

func TestWatchdog_AdjustForInterval(t *testing.T) {
	dev := &fakeDevice{}
	w, err := New(Config{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.dev = dev
	defer w.Stop() //nolint:errcheck // Test cleanup

	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"sleep stretches timeout", 5 * time.Minute, 6 * time.Minute},
		{"zero restores base", 0, time.Minute},
		{"negative restores base", -time.Second, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.AdjustForInterval(tt.interval); err != nil {
				t.Fatalf("AdjustForInterval() error = %v", err)
			}
			if got := w.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}

	// The hardware side saw both changes; the no-op adjustment was skipped.
	if len(dev.timeouts) != 2 {
		t.Errorf("device timeouts = %v, want 2 changes", dev.timeouts)
	}
}

func TestWatchdog_FeedForwardsToDevice(t *testing.T) {
	dev := &fakeDevice{}
	w, err := New(Config{Timeout: time.Minute})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.dev = dev

	if err := w.Feed(); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	dev.failFeed = errors.New("ebusy")
	if err := w.Feed(); err == nil {
		t.Error("Feed() expected device error, got nil")
	}
	if dev.keepalives != 2 {
		t.Errorf("keepalives = %d, want 2", dev.keepalives)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !dev.closed {
		t.Error("Stop() did not close the device")
	}
}

func TestWatchdog_Stop(t *testing.T) {
	expired := make(chan struct{}, 1)
	w, err := New(Config{
		Timeout:  20 * time.Millisecond,
		OnExpire: func() { expired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := w.Feed(); !errors.Is(err, ErrStopped) {
		t.Errorf("Feed() after Stop() error = %v, want ErrStopped", err)
	}

	select {
	case <-expired:
		t.Error("stopped watchdog expired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	w, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop() //nolint:errcheck // Test cleanup

	if got := w.Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}

func TestNew_MissingDevice(t *testing.T) {
	if _, err := New(Config{Device: "/nonexistent/watchdog"}); err == nil {
		t.Error("New() expected error for missing device, got nil")
	}
}
