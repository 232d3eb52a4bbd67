package watchdog

import (
	"errors"
	"sync"
	"time"
)

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Minute

// ErrStopped is returned by Feed after Stop.
var ErrStopped = errors.New("watchdog: stopped")

// Logger defines the logging interface used by the watchdog.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// device is the hardware side of the watchdog.
type device interface {
	keepalive() error
	setTimeout(d time.Duration) error
	close() error
}

// Config holds watchdog configuration.
type Config struct {
	// Timeout is how long the device may go without a Feed.
	Timeout time.Duration

	// Device is an optional hardware watchdog path such as "/dev/watchdog".
	Device string

	// OnExpire runs when the software timer fires. The hardware watchdog,
	// when present, resets the board on its own.
	OnExpire func()
}

// Watchdog is a software timer, optionally mirrored to a Linux hardware
// watchdog. Feed must be called before the timeout elapses.
type Watchdog struct {
	mu sync.Mutex

	base    time.Duration
	timeout time.Duration
	timer   *time.Timer
	dev     device
	stopped bool

	lastFeed time.Time
	feeds    uint64

	onExpire func()
	logger   Logger
}

// New creates and arms a watchdog.
//
// Returns an error only when a hardware device is configured and cannot be
// opened; the caller decides whether that is fatal.
func New(cfg Config) (*Watchdog, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	w := &Watchdog{
		base:     timeout,
		timeout:  timeout,
		onExpire: cfg.OnExpire,
		logger:   noopLogger{},
		lastFeed: time.Now(),
	}

	if cfg.Device != "" {
		dev, err := openDevice(cfg.Device)
		if err != nil {
			return nil, err
		}
		if err := dev.setTimeout(timeout); err != nil {
			dev.close() //nolint:errcheck // Error path
			return nil, err
		}
		w.dev = dev
	}

	w.timer = time.AfterFunc(timeout, w.expire)
	return w, nil
}

// SetLogger sets the logger for the watchdog.
func (w *Watchdog) SetLogger(logger Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger
}

// Feed restarts the countdown.
func (w *Watchdog) Feed() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}

	w.timer.Reset(w.timeout)
	w.lastFeed = time.Now()
	w.feeds++

	if w.dev != nil {
		if err := w.dev.keepalive(); err != nil {
			w.logger.Warn("hardware watchdog keepalive failed", "error", err)
			return err
		}
	}
	return nil
}

// AdjustForInterval stretches the timeout so a sleep of d does not trip it.
// The new timeout is the configured timeout plus d; a zero or negative d
// restores the configured timeout. The countdown restarts.
func (w *Watchdog) AdjustForInterval(d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}

	timeout := w.base
	if d > 0 {
		timeout += d
	}
	if timeout == w.timeout {
		w.timer.Reset(w.timeout)
		return nil
	}

	w.timeout = timeout
	w.timer.Reset(timeout)
	w.lastFeed = time.Now()

	if w.dev != nil {
		if err := w.dev.setTimeout(timeout); err != nil {
			w.logger.Warn("hardware watchdog timeout change failed", "timeout", timeout, "error", err)
			return err
		}
	}
	w.logger.Info("watchdog timeout adjusted", "timeout", timeout)
	return nil
}

// Timeout returns the current timeout.
func (w *Watchdog) Timeout() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout
}

// LastFeed returns when the watchdog was last fed and the total feed count.
func (w *Watchdog) LastFeed() (time.Time, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFeed, w.feeds
}

// Stop disarms the software timer and, if present, the hardware watchdog.
// It is safe to call more than once.
func (w *Watchdog) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	w.timer.Stop()

	if w.dev != nil {
		return w.dev.close()
	}
	return nil
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	onExpire := w.onExpire
	logger := w.logger
	since := time.Since(w.lastFeed)
	w.mu.Unlock()

	logger.Error("watchdog expired", "since_last_feed", since)
	if onExpire != nil {
		onExpire()
	}
}
