package dutycycle

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fieldlogger/internal/power"
	"github.com/nerrad567/fieldlogger/internal/reading"
	"github.com/nerrad567/fieldlogger/internal/telemetry"
)

// ErrDeepSleep is returned by Sleep and Run after a deep sleep. The
// caller must end the process.
var ErrDeepSleep = errors.New("dutycycle: deep sleep")

// Reader runs the read pass. *sensor.Registry satisfies it.
type Reader interface {
	ReadSensors(ctx context.Context) *reading.Frame
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// Transmitter fans a frame out to the targets. *telemetry.Manager
// satisfies it.
type Transmitter interface {
	Transmit(ctx context.Context, frame *reading.Frame) telemetry.Outcome
}

// Connectivity brings media up and down. *connectivity.Manager satisfies it.
type Connectivity interface {
	Ensure(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// IntervalStore returns the persisted interval override. *nvstate.State
// satisfies it.
type IntervalStore interface {
	IntervalOverride(ctx context.Context) (time.Duration, bool, error)
}

// Watchdog is fed every cycle and stretched over long sleeps.
// *watchdog.Watchdog satisfies it.
type Watchdog interface {
	Feed() error
	AdjustForInterval(d time.Duration) error
}

// Observer receives cycle statistics. *metrics.Metrics satisfies it.
type Observer interface {
	CycleCompleted(elapsed time.Duration, succeeded, total int)
	NextSleep(d time.Duration)
}

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the scheduler settings from the main section.
type Config struct {
	FieldInterval       time.Duration
	MaintenanceInterval time.Duration
	DeepSleep           bool
	LightSleep          bool
}

// Deps are the scheduler's collaborators. Reader, Transmitter and Sleeper
// are required; the rest may be nil.
type Deps struct {
	Reader       Reader
	Transmitter  Transmitter
	Sleeper      power.Sleeper
	Connectivity Connectivity
	State        IntervalStore
	Watchdog     Watchdog
	Cache        *reading.Cache
	Observer     Observer
	Logger       Logger
}

// CycleReport describes one finished cycle.
type CycleReport struct {
	ID        string
	StartedAt time.Time
	Elapsed   time.Duration
	Frame     *reading.Frame
	Outcome   telemetry.Outcome
	Sleep     time.Duration
}

// Scheduler runs duty cycles.
type Scheduler struct {
	cfg  Config
	deps Deps
	mode *Mode

	now          func() time.Time
	housekeeping func()

	last atomic.Pointer[CycleReport]
}

// New creates a scheduler.
func New(cfg Config, mode *Mode, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if mode == nil {
		mode = NewMode(false)
	}
	return &Scheduler{
		cfg:          cfg,
		deps:         deps,
		mode:         mode,
		now:          time.Now,
		housekeeping: collectGarbage,
	}
}

// Mode returns the maintenance flag.
func (s *Scheduler) Mode() *Mode {
	return s.mode
}

// RunCycle runs READ and TRANSMIT and computes the following sleep.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	start := s.now()
	report := CycleReport{ID: uuid.NewString(), StartedAt: start}
	log := s.deps.Logger

	s.feed()

	if err := s.deps.Reader.PowerOn(ctx); err != nil {
		log.Warn("sensor power on failed", "cycle", report.ID, "error", err)
	}
	frame := s.deps.Reader.ReadSensors(ctx)
	report.Frame = frame
	log.Debug("read pass complete", "cycle", report.ID, "fields", len(frame.Inbound), "sensors", len(frame.Outcomes))

	if s.deps.Cache != nil {
		s.deps.Cache.Set(frame.Inbound, frame.StartedAt)
	}

	s.housekeeping()

	if s.deps.Connectivity != nil {
		if err := s.deps.Connectivity.Ensure(ctx); err != nil {
			log.Warn("connectivity incomplete, transmitting anyway", "cycle", report.ID, "error", err)
		}
	}

	s.feed()
	report.Outcome = s.deps.Transmitter.Transmit(ctx, frame)

	report.Elapsed = s.now().Sub(start)
	report.Sleep = s.SleepTime(ctx, report.Elapsed)

	log.Info("cycle complete",
		"cycle", report.ID,
		"result", summary(report.Outcome),
		"elapsed", report.Elapsed.String(),
		"sleep", report.Sleep.String(),
		"maintenance", s.mode.Maintenance(),
	)
	if s.deps.Observer != nil {
		s.deps.Observer.CycleCompleted(report.Elapsed, report.Outcome.Succeeded(), report.Outcome.Total())
		s.deps.Observer.NextSleep(report.Sleep)
	}
	s.last.Store(&report)
	return report
}

// LastReport returns the most recent cycle report, if any cycle has run.
func (s *Scheduler) LastReport() (CycleReport, bool) {
	r := s.last.Load()
	if r == nil {
		return CycleReport{}, false
	}
	return *r, true
}

// Interval returns the base interval for the next sleep.
func (s *Scheduler) Interval(ctx context.Context) time.Duration {
	if s.mode.Maintenance() {
		return s.cfg.MaintenanceInterval
	}
	if s.deps.State != nil {
		d, ok, err := s.deps.State.IntervalOverride(ctx)
		if err != nil {
			s.deps.Logger.Warn("reading interval override failed", "error", err)
		} else if ok {
			return d
		}
	}
	return s.cfg.FieldInterval
}

// SleepTime returns the interval minus elapsed, or the full interval when
// the cycle took at least as long as the interval. A non-positive base
// interval falls back to the configured field interval.
func (s *Scheduler) SleepTime(ctx context.Context, elapsed time.Duration) time.Duration {
	interval := s.Interval(ctx)
	if interval <= 0 {
		interval = s.cfg.FieldInterval
	}
	d := interval - elapsed
	if d <= 0 {
		return interval
	}
	return d
}

// Sleep powers sensors off and sleeps for d.
//
// Returns:
//   - ErrDeepSleep after a deep sleep; the caller must exit
//   - ctx.Err() when the context ends the wait
//   - nil otherwise
func (s *Scheduler) Sleep(ctx context.Context, d time.Duration) error {
	log := s.deps.Logger

	if err := s.deps.Reader.PowerOff(ctx); err != nil {
		log.Warn("sensor power off failed", "error", err)
	}

	if s.deps.Watchdog != nil {
		if err := s.deps.Watchdog.AdjustForInterval(d); err != nil {
			log.Warn("watchdog adjust failed", "error", err)
		}
	}

	switch {
	case s.mode.Maintenance():
		log.Debug("maintenance wait", "duration", d.String())
		return s.maintenanceWait(ctx, d)

	case s.cfg.DeepSleep:
		if s.deps.Connectivity != nil {
			if err := s.deps.Connectivity.Teardown(ctx); err != nil {
				log.Warn("connectivity teardown failed", "error", err)
			}
		}
		log.Info("entering deep sleep", "duration", d.String())
		if err := s.deps.Sleeper.DeepSleep(ctx, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("deep sleep failed, waiting instead", "error", err)
			return s.deps.Sleeper.Wait(ctx, d)
		}
		return ErrDeepSleep

	case s.cfg.LightSleep:
		log.Debug("entering light sleep", "duration", d.String())
		if err := s.deps.Sleeper.LightSleep(ctx, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("light sleep failed, waiting instead", "error", err)
			return s.deps.Sleeper.Wait(ctx, d)
		}
		return nil

	default:
		return s.deps.Sleeper.Wait(ctx, d)
	}
}

// maintenanceWait waits for d but returns early when the mode changes,
// so leaving maintenance takes effect at once.
func (s *Scheduler) maintenanceWait(ctx context.Context, d time.Duration) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	changed := s.mode.Changed()
	go func() {
		select {
		case <-changed:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	err := s.deps.Sleeper.Wait(waitCtx, d)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		s.deps.Logger.Info("mode changed, cutting wait short")
		return nil
	}
	return err
}

// Run loops until ctx is done or a deep sleep ends the process.
//
// Returns:
//   - ErrDeepSleep: the caller must exit
//   - nil: ctx was cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		report := s.RunCycle(ctx)
		if err := s.Sleep(ctx, report.Sleep); err != nil {
			if errors.Is(err, ErrDeepSleep) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			s.deps.Logger.Warn("sleep failed", "error", err)
		}
	}
}

func (s *Scheduler) feed() {
	if s.deps.Watchdog == nil {
		return
	}
	if err := s.deps.Watchdog.Feed(); err != nil {
		s.deps.Logger.Warn("watchdog feed failed", "error", err)
	}
}

// collectGarbage returns memory to the OS between the read pass and the
// transmit fan-out.
func collectGarbage() {
	runtime.GC()
	debug.FreeOSMemory()
}

func summary(o telemetry.Outcome) string {
	return fmt.Sprintf("%d/%d succeeded", o.Succeeded(), o.Total())
}
