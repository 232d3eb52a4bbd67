package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusStopping Status = "stopping"
)

// ErrAlreadyRunning is returned by Start while the daemon is supervised.
var ErrAlreadyRunning = errors.New("process: already running")

// Config holds configuration for a managed daemon.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Argv is the command line; Argv[0] is resolved through PATH.
	Argv []string

	// Env are additional environment variables (key=value format).
	Env []string

	// RestartOnFailure restarts the daemon when it exits without Stop.
	RestartOnFailure bool

	// RestartDelay is the wait before a restart. Default: 5s
	RestartDelay time.Duration

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM. Default: 10s
	GracefulTimeout time.Duration

	// OnStop runs when supervision ends: nil after Stop, the exit error
	// when the daemon died and will not be restarted.
	OnStop func(err error)
}

// Logger defines the logging interface for the process manager.
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

// Manager supervises one daemon.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewManager creates a manager. Zero durations get their defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the daemon and supervises it until Stop.
//
// ctx only bounds the launch itself; cancelling it later does not stop
// the daemon.
//
// Returns:
//   - ErrAlreadyRunning: a previous Start is still supervising
//   - error: the daemon could not be launched
func (m *Manager) Start(ctx context.Context) error {
	if len(m.config.Argv) == 0 {
		return fmt.Errorf("process %s: empty command", m.config.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.done != nil {
		select {
		case <-m.done:
		default:
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
		}
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.stopRequested = false
	m.restartCount = 0
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.launch(runCtx); err != nil {
		cancel()
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(runCtx)
	return nil
}

func (m *Manager) launch(ctx context.Context) error {
	argv := m.config.Argv
	m.logger.Info("starting process", "name", m.config.Name, "argv", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // Argv comes from the device configuration
	setProcessGroup(cmd)
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	cmd.Stdout = &lineWriter{emit: m.output("stdout")}
	cmd.Stderr = &lineWriter{emit: m.output("stderr")}
	cmd.WaitDelay = m.config.GracefulTimeout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) output(stream string) func(line string) {
	return func(line string) {
		m.logger.Debug("process output", "name", m.config.Name, "stream", stream, "output", line)
	}
}

// monitor waits for each exit and restarts the daemon when allowed.
func (m *Manager) monitor(ctx context.Context) {
	var final error
	defer func() {
		m.mu.Lock()
		done := m.done
		m.mu.Unlock()
		if m.config.OnStop != nil {
			m.config.OnStop(final)
		}
		close(done)
	}()

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()

		err := cmd.Wait()

		m.mu.Lock()
		if m.stopRequested {
			m.status = StatusStopped
			m.mu.Unlock()
			m.logger.Info("process stopped as requested", "name", m.config.Name)
			return
		}
		m.status = StatusFailed
		m.lastError = err
		attempt := m.restartCount
		m.mu.Unlock()

		m.logger.Warn("process exited unexpectedly", "name", m.config.Name, "error", err)

		if !m.config.RestartOnFailure {
			final = exitError(err)
			return
		}
		if m.config.MaxRestartAttempts > 0 && attempt >= m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt)
			final = exitError(err)
			return
		}

		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt+1,
			"delay", m.config.RestartDelay.String(),
		)
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			return
		case <-time.After(m.config.RestartDelay):
		}

		m.mu.Lock()
		m.restartCount++
		m.mu.Unlock()

		if err := m.launch(ctx); err != nil {
			m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
			m.mu.Lock()
			m.lastError = err
			m.mu.Unlock()
			final = err
			return
		}
	}
}

// exitError turns a clean exit into a non-nil error; an unexpected exit
// is a failure even with status 0.
func exitError(err error) error {
	if err == nil {
		return errors.New("exited")
	}
	return err
}

// Stop ends supervision: SIGTERM to the process group, then SIGKILL after
// GracefulTimeout. It returns once the monitor has finished.
func (m *Manager) Stop() error {
	m.mu.Lock()
	done := m.done
	if done == nil || m.stopRequested {
		m.mu.Unlock()
		return nil
	}
	select {
	case <-done:
		m.mu.Unlock()
		return nil
	default:
	}
	m.stopRequested = true
	running := m.status == StatusRunning
	m.status = StatusStopping
	cmd := m.cmd
	cancel := m.cancel
	m.mu.Unlock()

	defer cancel()

	if !running || cmd == nil || cmd.Process == nil {
		cancel()
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	if err := signalGroup(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout.String(),
		)
	}

	if err := signalGroup(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}
	<-done
	m.logger.Info("process killed", "name", m.config.Name)
	return nil
}

// Done returns a channel closed when supervision ends, or nil before the
// first Start.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the daemon is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Stats is a point-in-time summary of the daemon.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the daemon.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}

// lineWriter forwards complete lines to emit. exec copies the daemon's
// output into it from its own goroutine.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(w.buf[:i], "\r"); len(line) > 0 {
			w.emit(string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
