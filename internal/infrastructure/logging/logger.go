package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

const (
	// serviceName is attached to every log entry.
	serviceName = "fieldlogger"

	logDirPermissions  = 0750
	logFilePermissions = 0640
)

// Logger wraps slog.Logger with field logger defaults.
//
// Every entry carries a boot id, fresh for each process start. A deep sleep
// ends the process, so the boot id groups the entries of one wake-up.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	boot   string
	recent *Ring
	closer io.Closer
}

// New creates a Logger writing to the destination named by cfg.Output.
//
// It configures:
//   - Output format (JSON for unattended runs, text for bench work)
//   - Log level filtering
//   - Default fields (service, version, boot)
//   - Output destination, appending to cfg.File for "file"
//   - An in-memory ring of the last cfg.Recent entries
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Firmware version for default field
//
// Returns:
//   - *Logger: Configured logger; Close releases the log file
//   - error: If the log file cannot be opened
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	var (
		output io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "file":
		f, err := openLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		output, closer = f, f
	default:
		output = os.Stdout
	}

	l := NewWithWriter(cfg, version, output)
	l.closer = closer
	return l, nil
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("logging: no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), logDirPermissions); err != nil {
		return nil, fmt.Errorf("logging: creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("logging: opening log file: %w", err)
	}
	return f, nil
}

// NewWithWriter is New with an explicit destination. cfg.Output and
// cfg.File are ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	var recent *Ring
	if cfg.Recent > 0 {
		recent = NewRing(cfg.Recent)
		output = io.MultiWriter(output, recent)
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	boot := uuid.NewString()[:8]
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("boot", boot),
	})

	return &Logger{
		Logger: slog.New(handler),
		boot:   boot,
		recent: recent,
	}
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes. The child
// shares the parent's destination and recent-entry ring.
//
// Example:
//
//	busLogger := logger.With("component", "bus")
//	busLogger.Info("bus started") // Includes component=bus
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		boot:   l.boot,
		recent: l.recent,
	}
}

// Boot returns the boot id attached to every entry.
func (l *Logger) Boot() string { return l.boot }

// Recent returns the most recent entries, oldest first. It is nil when the
// ring is disabled.
func (l *Logger) Recent() []string {
	if l.recent == nil {
		return nil
	}
	return l.recent.Lines()
}

// Close releases the log file, if any. Children made with With share the
// file and must not be used afterwards.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default creates a logger for use before configuration is loaded: JSON to
// stdout at info level, no ring.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{
		Level:  "info",
		Format: "json",
	}, "dev", os.Stdout)
}
