package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/reading"
	"github.com/nerrad567/fieldlogger/internal/telemetry/codec"
	"github.com/nerrad567/fieldlogger/internal/telemetry/topology"
	"github.com/nerrad567/fieldlogger/internal/telemetry/transport"
)

// Logger defines the logging interface used by telemetry.
// Compatible with logging.Logger.
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

// Feeder is fed before every transmission so a slow transport cannot
// starve the watchdog. *watchdog.Watchdog satisfies it.
type Feeder interface {
	Feed() error
}

// Deps are the shared collaborators adapters are built with.
type Deps struct {
	Pool     *transport.Pool
	Watchdog Feeder
	Logger   Logger
}

// Adapter binds one telemetry target to its topology, codec and transport.
//
// Thread Safety: Transmit is not re-entrant; the scheduler calls it from
// one goroutine. Failures and SetOffline are safe to call concurrently.
type Adapter struct {
	id       string
	channel  string
	via      string
	tags     map[string]string
	extra    reading.Fields
	topology topology.Topology
	codec    codec.Codec
	encoding codec.ContentEncoding
	sender   transport.Transport
	watchdog Feeder
	logger   Logger

	mu       sync.Mutex
	failures int
	offline  bool
}

// NewAdapter resolves cfg into an adapter. Every error is a configuration
// error and fatal at setup.
//
// Parameters:
//   - cfg: The target configuration
//   - deps: Transport pool, watchdog and logger
//
// Returns:
//   - *Adapter: Ready to transmit
//   - error: unknown topology/format/encoding/scheme, missing address
//     component or missing capability
func NewAdapter(cfg config.TargetConfig, deps Deps) (*Adapter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if deps.Pool == nil {
		return nil, ErrNoTransport
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	top, err := topology.Lookup(cfg.Topology, topology.Settings(cfg.Settings))
	if err != nil {
		return nil, err
	}

	scheme, err := transport.Scheme(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", cfg.Endpoint, err)
	}

	measurement, _ := cfg.Settings["measurement"].(string)
	c, err := codec.Lookup(cfg.Format, codec.Options{
		Measurement: measurement,
		Tags:        cfg.Address,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	encoding, err := codec.ParseEncoding(cfg.Encode)
	if err != nil {
		return nil, err
	}

	channel, err := ChannelURI(cfg.Endpoint, top.Template(), cfg.Address, transport.Suffix(scheme, c.Name()))
	if err != nil {
		return nil, err
	}

	sender, err := deps.Pool.Get(channel, cfg.Via, transport.Settings(cfg.Settings))
	if err != nil {
		return nil, err
	}

	id := cfg.ID
	if id == "" {
		id = channel
	}

	return &Adapter{
		id:       id,
		channel:  channel,
		via:      cfg.Via,
		tags:     cfg.Address,
		extra:    reading.Fields(cfg.ExtraFields),
		topology: top,
		codec:    c,
		encoding: encoding,
		sender:   sender,
		watchdog: deps.Watchdog,
		logger:   logger,
	}, nil
}

// ChannelURI joins endpoint, the expanded template and suffix.
func ChannelURI(endpoint, template string, address map[string]string, suffix string) (string, error) {
	path, err := topology.ExpandTemplate(template, address)
	if err != nil {
		return "", err
	}
	uri := strings.TrimRight(endpoint, "/")
	if path = strings.Trim(path, "/"); path != "" {
		uri += "/" + path
	}
	return uri + suffix, nil
}

// ID returns the target id.
func (a *Adapter) ID() string { return a.id }

// Channel returns the full channel URI.
func (a *Adapter) Channel() string { return a.channel }

// Format returns the codec name.
func (a *Adapter) Format() string { return a.codec.Name() }

// Failures returns the consecutive failure count.
func (a *Adapter) Failures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

// SetOffline switches the adapter off or back on. Nothing switches an
// adapter offline automatically.
func (a *Adapter) SetOffline(offline bool) {
	a.mu.Lock()
	a.offline = offline
	a.mu.Unlock()
}

func (a *Adapter) isOffline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offline
}

// Transmit sends frame to this target and reports whether it was accepted.
// It never returns an error: failures are logged and counted.
func (a *Adapter) Transmit(ctx context.Context, frame *reading.Frame) bool {
	if a.watchdog != nil {
		if err := a.watchdog.Feed(); err != nil {
			a.logger.Warn("watchdog feed failed", "channel", a.channel, "error", err)
		}
	}

	if a.isOffline() {
		a.logger.Warn("adapter offline, skipping", "channel", a.channel)
		return false
	}

	if err := a.send(ctx, frame); err != nil {
		a.recordFailure(err)
		return false
	}
	a.recordSuccess()
	return true
}

func (a *Adapter) send(ctx context.Context, frame *reading.Frame) error {
	outbound, err := a.transform(frame.Inbound)
	if err != nil {
		return err
	}

	payload, err := a.codec.Marshal(outbound, frame.StartedAt)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", a.codec.Name(), err)
	}
	payload = a.encoding.Apply(payload)

	frame.Record(a.channel, outbound, payload)

	return a.sender.Send(ctx, &transport.Message{
		URI:         a.channel,
		Payload:     payload,
		ContentType: a.codec.ContentType(),
		Fields:      outbound,
		Tags:        a.tags,
		Time:        frame.StartedAt,
	})
}

// transform merges the extra fields into a copy of in and applies the
// topology.
func (a *Adapter) transform(in reading.Fields) (reading.Fields, error) {
	merged := in.Clone()
	for k, v := range a.extra {
		merged[k] = v
	}
	return a.topology.Encode(merged)
}

// recordFailure logs the first failure of a run as an error and the
// repeats as warnings.
func (a *Adapter) recordFailure(err error) {
	a.mu.Lock()
	a.failures++
	n := a.failures
	a.mu.Unlock()

	if n == 1 {
		a.logger.Error("telemetry transmit failed", "channel", a.channel, "error", err)
		return
	}
	a.logger.Warn("telemetry transmit failed again", "channel", a.channel, "failures", n, "error", err)
}

func (a *Adapter) recordSuccess() {
	a.mu.Lock()
	n := a.failures
	a.failures = 0
	a.mu.Unlock()

	if n > 0 {
		a.logger.Info("telemetry transmit recovered", "channel", a.channel, "after_failures", n)
	}
}
