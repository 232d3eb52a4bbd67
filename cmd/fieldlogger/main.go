// Field Logger - battery-operated sensor data logger
//
// This is the main entry point. One process lifetime is one or more duty
// cycles: read every sensor, transmit the frame to every telemetry target,
// then sleep. With deep sleep enabled the process exits after the first
// cycle and the RTC alarm boots the next one.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/fieldlogger/internal/api"
	"github.com/nerrad567/fieldlogger/internal/bus"
	"github.com/nerrad567/fieldlogger/internal/connectivity"
	"github.com/nerrad567/fieldlogger/internal/dutycycle"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/database"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/logging"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/metrics"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/nvstore"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/watchdog"
	"github.com/nerrad567/fieldlogger/internal/nvstate"
	"github.com/nerrad567/fieldlogger/internal/power"
	"github.com/nerrad567/fieldlogger/internal/reading"
	"github.com/nerrad567/fieldlogger/internal/sensor"
	"github.com/nerrad567/fieldlogger/internal/telemetry"
	"github.com/nerrad567/fieldlogger/internal/telemetry/transport"
	"github.com/nerrad567/fieldlogger/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errWatchdogExpired ends run when the software watchdog fires.
var errWatchdogExpired = errors.New("watchdog expired")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown or after a deep sleep, otherwise the
//     startup failure or watchdog expiry
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting field logger",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	base, err := logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("opening log output: %w", err)
	}
	defer base.Close() //nolint:errcheck // Nothing left to log to
	log = base.With("device", cfg.Device.ID)
	log.Info("configuration loaded", "path", configPath, "boot", base.Boot())

	ctx, cancelCause := context.WithCancelCause(ctx)
	defer cancelCause(nil)

	// Non-volatile store.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())
	state := nvstate.New(nvstore.NewSQLite(db))

	// Watchdog.
	var wd *watchdog.Watchdog
	if cfg.Main.Watchdog.Enabled {
		wd, err = watchdog.New(watchdog.Config{
			Timeout: cfg.GetWatchdogTimeout(),
			Device:  cfg.Main.Watchdog.Device,
			OnExpire: func() {
				log.Error("watchdog expired, restarting")
				cancelCause(errWatchdogExpired)
			},
		})
		if err != nil {
			return fmt.Errorf("starting watchdog: %w", err)
		}
		wd.SetLogger(log)
		defer wd.Stop() //nolint:errcheck // Shutdown path
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	// Hardware.
	buses := bus.NewRegistry()
	buses.SetLogger(log)
	if err := buses.SetupBuses(ctx, cfg.Buses); err != nil {
		log.Warn("some buses are unavailable", "error", err)
	}

	sensors := sensor.NewRegistry(buses)
	sensors.SetLogger(log)
	if m != nil {
		sensors.SetObserver(m)
	}
	if err := sensors.RegisterAll(ctx, cfg.Sensors); err != nil {
		return fmt.Errorf("registering sensors: %w", err)
	}
	sensors.Start(ctx)

	// Connectivity and telemetry.
	conn := connectivity.NewManager(cfg.Connectivity)
	conn.SetLogger(log)
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("error stopping link daemons", "error", err)
		}
	}()

	pool, closeRadio, err := buildTransportPool(cfg, conn, state, log)
	if err != nil {
		return err
	}
	defer closeRadio()

	var feeder telemetry.Feeder
	if wd != nil {
		feeder = wd
	}
	manager, err := telemetry.NewManager(cfg.Telemetry.Targets, telemetry.Deps{
		Pool:     pool,
		Watchdog: feeder,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer manager.Close() //nolint:errcheck // Shutdown path
	if m != nil {
		manager.SetObserver(m)
	}
	log.Info("telemetry ready", "targets", len(manager.Adapters()))

	sleeper, err := power.New(cfg.Main.SleepBackend, cfg.Main.RTCDevice)
	if err != nil {
		return fmt.Errorf("creating sleeper: %w", err)
	}

	// Scheduler.
	mode := dutycycle.NewMode(cfg.Main.Maintenance)
	mode.OnChange(func(maintenance bool) {
		log.Info("mode changed", "maintenance", maintenance)
		if m != nil {
			m.ModeChanged(maintenance)
		}
	})
	if m != nil {
		m.ModeChanged(mode.Maintenance())
	}
	stopToggle := notifyToggle(mode)
	defer stopToggle()

	cache := &reading.Cache{}
	deps := dutycycle.Deps{
		Reader:       sensors,
		Transmitter:  manager,
		Sleeper:      sleeper,
		Connectivity: conn,
		State:        state,
		Cache:        cache,
		Logger:       log,
	}
	if wd != nil {
		deps.Watchdog = wd
	}
	if m != nil {
		deps.Observer = m
	}
	scheduler := dutycycle.New(dutycycle.Config{
		FieldInterval:       cfg.GetFieldInterval(),
		MaintenanceInterval: cfg.GetMaintenanceInterval(),
		DeepSleep:           cfg.Main.DeepSleep,
		LightSleep:          cfg.Main.LightSleep,
	}, mode, deps)

	// Admin API.
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:   cfg.API,
			Logger:   log,
			DeviceID: cfg.Device.ID,
			Version:  version,
			Mode:     mode,
			Cycles:   scheduler,
			State:    state,
			Cache:    cache,
			Settings: cfg.Store(),
			Health:   db,
			Links:    conn,
		}
		if m != nil {
			apiDeps.Metrics = m.Handler()
		}
		server, err := api.New(apiDeps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer server.Close() //nolint:errcheck // Shutdown path
	}

	log.Info("field logger started",
		"interval", cfg.GetFieldInterval().String(),
		"maintenance", mode.Maintenance(),
		"deepsleep", cfg.Main.DeepSleep,
		"lightsleep", cfg.Main.LightSleep,
	)

	err = scheduler.Run(ctx)
	switch {
	case errors.Is(err, dutycycle.ErrDeepSleep):
		log.Info("woke from deep sleep, exiting for a fresh boot")
		return nil
	case err != nil:
		return err
	}

	if cause := context.Cause(ctx); errors.Is(cause, errWatchdogExpired) {
		return cause
	}
	log.Info("shutdown complete")
	return nil
}

// buildTransportPool creates the shared transport pool and opens the radio
// when one is configured. The returned func closes the radio.
func buildTransportPool(cfg *config.Config, conn *connectivity.Manager, state *nvstate.State, log *logging.Logger) (*transport.Pool, func(), error) {
	deps := transport.Deps{
		Brokers: transport.NewBrokerPool(transport.MQTTDialer(cfg.MQTT, log)),
		NATS:    transport.NewNATSPool(transport.DialNATS(cfg.Device.ID)),
		State:   state,
		Logger:  log,
	}
	if modem := conn.Modem(); modem != nil {
		deps.Modem = modem
	}

	closeRadio := func() {}
	if cfg.Connectivity.Radio.Enabled {
		radio, err := connectivity.OpenRadio(cfg.Connectivity.Radio)
		if err != nil {
			return nil, nil, fmt.Errorf("opening radio: %w", err)
		}
		deps.Radio = radio
		closeRadio = func() {
			if err := radio.Close(); err != nil {
				log.Warn("error closing radio", "error", err)
			}
		}
		log.Info("radio opened", "device", cfg.Connectivity.Radio.Device)
	}

	return transport.NewPool(deps), closeRadio, nil
}

// getConfigPath returns the configuration file path, honouring
// FIELDLOGGER_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("FIELDLOGGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
