package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the field logger.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Main      MainConfig      `yaml:"main"`
	Buses     []BusConfig     `yaml:"buses"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`

	// store is the dot-addressed view over the raw YAML document.
	store *Store
}

// DeviceConfig identifies this logger.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MainConfig contains duty-cycle settings.
type MainConfig struct {
	Interval IntervalConfig `yaml:"interval"`

	// DeepSleep powers the device down between cycles. Nothing in memory
	// survives a deep sleep.
	DeepSleep bool `yaml:"deepsleep"`

	// LightSleep suspends the device between cycles.
	LightSleep bool `yaml:"lightsleep"`

	// Maintenance starts the logger in maintenance mode.
	Maintenance bool `yaml:"maintenance"`

	// SleepBackend selects how sleep is executed: "process" or "rtc".
	// Default: "process"
	SleepBackend string `yaml:"sleep_backend"`

	// RTCDevice is the sysfs directory of the wakeup RTC for the "rtc" backend.
	// Default: "/sys/class/rtc/rtc0"
	RTCDevice string `yaml:"rtc_device"`

	Watchdog WatchdogConfig `yaml:"watchdog"`
}

// IntervalConfig contains cycle intervals in seconds.
type IntervalConfig struct {
	Field       int `yaml:"field"`
	Maintenance int `yaml:"maintenance"`
}

// WatchdogConfig contains watchdog settings.
type WatchdogConfig struct {
	Enabled bool `yaml:"enabled"`

	// Timeout is the watchdog timeout in seconds.
	Timeout int `yaml:"timeout"`

	// Device is an optional hardware watchdog device (e.g. "/dev/watchdog").
	// When empty only the software watchdog is used.
	Device string `yaml:"device"`
}

// BusConfig describes one shared hardware bus.
type BusConfig struct {
	Family  string `yaml:"family"`
	Number  int    `yaml:"number"`
	Enabled bool   `yaml:"enabled"`

	// Path overrides the default device path for the family
	// ("/dev/i2c-N" for i2c, "/sys/bus/w1/devices/w1_bus_master<N+1>" for
	// onewire, since the kernel numbers w1 masters from 1).
	Path string `yaml:"path,omitempty"`

	// PowerPath is an optional sysfs GPIO value file switching bus power.
	PowerPath string `yaml:"power_path,omitempty"`
}

// Name returns the bus name in "<family>:<number>" form.
func (b BusConfig) Name() string {
	return fmt.Sprintf("%s:%d", b.Family, b.Number)
}

// SensorConfig describes one sensor.
type SensorConfig struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Enabled bool   `yaml:"enabled"`

	// Bus is the bus name ("i2c:0"); empty for system-level sensors.
	Bus string `yaml:"bus,omitempty"`

	// Decimals rounds every value the sensor produces. Nil disables rounding.
	Decimals *int `yaml:"decimals,omitempty"`

	Settings map[string]any `yaml:"settings,omitempty"`
}

// TelemetryConfig contains the configured telemetry targets.
type TelemetryConfig struct {
	Targets []TargetConfig `yaml:"targets"`
}

// TargetConfig describes one telemetry target.
type TargetConfig struct {
	ID      string `yaml:"id"`
	Enabled bool   `yaml:"enabled"`

	// Endpoint is the base URI (e.g. "mqtt://broker.example.org").
	Endpoint string `yaml:"endpoint"`

	// Address holds the URI template components (realm, network, gateway, node).
	Address map[string]string `yaml:"address,omitempty"`

	Topology string `yaml:"topology"`
	Format   string `yaml:"format"`

	// Encode is the optional content encoding: "" / "identity" or "base64".
	Encode string `yaml:"encode,omitempty"`

	// Via routes request/response transports through a connectivity
	// capability instead of the socket stack (e.g. "modem").
	Via string `yaml:"via,omitempty"`

	// ExtraFields are merged into every frame sent to this target.
	ExtraFields map[string]any `yaml:"extra_fields,omitempty"`

	// Settings hold topology and transport specific options.
	Settings map[string]any `yaml:"settings,omitempty"`
}

// ConnectivityConfig describes the network media and the optional radio.
type ConnectivityConfig struct {
	Media []MediumConfig `yaml:"media"`
	Radio RadioConfig    `yaml:"radio"`
}

// Medium kinds.
const (
	MediumInterface = "interface"
	MediumModem     = "modem"
)

// MediumConfig describes one network medium.
type MediumConfig struct {
	Name string `yaml:"name"`

	// Kind is "interface" (WiFi, Ethernet) or "modem" (cellular PPP link).
	Kind string `yaml:"kind"`

	// Interface is the kernel network interface ("wlan0", "ppp0").
	Interface string `yaml:"interface"`

	// Up and Down are optional commands bringing the link up and down,
	// e.g. ["pon", "gsm"] and ["poff", "gsm"].
	Up   []string `yaml:"up,omitempty"`
	Down []string `yaml:"down,omitempty"`

	// Daemon is an optional long-running link daemon supervised while the
	// medium is up, e.g. ["pppd", "call", "gsm", "nodetach"]. When set it
	// replaces Up; Down still runs after the daemon is stopped.
	Daemon []string `yaml:"daemon,omitempty"`

	// Timeout is how long Ensure waits for the link, in seconds.
	Timeout int `yaml:"timeout"`
}

// RadioConfig describes an AT-command LoRaWAN module on a serial port.
type RadioConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`

	// ReceiveTimeout bounds the downlink wait after an uplink, in seconds.
	ReceiveTimeout int `yaml:"receive_timeout"`
}

// DatabaseConfig contains SQLite settings for the non-volatile store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains defaults applied to every broker connection.
type MQTTConfig struct {
	ClientID  string              `yaml:"client_id"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains TLS settings for mqtts:// endpoints.
type MQTTTLSConfig struct {
	// CAFile is an optional PEM bundle used to verify the broker.
	CAFile string `yaml:"ca_file"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the local administrative HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string `yaml:"output"`

	// File is the log file appended to when Output is "file". It lives on
	// persistent storage so entries survive deep sleep.
	File string `yaml:"file,omitempty"`

	// Recent is how many of the latest entries are kept in memory for the
	// admin API. Zero disables the buffer.
	Recent int `yaml:"recent"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FIELDLOGGER_SECTION_KEY
// For example: FIELDLOGGER_DATABASE_PATH, FIELDLOGGER_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.store = NewStore(raw)

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "node-01",
			Name: "Field Logger",
		},
		Main: MainConfig{
			Interval: IntervalConfig{
				Field:       60,
				Maintenance: 15,
			},
			SleepBackend: "process",
			RTCDevice:    "/sys/class/rtc/rtc0",
			Watchdog: WatchdogConfig{
				Enabled: true,
				Timeout: 600,
			},
		},
		Connectivity: ConnectivityConfig{
			Radio: RadioConfig{
				Device:         "/dev/ttyS0",
				ReceiveTimeout: 10,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/fieldlogger.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			ClientID: "fieldlogger",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "fieldlogger",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			Recent: 200,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FIELDLOGGER_SECTION_KEY
//
// Each override is also written to the Store so the admin API shows the
// effective value.
func applyEnvOverrides(cfg *Config) {
	store := cfg.Store()

	if v := os.Getenv("FIELDLOGGER_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
		store.Set("device.id", v)
	}

	if v := os.Getenv("FIELDLOGGER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
		store.Set("database.path", v)
	}

	if v := os.Getenv("FIELDLOGGER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
		store.Set("mqtt.auth.username", v)
	}
	if v := os.Getenv("FIELDLOGGER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
		store.Set("mqtt.auth.password", v)
	}

	if v := os.Getenv("FIELDLOGGER_API_HOST"); v != "" {
		cfg.API.Host = v
		store.Set("api.host", v)
	}

	if v := os.Getenv("FIELDLOGGER_MAINTENANCE"); v != "" {
		cfg.Main.Maintenance = v == "1" || strings.EqualFold(v, "true")
		store.Set("main.maintenance", cfg.Main.Maintenance)
	}

	if v := os.Getenv("FIELDLOGGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		store.Set("logging.level", v)
	}
}

// Validate checks the configuration for errors.
//
// Only misconfiguration that can be detected without touching hardware is
// reported here; unknown sensor types, formats and topologies are rejected
// when the corresponding registries are built.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.Main.Interval.Field <= 0 {
		errs = append(errs, "main.interval.field must be positive")
	}
	if c.Logging.Output == "file" && c.Logging.File == "" {
		errs = append(errs, "logging.file is required when logging.output is file")
	}
	if c.Logging.Recent < 0 {
		errs = append(errs, "logging.recent must not be negative")
	}
	if c.Main.Interval.Maintenance <= 0 {
		errs = append(errs, "main.interval.maintenance must be positive")
	}
	switch c.Main.SleepBackend {
	case "", "process", "rtc":
	default:
		errs = append(errs, fmt.Sprintf("main.sleep_backend %q must be process or rtc", c.Main.SleepBackend))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	busNames := make(map[string]bool, len(c.Buses))
	for i, b := range c.Buses {
		if b.Family == "" {
			errs = append(errs, fmt.Sprintf("buses[%d].family is required", i))
			continue
		}
		if busNames[b.Name()] {
			errs = append(errs, fmt.Sprintf("buses[%d]: duplicate bus %s", i, b.Name()))
		}
		busNames[b.Name()] = true
	}

	sensorIDs := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("sensors[%d].id is required", i))
		} else if sensorIDs[s.ID] {
			errs = append(errs, fmt.Sprintf("sensors[%d]: duplicate id %s", i, s.ID))
		}
		sensorIDs[s.ID] = true
		if s.Type == "" {
			errs = append(errs, fmt.Sprintf("sensors[%d].type is required", i))
		}
		if s.Decimals != nil && *s.Decimals < 0 {
			errs = append(errs, fmt.Sprintf("sensors[%d].decimals must not be negative", i))
		}
	}

	targetIDs := make(map[string]bool, len(c.Telemetry.Targets))
	for i, t := range c.Telemetry.Targets {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("telemetry.targets[%d].id is required", i))
		} else if targetIDs[t.ID] {
			errs = append(errs, fmt.Sprintf("telemetry.targets[%d]: duplicate id %s", i, t.ID))
		}
		targetIDs[t.ID] = true
		if t.Enabled && t.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("telemetry.targets[%d].endpoint is required", i))
		}
	}

	mediumNames := make(map[string]bool, len(c.Connectivity.Media))
	modems := 0
	for i, m := range c.Connectivity.Media {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("connectivity.media[%d].name is required", i))
		} else if mediumNames[m.Name] {
			errs = append(errs, fmt.Sprintf("connectivity.media[%d]: duplicate name %s", i, m.Name))
		}
		mediumNames[m.Name] = true
		switch m.Kind {
		case MediumInterface:
		case MediumModem:
			modems++
		default:
			errs = append(errs, fmt.Sprintf("connectivity.media[%d].kind %q must be interface or modem", i, m.Kind))
		}
		if m.Interface == "" {
			errs = append(errs, fmt.Sprintf("connectivity.media[%d].interface is required", i))
		}
		if len(m.Daemon) > 0 && len(m.Up) > 0 {
			errs = append(errs, fmt.Sprintf("connectivity.media[%d]: daemon and up are mutually exclusive", i))
		}
	}
	if modems > 1 {
		errs = append(errs, "connectivity.media: at most one modem is supported")
	}
	if c.Connectivity.Radio.Enabled && c.Connectivity.Radio.Device == "" {
		errs = append(errs, "connectivity.radio.device is required when the radio is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Store returns the dot-addressed view over the raw configuration document.
// A Config built in code (not via Load) gets an empty store.
func (c *Config) Store() *Store {
	if c.store == nil {
		c.store = NewStore(nil)
	}
	return c.store
}

// GetFieldInterval returns the configured field interval as a Duration.
func (c *Config) GetFieldInterval() time.Duration {
	return time.Duration(c.Main.Interval.Field) * time.Second
}

// GetMaintenanceInterval returns the configured maintenance interval as a Duration.
func (c *Config) GetMaintenanceInterval() time.Duration {
	return time.Duration(c.Main.Interval.Maintenance) * time.Second
}

// GetWatchdogTimeout returns the watchdog timeout as a Duration.
func (c *Config) GetWatchdogTimeout() time.Duration {
	return time.Duration(c.Main.Watchdog.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
