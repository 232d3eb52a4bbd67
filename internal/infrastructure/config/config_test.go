package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "node-01"
main:
  interval:
    field: 300
    maintenance: 10
  deepsleep: true
buses:
  - family: i2c
    number: 0
    enabled: true
sensors:
  - id: mem
    type: system.memory
    enabled: true
  - id: env
    type: bme280
    bus: "i2c:0"
    enabled: true
    decimals: 2
    settings:
      address: 0x76
telemetry:
  targets:
    - id: primary
      enabled: true
      endpoint: "mqtt://broker.example.org"
      topology: mqttkit
      format: json
      address:
        realm: mqttkit-1
        network: testdrive
        gateway: area-42
        node: node-01
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "node-01" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "node-01")
	}
	if cfg.GetFieldInterval().Seconds() != 300 {
		t.Errorf("GetFieldInterval() = %v, want 300s", cfg.GetFieldInterval())
	}
	if !cfg.Main.DeepSleep {
		t.Error("Main.DeepSleep = false, want true")
	}
	if len(cfg.Buses) != 1 || cfg.Buses[0].Name() != "i2c:0" {
		t.Errorf("Buses = %+v, want one i2c:0 bus", cfg.Buses)
	}
	if len(cfg.Sensors) != 2 {
		t.Fatalf("len(Sensors) = %d, want 2", len(cfg.Sensors))
	}
	if cfg.Sensors[1].Decimals == nil || *cfg.Sensors[1].Decimals != 2 {
		t.Errorf("Sensors[1].Decimals = %v, want 2", cfg.Sensors[1].Decimals)
	}
	if got := cfg.Telemetry.Targets[0].Address["gateway"]; got != "area-42" {
		t.Errorf("Targets[0].Address[gateway] = %q, want %q", got, "area-42")
	}

	// Unset sections keep their defaults.
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}

	if got := cfg.Store().Int("main.interval.field", 0); got != 300 {
		t.Errorf("Store().Int(main.interval.field) = %d, want 300", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
main:
  interval:
    field: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// All problems are reported at once.
	for _, want := range []string{"device.id", "main.interval.field"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "zero field interval",
			mutate:  func(c *Config) { c.Main.Interval.Field = 0 },
			wantErr: true,
		},
		{
			name:    "negative maintenance interval",
			mutate:  func(c *Config) { c.Main.Interval.Maintenance = -5 },
			wantErr: true,
		},
		{
			name:    "unknown sleep backend",
			mutate:  func(c *Config) { c.Main.SleepBackend = "hibernate" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "port ignored when API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name: "duplicate bus",
			mutate: func(c *Config) {
				c.Buses = []BusConfig{
					{Family: "i2c", Number: 1},
					{Family: "i2c", Number: 1},
				}
			},
			wantErr: true,
		},
		{
			name: "same number different family",
			mutate: func(c *Config) {
				c.Buses = []BusConfig{
					{Family: "i2c", Number: 0},
					{Family: "onewire", Number: 0},
				}
			},
			wantErr: false,
		},
		{
			name: "duplicate sensor id",
			mutate: func(c *Config) {
				c.Sensors = []SensorConfig{
					{ID: "a", Type: "system.memory"},
					{ID: "a", Type: "system.uptime"},
				}
			},
			wantErr: true,
		},
		{
			name: "sensor without type",
			mutate: func(c *Config) {
				c.Sensors = []SensorConfig{{ID: "a"}}
			},
			wantErr: true,
		},
		{
			name: "negative decimals",
			mutate: func(c *Config) {
				c.Sensors = []SensorConfig{{ID: "a", Type: "system.memory", Decimals: &negative}}
			},
			wantErr: true,
		},
		{
			name: "enabled target without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Targets = []TargetConfig{{ID: "t", Enabled: true}}
			},
			wantErr: true,
		},
		{
			name: "valid media and radio",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{
					{Name: "wifi", Kind: MediumInterface, Interface: "wlan0"},
					{Name: "gsm", Kind: MediumModem, Interface: "ppp0", Up: []string{"pon", "gsm"}},
				}
				c.Connectivity.Radio.Enabled = true
			},
			wantErr: false,
		},
		{
			name: "unknown medium kind",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{{Name: "sat", Kind: "satellite", Interface: "sat0"}}
			},
			wantErr: true,
		},
		{
			name: "medium without interface",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{{Name: "wifi", Kind: MediumInterface}}
			},
			wantErr: true,
		},
		{
			name: "two modems",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{
					{Name: "a", Kind: MediumModem, Interface: "ppp0"},
					{Name: "b", Kind: MediumModem, Interface: "ppp1"},
				}
			},
			wantErr: true,
		},
		{
			name: "link daemon",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{
					{Name: "gsm", Kind: MediumModem, Interface: "ppp0", Daemon: []string{"pppd", "call", "gsm", "nodetach"}},
				}
			},
			wantErr: false,
		},
		{
			name: "link daemon with up command",
			mutate: func(c *Config) {
				c.Connectivity.Media = []MediumConfig{
					{Name: "gsm", Kind: MediumModem, Interface: "ppp0", Up: []string{"pon"}, Daemon: []string{"pppd"}},
				}
			},
			wantErr: true,
		},
		{
			name: "file logging without path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
			},
			wantErr: true,
		},
		{
			name: "radio without device",
			mutate: func(c *Config) {
				c.Connectivity.Radio = RadioConfig{Enabled: true}
			},
			wantErr: true,
		},
		{
			name: "disabled target without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Targets = []TargetConfig{{ID: "t"}}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Main: MainConfig{
			Interval: IntervalConfig{Field: 120, Maintenance: 15},
			Watchdog: WatchdogConfig{Timeout: 600},
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetFieldInterval().Seconds(); got != 120 {
		t.Errorf("GetFieldInterval() = %v, want 120", got)
	}
	if got := cfg.GetMaintenanceInterval().Seconds(); got != 15 {
		t.Errorf("GetMaintenanceInterval() = %v, want 15", got)
	}
	if got := cfg.GetWatchdogTimeout().Seconds(); got != 600 {
		t.Errorf("GetWatchdogTimeout() = %v, want 600", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("FIELDLOGGER_DEVICE_ID", "node-99")
	t.Setenv("FIELDLOGGER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("FIELDLOGGER_MQTT_USERNAME", "testuser")
	t.Setenv("FIELDLOGGER_MQTT_PASSWORD", "testpass")
	t.Setenv("FIELDLOGGER_API_HOST", "192.168.1.1")
	t.Setenv("FIELDLOGGER_MAINTENANCE", "true")
	t.Setenv("FIELDLOGGER_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Device.ID != "node-99" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "node-99")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if !cfg.Main.Maintenance {
		t.Error("Main.Maintenance = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	store := cfg.Store()
	if got := store.String("device.id", ""); got != "node-99" {
		t.Errorf("Store device.id = %q, want node-99", got)
	}
	if got := store.String("mqtt.auth.password", ""); got != "testpass" {
		t.Errorf("Store mqtt.auth.password = %q, want testpass", got)
	}
	if !store.Bool("main.maintenance", false) {
		t.Error("Store main.maintenance = false, want true")
	}
}

func TestLoad_EnvOverrideInStore(t *testing.T) {
	path := writeConfig(t, `device:
  id: node-01
main:
  interval:
    field: 300
    maintenance: 15
database:
  path: /tmp/fieldlogger.db
mqtt:
  client_id: fieldlogger
  auth:
    username: node
`)
	t.Setenv("FIELDLOGGER_MQTT_USERNAME", "override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	mqtt, ok := cfg.Store().Get("mqtt", nil).(map[string]any)
	if !ok {
		t.Fatalf("Store().Get(mqtt) = %v, want a mapping", cfg.Store().Get("mqtt", nil))
	}
	if mqtt["client_id"] != "fieldlogger" {
		t.Errorf("mqtt.client_id = %v, file value lost under the override", mqtt["client_id"])
	}
	auth, _ := mqtt["auth"].(map[string]any)
	if auth["username"] != "override" {
		t.Errorf("mqtt.auth.username = %v, want override", auth["username"])
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.ID == "" {
		t.Error("defaultConfig should have non-empty Device.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.Main.Interval.Field != 60 {
		t.Errorf("defaultConfig Main.Interval.Field = %d, want 60", cfg.Main.Interval.Field)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
