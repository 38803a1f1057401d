// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file must fall back to defaults: %v", err)
	}

	if cfg.Node.DataInterval != 5*time.Second {
		t.Errorf("data interval = %v, want 5s", cfg.Node.DataInterval)
	}
	if cfg.Link.ConnectTimeout != 15*time.Second {
		t.Errorf("connect timeout = %v, want 15s", cfg.Link.ConnectTimeout)
	}
	if cfg.Link.ReconnectTimeout != 10*time.Second {
		t.Errorf("reconnect timeout = %v, want 10s", cfg.Link.ReconnectTimeout)
	}
	if cfg.Sensors.Wind.Interval != 100*time.Millisecond {
		t.Errorf("wind interval = %v, want 100ms", cfg.Sensors.Wind.Interval)
	}
	if cfg.Sensors.Wind.MaxSpeedMS != 32.40 {
		t.Errorf("wind max speed = %v, want 32.40", cfg.Sensors.Wind.MaxSpeedMS)
	}
	if cfg.Sensors.Rain.WetThreshold != 500 || cfg.Sensors.Rain.DryThreshold != 4000 {
		t.Errorf("rain thresholds = %d/%d, want 500/4000",
			cfg.Sensors.Rain.WetThreshold, cfg.Sensors.Rain.DryThreshold)
	}
	if cfg.Sensors.Light.DarkThreshold != 500 || cfg.Sensors.Light.BrightThreshold != 3000 {
		t.Errorf("light thresholds = %d/%d, want 500/3000",
			cfg.Sensors.Light.DarkThreshold, cfg.Sensors.Light.BrightThreshold)
	}
	if cfg.Node.StationAltitudeM != 262.0 {
		t.Errorf("altitude = %v, want 262", cfg.Node.StationAltitudeM)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  data_interval: 30s
  station_altitude_m: 100
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Node.DataInterval != 30*time.Second {
		t.Errorf("data interval = %v, want 30s", cfg.Node.DataInterval)
	}
	if cfg.Node.StationAltitudeM != 100 {
		t.Errorf("altitude = %v, want 100", cfg.Node.StationAltitudeM)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Link.ConnectTimeout != 15*time.Second {
		t.Errorf("connect timeout = %v, want default 15s", cfg.Link.ConnectTimeout)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DATA_INTERVAL", "1m")
	t.Setenv("INFLUXDB_URL", "http://localhost:8086")
	t.Setenv("INFLUXDB_TOKEN", "tok")
	t.Setenv("INFLUXDB_ORG", "org")
	t.Setenv("INFLUXDB_BUCKET", "bucket")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Node.DataInterval != time.Minute {
		t.Errorf("data interval = %v, want 1m", cfg.Node.DataInterval)
	}
	if cfg.InfluxDB.URL != "http://localhost:8086" {
		t.Errorf("influxdb url = %s, want override", cfg.InfluxDB.URL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted rain thresholds", func(c *Config) {
			c.Sensors.Rain.WetThreshold = 4000
			c.Sensors.Rain.DryThreshold = 500
		}},
		{"inverted light thresholds", func(c *Config) {
			c.Sensors.Light.DarkThreshold = 3000
			c.Sensors.Light.BrightThreshold = 500
		}},
		{"data interval below wind interval", func(c *Config) {
			c.Node.DataInterval = 50 * time.Millisecond
		}},
		{"bad log level", func(c *Config) {
			c.Logging.Level = "verbose"
		}},
		{"influxdb url without token", func(c *Config) {
			c.InfluxDB.URL = "http://localhost:8086"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.setDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid configuration")
			}
		})
	}
}

func TestValidateFileSchema(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"valid", `
node:
  data_interval: 5s
logging:
  level: info
`, false},
		{"unknown top-level key", `
nodes:
  data_interval: 5s
`, true},
		{"unknown nested key", `
node:
  interval: 5s
`, true},
		{"wrong type", `
sensors:
  wind:
    raw_max: "many"
`, true},
		{"bad duration format", `
link:
  connect_timeout: fifteen
`, true},
		{"empty file", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFile error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
