// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the weather
// station node. Values load from a YAML file, then environment variable
// overrides, then defaults; the defaults reproduce the station's stock
// calibration (5 s upload interval, 15 s connect and 10 s reconnect
// windows, 100 ms wind sampling, raw rain/light thresholds, 262 m
// station altitude).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Node        NodeConfig     `yaml:"node"`
	Link        LinkConfig     `yaml:"link"`
	AccessPoint APConfig       `yaml:"access_point"`
	Portal      PortalConfig   `yaml:"portal"`
	Sensors     SensorsConfig  `yaml:"sensors"`
	Button      ButtonConfig   `yaml:"button"`
	Uplink      UplinkConfig   `yaml:"uplink"`
	Store       StoreConfig    `yaml:"store"`
	InfluxDB    InfluxDBConfig `yaml:"influxdb"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// NodeConfig holds the node's top-level cadence and site settings
type NodeConfig struct {
	DataInterval      time.Duration `yaml:"data_interval" validate:"min=1s,max=1h"`
	SuperviseInterval time.Duration `yaml:"supervise_interval" validate:"min=100ms,max=1m"`
	StationAltitudeM  float64       `yaml:"station_altitude_m" validate:"gte=-430,lte=9000"`
}

// LinkConfig holds the bounded connection attempt settings
type LinkConfig struct {
	ConnectTimeout   time.Duration `yaml:"connect_timeout" validate:"min=1s,max=5m"`
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout" validate:"min=1s,max=5m"`
	PollInterval     time.Duration `yaml:"poll_interval" validate:"min=10ms,max=5s"`
	ScanTimeout      time.Duration `yaml:"scan_timeout" validate:"min=1s,max=1m"`
}

// APConfig holds the provisioning access point settings
type APConfig struct {
	SSID     string `yaml:"ssid" validate:"required"`
	Password string `yaml:"password" validate:"omitempty,min=8"`
	MDNSName string `yaml:"mdns_name" validate:"required,hostname"`
}

// PortalConfig holds the provisioning portal settings
type PortalConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// SensorsConfig groups the sensor calibration settings
type SensorsConfig struct {
	Wind  WindConfig  `yaml:"wind"`
	Rain  RainConfig  `yaml:"rain"`
	Light LightConfig `yaml:"light"`
}

// WindConfig holds the wind sampler settings
type WindConfig struct {
	Interval   time.Duration `yaml:"interval" validate:"min=10ms,max=10s"`
	RawMax     int           `yaml:"raw_max" validate:"min=1"`
	MaxSpeedMS float64       `yaml:"max_speed_ms" validate:"gt=0"`
}

// RainConfig holds the rain input thresholds. Lower raw values mean more
// moisture, so the wet threshold sits below the dry one.
type RainConfig struct {
	WetThreshold int `yaml:"wet_threshold" validate:"min=0"`
	DryThreshold int `yaml:"dry_threshold" validate:"min=0"`
}

// LightConfig holds the light input thresholds
type LightConfig struct {
	DarkThreshold   int `yaml:"dark_threshold" validate:"min=0"`
	BrightThreshold int `yaml:"bright_threshold" validate:"min=0"`
}

// ButtonConfig holds the operator reset input settings
type ButtonConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=1ms,max=1s"`
	Debounce     time.Duration `yaml:"debounce" validate:"min=1ms,max=1s"`
	TriggerFile  string        `yaml:"trigger_file" validate:"required"`
}

// UplinkConfig holds the upload timeout settings
type UplinkConfig struct {
	ConnectTimeout  time.Duration `yaml:"connect_timeout" validate:"min=100ms,max=1m"`
	ResponseTimeout time.Duration `yaml:"response_timeout" validate:"min=100ms,max=1m"`
}

// StoreConfig holds the persistent configuration store settings
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// InfluxDBConfig holds the optional local readings mirror settings. The
// mirror is enabled only when a URL is configured.
type InfluxDBConfig struct {
	URL          string `yaml:"url" validate:"omitempty,url"`
	Token        string `yaml:"token" validate:"required_with=URL"`
	Organization string `yaml:"organization" validate:"required_with=URL"`
	Bucket       string `yaml:"bucket" validate:"required_with=URL"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error fatal panic"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. A missing file is not an error: the node then runs
// entirely on defaults, the way the firmware runs on config.h constants.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if url := os.Getenv("INFLUXDB_URL"); url != "" {
		c.InfluxDB.URL = url
	}
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		c.InfluxDB.Token = token
	}
	if org := os.Getenv("INFLUXDB_ORG"); org != "" {
		c.InfluxDB.Organization = org
	}
	if bucket := os.Getenv("INFLUXDB_BUCKET"); bucket != "" {
		c.InfluxDB.Bucket = bucket
	}
	if interval := os.Getenv("DATA_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Node.DataInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse DATA_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Node.DataInterval == 0 {
		c.Node.DataInterval = 5 * time.Second
	}
	if c.Node.SuperviseInterval == 0 {
		c.Node.SuperviseInterval = 1 * time.Second
	}
	if c.Node.StationAltitudeM == 0 {
		c.Node.StationAltitudeM = 262.0
	}
	if c.Link.ConnectTimeout == 0 {
		c.Link.ConnectTimeout = 15 * time.Second
	}
	if c.Link.ReconnectTimeout == 0 {
		c.Link.ReconnectTimeout = 10 * time.Second
	}
	if c.Link.PollInterval == 0 {
		c.Link.PollInterval = 250 * time.Millisecond
	}
	if c.Link.ScanTimeout == 0 {
		c.Link.ScanTimeout = 10 * time.Second
	}
	if c.AccessPoint.SSID == "" {
		c.AccessPoint.SSID = "WeatherNode_Config_AP"
	}
	if c.AccessPoint.Password == "" {
		c.AccessPoint.Password = "12345678"
	}
	if c.AccessPoint.MDNSName == "" {
		c.AccessPoint.MDNSName = "weather-node-config"
	}
	if c.Portal.Addr == "" {
		c.Portal.Addr = ":8080"
	}
	if c.Sensors.Wind.Interval == 0 {
		c.Sensors.Wind.Interval = 100 * time.Millisecond
	}
	if c.Sensors.Wind.RawMax == 0 {
		c.Sensors.Wind.RawMax = 1023
	}
	if c.Sensors.Wind.MaxSpeedMS == 0 {
		c.Sensors.Wind.MaxSpeedMS = 32.40
	}
	if c.Sensors.Rain.WetThreshold == 0 {
		c.Sensors.Rain.WetThreshold = 500
	}
	if c.Sensors.Rain.DryThreshold == 0 {
		c.Sensors.Rain.DryThreshold = 4000
	}
	if c.Sensors.Light.DarkThreshold == 0 {
		c.Sensors.Light.DarkThreshold = 500
	}
	if c.Sensors.Light.BrightThreshold == 0 {
		c.Sensors.Light.BrightThreshold = 3000
	}
	if c.Button.PollInterval == 0 {
		c.Button.PollInterval = 20 * time.Millisecond
	}
	if c.Button.Debounce == 0 {
		c.Button.Debounce = 50 * time.Millisecond
	}
	if c.Button.TriggerFile == "" {
		c.Button.TriggerFile = "/run/weather-node/reset"
	}
	if c.Uplink.ConnectTimeout == 0 {
		c.Uplink.ConnectTimeout = 5 * time.Second
	}
	if c.Uplink.ResponseTimeout == 0 {
		c.Uplink.ResponseTimeout = 5 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "/var/lib/weather-node/config.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Sensors.Rain.WetThreshold >= c.Sensors.Rain.DryThreshold {
		return fmt.Errorf("sensors.rain.wet_threshold must be below dry_threshold")
	}
	if c.Sensors.Light.DarkThreshold >= c.Sensors.Light.BrightThreshold {
		return fmt.Errorf("sensors.light.dark_threshold must be below bright_threshold")
	}
	if c.Node.DataInterval <= c.Sensors.Wind.Interval {
		return fmt.Errorf("node.data_interval must exceed sensors.wind.interval")
	}

	return nil
}
