// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wxnode/weather-node/app"
	"github.com/wxnode/weather-node/config"
	"github.com/wxnode/weather-node/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	metricsPort := flag.String("metrics-port", "9090", "Port for Prometheus metrics endpoint")
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	validateConfig := flag.Bool("validate-config", false, "Validate configuration file and exit")
	flag.Parse()

	if *healthCheck {
		os.Exit(performHealthCheck(*metricsPort))
	}

	if *validateConfig {
		os.Exit(performConfigValidation(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Initialize("error")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.Logging.Level)

	logger.Info().Msg("Starting weather node")
	logger.Info().Dur("data_interval", cfg.Node.DataInterval).
		Float64("station_altitude_m", cfg.Node.StationAltitudeM).
		Str("store", cfg.Store.Path).
		Msg("Configuration loaded")

	application, err := app.New(cfg, *metricsPort)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create application")
	}

	configWatcher := config.NewWatcher(*configPath, application.ConfigChan())

	setupDebugSignalHandlers(application)

	if err := application.Run(configWatcher); err != nil {
		logger.Error().Err(err).Msg("Node stopped on unrecoverable fault")
		os.Exit(1)
	}
}

// performHealthCheck probes the running node's health endpoint and
// returns an exit code, for use as a service liveness probe
func performHealthCheck(metricsPort string) int {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + metricsPort + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Println("Health check passed")
	return 0
}

// performConfigValidation validates the configuration file and returns exit code
func performConfigValidation(configPath string) int {
	logger.Initialize("info")
	logger.Info().Str("path", configPath).Msg("Validating configuration file")

	if data, err := os.ReadFile(configPath); err == nil {
		if err := config.ValidateFile(data); err != nil {
			logger.Error().Err(err).Msg("Configuration schema validation failed")
			fmt.Fprintf(os.Stderr, "\nConfiguration validation FAILED\n")
			return 1
		}
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Could not read config file: %v\n", err)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Configuration validation failed")
		fmt.Fprintf(os.Stderr, "\nConfiguration validation FAILED\nError: %v\n\n", err)
		return 1
	}

	fmt.Println("\nConfiguration validation PASSED")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Data Interval: %s\n", cfg.Node.DataInterval)
	fmt.Printf("  Station Altitude: %.1f m\n", cfg.Node.StationAltitudeM)
	fmt.Printf("  Connect Timeout: %s\n", cfg.Link.ConnectTimeout)
	fmt.Printf("  Reconnect Timeout: %s\n", cfg.Link.ReconnectTimeout)
	fmt.Printf("  Access Point SSID: %s\n", cfg.AccessPoint.SSID)
	fmt.Printf("  Portal Address: %s\n", cfg.Portal.Addr)
	fmt.Printf("  Store Path: %s\n", cfg.Store.Path)
	fmt.Printf("  Log Level: %s\n", cfg.Logging.Level)

	if cfg.InfluxDB.URL != "" {
		fmt.Println("  Readings Mirror: Enabled")
		fmt.Printf("  InfluxDB URL: %s\n", cfg.InfluxDB.URL)
		fmt.Printf("  InfluxDB Bucket: %s\n", cfg.InfluxDB.Bucket)
	} else {
		fmt.Println("  Readings Mirror: Disabled")
	}

	fmt.Println("\nAll validation checks passed. Configuration is ready for use.")
	return 0
}
