// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package app wires the weather node together: the persistent store, the
// radio, the role controller, the wind sampler, the telemetry cycle, the
// reset watcher and the metrics server, plus graceful shutdown and config
// hot reload.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wxnode/weather-node/button"
	"github.com/wxnode/weather-node/config"
	"github.com/wxnode/weather-node/hal"
	"github.com/wxnode/weather-node/netmgr"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/portal"
	"github.com/wxnode/weather-node/status"
	"github.com/wxnode/weather-node/storage"
	"github.com/wxnode/weather-node/store"
	"github.com/wxnode/weather-node/telemetry"
	"github.com/wxnode/weather-node/uplink"
	"github.com/wxnode/weather-node/wind"
	"golang.org/x/time/rate"
)

const (
	signalChannelSize     = 1
	readinessCheckTimeout = 2 * time.Second
	shutdownTimeout       = 5 * time.Second
	resetContextTimeout   = 30 * time.Second
)

// App represents the weather node application
type App struct {
	cfg         *config.Config
	metricsPort string
	server      *http.Server

	store      *store.FileStore
	radio      interfaces.Radio
	led        *status.LED
	controller *netmgr.Controller
	windAcc    *wind.Accumulator
	sampler    *wind.Sampler
	cycle      *telemetry.Cycle
	resetWatch *button.Watcher
	mirror     *storage.InfluxDBMirror

	configChan chan *config.Config
	fatal      chan error
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a new application instance
func New(cfg *config.Config, metricsPort string) (*App, error) {
	a := &App{
		cfg:         cfg,
		metricsPort: metricsPort,
		configChan:  make(chan *config.Config),
		fatal:       make(chan error, 1),
	}

	var err error
	a.store, err = store.NewFileStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config store: %w", err)
	}

	seed := time.Now().UnixNano()
	a.radio = hal.NewSimRadio(seed, 2*time.Second, 3*time.Second)
	a.led = status.NewLED()
	a.windAcc = wind.NewAccumulator()

	registrars := func(serverAddress string) netmgr.Registrar {
		return uplink.NewClient(serverAddress, a.radio.HardwareAddr(),
			cfg.Uplink.ConnectTimeout, cfg.Uplink.ResponseTimeout)
	}
	newPortal := func(c *netmgr.Controller) netmgr.Portal {
		return portal.New(portal.Config{
			Addr:     cfg.Portal.Addr,
			MDNSName: cfg.AccessPoint.MDNSName,
			MDNSPort: portalPort(cfg.Portal.Addr),
			OnFatal:  a.reportFatal,
		}, c)
	}

	a.controller = netmgr.NewController(netmgr.Config{
		APSSID:           cfg.AccessPoint.SSID,
		APPassword:       cfg.AccessPoint.Password,
		ConnectTimeout:   cfg.Link.ConnectTimeout,
		ReconnectTimeout: cfg.Link.ReconnectTimeout,
		PollInterval:     cfg.Link.PollInterval,
		ScanTimeout:      cfg.Link.ScanTimeout,
	}, a.store, a.radio, a.led, registrars, newPortal)

	a.sampler = wind.NewSampler(
		hal.NewSimAnalog(seed+1, 200, 150, cfg.Sensors.Wind.RawMax),
		a.windAcc, cfg.Sensors.Wind.Interval, cfg.Sensors.Wind.RawMax, cfg.Sensors.Wind.MaxSpeedMS)

	var mirror telemetry.Mirror
	if cfg.InfluxDB.URL != "" {
		m, mirrorErr := storage.NewInfluxDBMirror(
			cfg.InfluxDB.URL, cfg.InfluxDB.Token,
			cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket,
			a.radio.HardwareAddr())
		if mirrorErr != nil {
			logger.Warn().Err(mirrorErr).Msg("Local readings mirror unavailable, continuing without it")
		} else {
			a.mirror = m
			mirror = m
			logger.Info().Str("url", cfg.InfluxDB.URL).Msg("Local readings mirror enabled")
		}
	}

	newSender := func(serverAddress string) telemetry.Sender {
		return uplink.NewClient(serverAddress, a.radio.HardwareAddr(),
			cfg.Uplink.ConnectTimeout, cfg.Uplink.ResponseTimeout)
	}
	a.cycle = telemetry.NewCycle(telemetry.Config{
		Interval:        cfg.Node.DataInterval,
		StationAltitude: cfg.Node.StationAltitudeM,
		RainWet:         float64(cfg.Sensors.Rain.WetThreshold),
		RainDry:         float64(cfg.Sensors.Rain.DryThreshold),
		LightBright:     float64(cfg.Sensors.Light.BrightThreshold),
		LightDark:       float64(cfg.Sensors.Light.DarkThreshold),
	}, a.windAcc,
		hal.NewSimAnalog(seed+2, 2200, 800, 4095),
		hal.NewSimAnalog(seed+3, 1800, 900, 4095),
		hal.NewSimEnvSensor(seed+4, false),
		a.led, newSender, a.controller.Events(), mirror, a.radio.Connected)

	a.resetWatch = button.NewWatcher(
		hal.NewFileButton(cfg.Button.TriggerFile),
		cfg.Button.PollInterval, cfg.Button.Debounce,
		a.onResetPress)

	a.server = a.buildMetricsServer()

	return a, nil
}

// Run starts the application and blocks until shutdown. It returns a
// non-nil error when the node dies of an unrecoverable fault, so the
// process exits non-zero and the service supervisor restarts it.
func (a *App) Run(configWatcher *config.Watcher) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	a.cancel = cancel
	defer a.cancel()

	a.startMetricsServer()
	a.setupSignalHandler()

	configWatcher.Start(ctx)
	defer configWatcher.Stop()
	a.startConfigListener()

	if err := a.controller.Boot(ctx); err != nil {
		a.performGracefulShutdown()
		a.wg.Wait()
		return fmt.Errorf("boot failed: %w", err)
	}

	a.startWorker("wind sampler", a.sampler.Run)
	a.startWorker("telemetry cycle", a.cycle.Run)
	a.startWorker("reset watcher", a.resetWatch.Run)
	a.startSupervisor()

	var fatalErr error
	select {
	case <-ctx.Done():
	case fatalErr = <-a.fatal:
		logger.Error().Err(fatalErr).Msg("Unrecoverable fault, shutting down")
		a.performGracefulShutdown()
	}

	logger.Info().Msg("Waiting for goroutines to finish...")
	a.wg.Wait()
	if a.mirror != nil {
		a.mirror.Close()
	}
	logger.Info().Msg("All goroutines finished, exiting")
	return fatalErr
}

// startWorker runs a context-bound worker goroutine under the app's wait group
func (a *App) startWorker(name string, run func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		run(a.ctx)
		logger.Info().Str("worker", name).Msg("Worker stopped")
	}()
}

// startSupervisor runs the periodic link supervision loop. While the node
// is configured it verifies the link each tick and lets the controller
// reconnect or demote to provisioning.
func (a *App) startSupervisor() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.Node.SuperviseInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				if err := a.controller.CheckLink(a.ctx); err != nil {
					logger.Warn().Err(err).Msg("Link supervision reported an error")
				}
			}
		}
	}()
}

// onResetPress handles a debounced operator reset press
func (a *App) onResetPress(ctx context.Context) {
	resetCtx, resetCancel := context.WithTimeout(ctx, resetContextTimeout)
	defer resetCancel()
	if err := a.controller.ForceReprovision(resetCtx); err != nil {
		a.reportFatal(err)
	}
}

// reportFatal records an unrecoverable fault. Only the first fault is
// kept; the rest are consequences of the node already going down.
func (a *App) reportFatal(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

// startConfigListener applies reloaded configurations to the running node
func (a *App) startConfigListener() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				return
			case newCfg := <-a.configChan:
				a.UpdateConfig(newCfg)
			}
		}
	}()
}

// UpdateConfig applies the dynamic subset of a reloaded configuration.
// Structural settings (store path, portal address, sensor wiring) need a
// restart and keep their boot-time values.
func (a *App) UpdateConfig(newCfg *config.Config) {
	a.cfg = newCfg
	logger.SetLevel(newCfg.Logging.Level)
	a.cycle.UpdateInterval(newCfg.Node.DataInterval)
	logger.Info().
		Dur("data_interval", newCfg.Node.DataInterval).
		Str("log_level", newCfg.Logging.Level).
		Msg("Applied reloaded configuration")
}

// ConfigChan is the channel the config watcher publishes reloads to
func (a *App) ConfigChan() chan *config.Config {
	return a.configChan
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func (a *App) setupSignalHandler() {
	sigChan := make(chan os.Signal, signalChannelSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		a.performGracefulShutdown()
	}()
}

// performGracefulShutdown handles graceful shutdown of all components
func (a *App) performGracefulShutdown() {
	logger.Info().Msg("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Metrics server shutdown error")
	} else {
		logger.Info().Msg("Metrics server stopped")
	}

	a.controller.Shutdown(shutdownCtx)
	a.cancel()
}

// buildMetricsServer builds the localhost-only metrics and health server
func (a *App) buildMetricsServer() *http.Server {
	healthLimiter := rate.NewLimiter(10, 20)
	readyLimiter := rate.NewLimiter(10, 20)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", rateLimitMiddleware(healthLimiter, healthCheckHandler))
	mux.HandleFunc("/ready", rateLimitMiddleware(readyLimiter, func(w http.ResponseWriter, r *http.Request) {
		a.readinessCheckHandler(w, r)
	}))

	return &http.Server{
		Addr:    "localhost:" + a.metricsPort,
		Handler: mux,
	}
}

// startMetricsServer starts the HTTP server for metrics and health checks
func (a *App) startMetricsServer() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Info().Str("addr", a.server.Addr).Msg("Starting metrics and health check server (localhost only)")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded for health endpoint")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// healthCheckHandler handles health check requests
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("OK")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write health check response")
	}
}

// readinessCheckHandler reports ready once the node has a role. When a
// readings mirror is configured its health gates readiness too.
func (a *App) readinessCheckHandler(w http.ResponseWriter, _ *http.Request) {
	if a.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), readinessCheckTimeout)
		defer cancel()
		if err := a.mirror.Health(ctx); err != nil {
			logger.Warn().Err(err).Msg("Readiness check failed: readings mirror unhealthy")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("NOT READY: readings mirror unhealthy")); writeErr != nil {
				logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
			}
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("READY")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
	}
}

// Role reports the controller's current role, used by diagnostics
func (a *App) Role() interfaces.Role {
	return a.controller.Role()
}

// DumpApplicationState dumps current application state to logs
func (a *App) DumpApplicationState() {
	logger.Info().Msg("=== APPLICATION STATE DUMP (SIGUSR1) ===")

	creds := a.controller.Credentials()
	logger.Info().
		Str("role", a.controller.Role().String()).
		Str("status", a.led.Current().String()).
		Bool("link_up", a.radio.Connected()).
		Str("network", creds.SSID).
		Str("server", creds.ServerAddress).
		Msg("Node state")

	sum, count := a.windAcc.Snapshot()
	logger.Info().
		Float64("wind_sum_ms", sum).
		Int("wind_samples", count).
		Msg("Wind accumulator state")

	scanStatus, networks := a.controller.ScanResults()
	logger.Info().
		Int("scan_status", int(scanStatus)).
		Int("networks", len(networks)).
		Msg("Network scan state")

	logger.Info().Msg("=== END STATE DUMP ===")
}

// DumpGoroutineStackTraces dumps all goroutine stack traces to logs
func DumpGoroutineStackTraces() {
	logger.Info().Msg("=== GOROUTINE STACK TRACES (SIGUSR2) ===")
	logger.Info().Int("num_goroutines", runtime.NumGoroutine()).Msg("Current goroutine count")

	buf := make([]byte, 1024*1024) // 1MB buffer
	stackLen := runtime.Stack(buf, true)
	logger.Info().Str("stack_traces", string(buf[:stackLen])).Msg("Full stack trace")

	logger.Info().Msg("=== END STACK TRACES ===")
}

// portalPort extracts the numeric port from a listen address, for the
// mDNS advertisement. Defaults to 80 when the address has no usable port.
func portalPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 80
	}
	return port
}
