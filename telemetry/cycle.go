// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package telemetry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wxnode/weather-node/netmgr"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/pkg/metrics"
	"github.com/wxnode/weather-node/pkg/scale"
	"github.com/wxnode/weather-node/status"
)

// Sender uploads one payload. Implemented by uplink.Client.
type Sender interface {
	SendReading(ctx context.Context, payload *Payload) error
}

// SenderFactory builds a sender aimed at the given server address. The
// cycle rebuilds its sender on every link-up event so a reconfigured
// server address takes effect immediately.
type SenderFactory func(serverAddress string) Sender

// Mirror optionally records each reading locally (time-series store).
type Mirror interface {
	WriteReading(ctx context.Context, at time.Time, payload *Payload) error
}

// Config carries the cycle's tunables. Thresholds are raw converter
// values; the rain mapping is inverted (wet threshold is the low end).
type Config struct {
	Interval        time.Duration
	StationAltitude float64 // meters above sea level
	RainWet         float64 // raw value meaning 100% precipitation
	RainDry         float64 // raw value meaning 0% precipitation
	LightBright     float64 // raw value meaning 100% sunshine
	LightDark       float64 // raw value meaning 0% sunshine
}

// Cycle is the periodic telemetry job. Each tick it either performs one
// full read-compute-send pass or, when the device is not configured and
// linked, skips entirely: no partial sends, no sensor reads.
type Cycle struct {
	cfg       Config
	windAcc   Drainer
	rain      interfaces.AnalogInput
	light     interfaces.AnalogInput
	env       interfaces.EnvSensor
	signal    status.Signal
	newSender SenderFactory
	events    <-chan netmgr.LinkEvent
	mirror    Mirror

	// linkCheck reports the instantaneous link state, used only to pick
	// the error status after a failed send. Falls back to the event-driven
	// flag when nil.
	linkCheck func() bool

	mu       sync.Mutex
	interval time.Duration

	linkUp bool
	sender Sender
	envOK  bool
}

// Drainer is the drain side of the wind accumulator.
type Drainer interface {
	Drain() (mean float64, samples int)
}

// NewCycle creates a telemetry cycle. mirror may be nil.
func NewCycle(cfg Config, windAcc Drainer, rain, light interfaces.AnalogInput, env interfaces.EnvSensor, signal status.Signal, newSender SenderFactory, events <-chan netmgr.LinkEvent, mirror Mirror, linkCheck func() bool) *Cycle {
	return &Cycle{
		cfg:       cfg,
		windAcc:   windAcc,
		rain:      rain,
		light:     light,
		env:       env,
		signal:    signal,
		newSender: newSender,
		events:    events,
		mirror:    mirror,
		linkCheck: linkCheck,
		interval:  cfg.Interval,
	}
}

// UpdateInterval changes the cycle period; applied on the next tick.
func (c *Cycle) UpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// Run executes the cycle until ctx is done. The environmental sensor is
// initialized exactly once here; if that fails, its three fields stay
// absent for the life of the task.
func (c *Cycle) Run(ctx context.Context) {
	log := logger.Component("telemetry")

	if err := c.env.Init(); err != nil {
		log.Error().Err(err).Msg("Environmental sensor init failed, fields will be absent")
		c.envOK = false
	} else {
		log.Info().Msg("Environmental sensor initialized")
		c.envOK = true
	}

	c.mu.Lock()
	interval := c.interval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Dur("interval", interval).Msg("Telemetry cycle started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Telemetry cycle stopped")
			return
		case ev := <-c.events:
			c.applyLinkEvent(ev)
		case <-ticker.C:
			c.runOnce(ctx)

			c.mu.Lock()
			if c.interval != interval {
				interval = c.interval
				ticker.Reset(interval)
				log.Info().Dur("interval", interval).Msg("Telemetry interval updated")
			}
			c.mu.Unlock()
		}
	}
}

// applyLinkEvent tracks the controller's link state so the cycle never
// has to poll shared role state.
func (c *Cycle) applyLinkEvent(ev netmgr.LinkEvent) {
	if ev.Up {
		c.linkUp = true
		c.sender = c.newSender(ev.Creds.ServerAddress)
		return
	}
	c.linkUp = false
}

// runOnce performs one read-compute-send pass, or skips it when the
// device is not linked.
func (c *Cycle) runOnce(ctx context.Context) {
	if !c.linkUp || c.sender == nil {
		logger.Debug().Msg("Skipping telemetry cycle, not configured or link down")
		metrics.TelemetryCyclesSkipped.Inc()
		return
	}

	payload := c.buildPayload()

	start := time.Now()
	err := c.sender.SendReading(ctx, payload)
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	c.interpretOutcome(err)
	c.mirrorReading(ctx, payload)
}

// buildPayload reads all sensors and assembles the upload body with the
// fixed per-field precision.
func (c *Cycle) buildPayload() *Payload {
	payload := &Payload{}

	// Rain input, inverted: lower raw value means wetter.
	if raw, err := c.rain.Read(); err != nil {
		logger.Warn().Err(err).Msg("Rain input read failed, reporting 0%")
	} else {
		payload.Precipitation = round4(scale.MapClamped(float64(raw), c.cfg.RainWet, c.cfg.RainDry, 100, 0))
	}

	// Interval mean wind speed; transmitted in km/h.
	mean, samples := c.windAcc.Drain()
	metrics.WindMeanSpeed.Set(mean)
	payload.WindSpeed = round2(mean * 3.6)
	logger.Debug().Float64("mean_ms", mean).Int("samples", samples).Msg("Wind accumulator drained")

	// Ambient light; an invalid reading serializes as an explicit null.
	if raw, err := c.light.Read(); err != nil {
		logger.Warn().Err(err).Msg("Light input read failed, reporting null")
	} else {
		payload.Sunshine = ptr(math.Round(scale.MapClamped(float64(raw), c.cfg.LightBright, c.cfg.LightDark, 100, 0)))
	}

	if c.envOK {
		c.fillEnvFields(payload)
	}

	return payload
}

// fillEnvFields reads the environmental sensor and derives the best-effort
// pressure. NaN readings leave the corresponding fields absent.
func (c *Cycle) fillEnvFields(payload *Payload) {
	reading, err := c.env.Read()
	if err != nil {
		logger.Warn().Err(err).Msg("Environmental sensor read failed, fields absent this cycle")
		return
	}

	if !math.IsNaN(reading.Temperature) {
		payload.Temperature = ptr(round2(reading.Temperature))
	}
	if !math.IsNaN(reading.Humidity) {
		payload.Humidity = ptr(round4(reading.Humidity / 100.0))
	}

	if msl, ok := ReduceToMSL(reading.Pressure, reading.Temperature, c.cfg.StationAltitude); ok {
		payload.Pressure = ptr(round2(msl))
	} else if !math.IsNaN(reading.Pressure) {
		// Derived value unavailable, fall back to raw station pressure.
		payload.Pressure = ptr(round2(reading.Pressure))
	}
}

// interpretOutcome maps the transmission result onto the status signal.
// Transmission failures never touch the device role; only the supervisory
// link check may demote it.
func (c *Cycle) interpretOutcome(err error) {
	if err == nil {
		metrics.TelemetrySendsTotal.Inc()
		c.signal.Set(status.Connected)
		return
	}

	metrics.TelemetrySendErrors.Inc()
	if c.linkEstablished() {
		// Recoverable: the next cycle retries.
		logger.Warn().Err(err).Msg("Telemetry upload failed, will retry next cycle")
		c.signal.Pulse(status.Error)
		return
	}
	logger.Warn().Err(err).Msg("Telemetry upload failed, link down")
	c.signal.Set(status.Error)
}

// linkEstablished reports the freshest available link state.
func (c *Cycle) linkEstablished() bool {
	if c.linkCheck != nil {
		return c.linkCheck()
	}
	return c.linkUp
}

// mirrorReading records the reading in the optional local mirror.
func (c *Cycle) mirrorReading(ctx context.Context, payload *Payload) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.WriteReading(ctx, time.Now(), payload); err != nil {
		logger.Warn().Err(err).Msg("Mirroring reading failed")
		metrics.MirrorWriteErrors.Inc()
		return
	}
	metrics.MirrorWritesTotal.Inc()
}
