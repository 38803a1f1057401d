// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package wind

import (
	"context"
	"time"

	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/pkg/metrics"
	"github.com/wxnode/weather-node/pkg/scale"
)

// Sampler reads the wind analog input at a fixed interval, maps the raw
// value linearly onto [0, MaxSpeed] and feeds the accumulator. It runs
// for the life of the process, independent of the telemetry cycle.
type Sampler struct {
	input    interfaces.AnalogInput
	acc      *Accumulator
	interval time.Duration
	rawMax   float64
	maxSpeed float64
}

// NewSampler creates a wind sampler.
func NewSampler(input interfaces.AnalogInput, acc *Accumulator, interval time.Duration, rawMax int, maxSpeed float64) *Sampler {
	return &Sampler{
		input:    input,
		acc:      acc,
		interval: interval,
		rawMax:   float64(rawMax),
		maxSpeed: maxSpeed,
	}
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	log := logger.Component("wind")
	log.Info().Dur("interval", s.interval).Float64("max_speed_ms", s.maxSpeed).
		Msg("Wind sampler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Wind sampler stopped")
			return
		case <-ticker.C:
			raw, err := s.input.Read()
			if err != nil {
				log.Warn().Err(err).Msg("Wind input read failed, sample dropped")
				continue
			}
			s.acc.Add(s.mapRaw(raw))
			metrics.WindSamplesTotal.Inc()
		}
	}
}

// mapRaw converts a raw converter value to a wind speed in m/s.
func (s *Sampler) mapRaw(raw int) float64 {
	return scale.MapClamped(float64(raw), 0, s.rawMax, 0, s.maxSpeed)
}
