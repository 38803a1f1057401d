// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package hal

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/interfaces"
)

// SimEnvSensor is a simulated temperature/pressure/humidity sensor. It
// drifts slowly around a baseline the way a real station does over a few
// minutes.
type SimEnvSensor struct {
	mu   sync.Mutex
	rng  *rand.Rand
	fail bool

	temperature float64
	pressure    float64
	humidity    float64
}

// NewSimEnvSensor creates a simulated environmental sensor. failInit makes
// Init report a failure, which leaves the dependent telemetry fields
// permanently absent.
func NewSimEnvSensor(seed int64, failInit bool) *SimEnvSensor {
	return &SimEnvSensor{
		rng:         rand.New(rand.NewSource(seed)),
		fail:        failInit,
		temperature: 15.0,
		pressure:    1000.0,
		humidity:    55.0,
	}
}

// Init performs the one-time sensor initialization.
func (s *SimEnvSensor) Init() error {
	if s.fail {
		return errors.NewSensorError("env", "init", fmt.Errorf("sensor not responding"))
	}
	return nil
}

// Read returns the next simulated environmental reading.
func (s *SimEnvSensor) Read() (interfaces.EnvReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temperature += s.rng.Float64()*0.2 - 0.1
	s.pressure += s.rng.Float64()*0.4 - 0.2
	s.humidity += s.rng.Float64()*1.0 - 0.5
	if s.humidity < 0 {
		s.humidity = 0
	}
	if s.humidity > 100 {
		s.humidity = 100
	}

	return interfaces.EnvReading{
		Temperature: s.temperature,
		Pressure:    s.pressure,
		Humidity:    s.humidity,
	}, nil
}
