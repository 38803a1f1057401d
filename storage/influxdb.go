// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package storage provides an optional local time-series mirror of the
// node's telemetry readings. The mirror is a diagnostic convenience: the
// upstream upload is authoritative and mirror failures never affect it.
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"
	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/telemetry"
)

const (
	healthTimeout   = 5 * time.Second
	breakerMaxFails = 5
	breakerOpenFor  = 30 * time.Second
	measurementName = "weather"
)

// InfluxDBMirror writes each telemetry reading as a point in a local
// InfluxDB bucket. Writes run through a circuit breaker so a dead local
// store cannot slow the telemetry cycle down every tick.
type InfluxDBMirror struct {
	client     influxdb2.Client
	writeAPI   api.WriteAPIBlocking
	hardwareID string
	breaker    *gobreaker.CircuitBreaker
}

// NewInfluxDBMirror creates a mirror and verifies the connection.
func NewInfluxDBMirror(url, token, org, bucket, hardwareID string) (*InfluxDBMirror, error) {
	client := influxdb2.NewClient(url, token)

	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", message)
	}

	logger.Info().Str("url", url).Str("bucket", bucket).Msg("Readings mirror connected")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influxdb-mirror",
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("Mirror circuit breaker state changed")
		},
	})

	return &InfluxDBMirror{
		client:     client,
		writeAPI:   client.WriteAPIBlocking(org, bucket),
		hardwareID: hardwareID,
		breaker:    breaker,
	}, nil
}

// WriteReading mirrors one telemetry payload.
func (m *InfluxDBMirror) WriteReading(ctx context.Context, at time.Time, payload *telemetry.Payload) error {
	fields := map[string]interface{}{
		"wind_speed":    payload.WindSpeed,
		"precipitation": payload.Precipitation,
	}
	if payload.Temperature != nil {
		fields["temperature"] = *payload.Temperature
	}
	if payload.Pressure != nil {
		fields["pressure"] = *payload.Pressure
	}
	if payload.Humidity != nil {
		fields["humidity"] = *payload.Humidity
	}
	if payload.Sunshine != nil {
		fields["sunshine"] = *payload.Sunshine
	}

	point := influxdb2.NewPoint(measurementName,
		map[string]string{"device_id": m.hardwareID},
		fields, at)

	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.writeAPI.WritePoint(ctx, point)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.ErrMirrorUnavailable
	}
	return err
}

// Health checks the mirror backend.
func (m *InfluxDBMirror) Health(ctx context.Context) error {
	health, err := m.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "pass" {
		return fmt.Errorf("InfluxDB unhealthy: %s", health.Status)
	}
	return nil
}

// Close shuts the mirror connection down.
func (m *InfluxDBMirror) Close() {
	m.client.Close()
}
