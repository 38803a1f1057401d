// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the weather station node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoleTransitions counts role state machine transitions by edge
	RoleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weathernode_role_transitions_total",
		Help: "Total number of role state machine transitions",
	}, []string{"from", "to"})

	// LinkUp reports whether the station link is currently established
	LinkUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weathernode_link_up",
		Help: "Whether the station link is currently established (1) or not (0)",
	})

	// ConnectAttempts counts station connection and reconnection attempts
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weathernode_connect_attempts_total",
		Help: "Total number of station connection attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	// ConnectDuration tracks how long station connection attempts take
	ConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weathernode_connect_duration_seconds",
		Help:    "Duration of station connection attempts in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RegistrationsTotal counts device registration calls by outcome
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weathernode_registrations_total",
		Help: "Total number of device registration calls by outcome",
	}, []string{"outcome"})

	// TelemetrySendsTotal counts telemetry uploads that completed with 2xx
	TelemetrySendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_telemetry_sends_total",
		Help: "Total number of successful telemetry uploads",
	})

	// TelemetrySendErrors counts telemetry uploads that failed
	TelemetrySendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_telemetry_send_errors_total",
		Help: "Total number of failed telemetry uploads",
	})

	// TelemetryCyclesSkipped counts cycles skipped because the link was down
	TelemetryCyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_telemetry_cycles_skipped_total",
		Help: "Total number of telemetry cycles skipped while unconfigured or offline",
	})

	// SendDuration tracks how long a telemetry upload takes
	SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weathernode_telemetry_send_duration_seconds",
		Help:    "Duration of telemetry uploads in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WindSamplesTotal counts wind speed samples accumulated
	WindSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_wind_samples_total",
		Help: "Total number of wind speed samples accumulated",
	})

	// WindMeanSpeed reports the mean wind speed of the last drained interval
	WindMeanSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weathernode_wind_mean_speed_ms",
		Help: "Mean wind speed of the last drained interval in m/s",
	})

	// PortalRequests counts provisioning portal requests by path
	PortalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weathernode_portal_requests_total",
		Help: "Total number of provisioning portal requests by path",
	}, []string{"path"})

	// MirrorWritesTotal counts readings mirrored to the local time-series store
	MirrorWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_mirror_writes_total",
		Help: "Total number of readings mirrored to the local time-series store",
	})

	// MirrorWriteErrors counts failed mirror writes
	MirrorWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weathernode_mirror_write_errors_total",
		Help: "Total number of failed mirror writes",
	})
)
