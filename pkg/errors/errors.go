// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the weather station node.
//
// Each error type carries the failed operation and the underlying cause so
// callers can decide whether to absorb the failure locally (sensor and
// transmission errors), escalate it through the role controller (link
// errors), or treat it as fatal (access-point startup).
package errors

import (
	"errors"
	"fmt"
)

// StoreError represents a failure of the persistent configuration store.
// Store errors are never fatal: reads fall back to in-memory defaults and
// writes are skipped.
type StoreError struct {
	Op  string // Operation being performed (e.g., "load", "save", "clear")
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("config store %s failed", e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError checks if an error is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// LinkError represents a failure of the station link: a connect timeout, a
// reconnect timeout, or a mid-operation disconnect. Link errors escalate
// through the role controller's state machine.
type LinkError struct {
	Op   string // Operation being performed (e.g., "connect", "reconnect")
	SSID string // Network involved (if applicable)
	Err  error  // Underlying error
}

func (e *LinkError) Error() string {
	if e.SSID != "" {
		return fmt.Sprintf("link %s (ssid=%s): %v", e.Op, e.SSID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("link %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("link %s failed", e.Op)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// NewLinkError creates a new link error.
func NewLinkError(op string, ssid string, err error) *LinkError {
	return &LinkError{Op: op, SSID: ssid, Err: err}
}

// IsLinkError checks if an error is a LinkError.
func IsLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}

// SensorError represents a sensor read or initialization failure. Sensor
// errors are absorbed at their origin; dependent payload fields become
// absent.
type SensorError struct {
	Sensor string // Sensor involved (e.g., "env", "wind", "rain")
	Op     string // Operation being performed
	Err    error  // Underlying error
}

func (e *SensorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor %s %s: %v", e.Sensor, e.Op, e.Err)
	}
	return fmt.Sprintf("sensor %s %s failed", e.Sensor, e.Op)
}

func (e *SensorError) Unwrap() error {
	return e.Err
}

// NewSensorError creates a new sensor error.
func NewSensorError(sensor, op string, err error) *SensorError {
	return &SensorError{Sensor: sensor, Op: op, Err: err}
}

// IsSensorError checks if an error is a SensorError.
func IsSensorError(err error) bool {
	var se *SensorError
	return errors.As(err, &se)
}

// TransmitError represents a registration or telemetry upload failure:
// either a transport error or a non-2xx response. Transmit errors surface
// only as a status signal, never as a role change.
type TransmitError struct {
	Op       string // Operation being performed (e.g., "register", "send data")
	Endpoint string // Endpoint involved
	Status   int    // HTTP status code (0 if the request never completed)
	Err      error  // Underlying error
}

func (e *TransmitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transmit %s (%s): unexpected status %d", e.Op, e.Endpoint, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("transmit %s (%s): %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("transmit %s (%s) failed", e.Op, e.Endpoint)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// NewTransmitError creates a new transmit error.
func NewTransmitError(op, endpoint string, status int, err error) *TransmitError {
	return &TransmitError{Op: op, Endpoint: endpoint, Status: status, Err: err}
}

// IsTransmitError checks if an error is a TransmitError.
func IsTransmitError(err error) bool {
	var te *TransmitError
	return errors.As(err, &te)
}

// PortalError represents a provisioning portal failure.
type PortalError struct {
	Op  string // Operation being performed (e.g., "start", "render", "shutdown")
	Err error  // Underlying error
}

func (e *PortalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("portal %s failed", e.Op)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

// NewPortalError creates a new portal error.
func NewPortalError(op string, err error) *PortalError {
	return &PortalError{Op: op, Err: err}
}

// IsPortalError checks if an error is a PortalError.
func IsPortalError(err error) bool {
	var pe *PortalError
	return errors.As(err, &pe)
}

// Sentinel errors for common conditions
var (
	// ErrNotConfigured indicates the device holds no usable configuration
	ErrNotConfigured = errors.New("device not configured")

	// ErrLinkDown indicates the station link is not established
	ErrLinkDown = errors.New("link down")

	// ErrConnectTimeout indicates a bounded connection attempt expired
	ErrConnectTimeout = errors.New("connection attempt timed out")

	// ErrScanRunning indicates a network scan has not completed yet
	ErrScanRunning = errors.New("network scan in progress")

	// ErrAccessPointFailed indicates the local access point could not start.
	// This is fatal: the device signals the error visibly and restarts.
	ErrAccessPointFailed = errors.New("access point startup failed")

	// ErrMirrorUnavailable indicates the readings mirror rejected a write
	ErrMirrorUnavailable = errors.New("readings mirror unavailable")
)
