// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interfaces defines abstract contracts for the node's external
// collaborators: the persistent configuration store, the radio, the
// physical sensors, and the operator button. This package promotes loose
// coupling and testability by allowing dependency injection and easy
// mocking in tests.
package interfaces

// Role is the persisted operational role of the device.
type Role int

const (
	// RoleUnconfigured means the device requires provisioning.
	RoleUnconfigured Role = iota
	// RoleConfigured means the device holds credentials and uploads telemetry.
	RoleConfigured
)

// String returns a readable role name.
func (r Role) String() string {
	switch r {
	case RoleConfigured:
		return "configured"
	default:
		return "unconfigured"
	}
}

// Credentials is the full credential set needed to operate in the
// configured role. When the role is RoleConfigured the SSID is non-empty.
type Credentials struct {
	SSID          string
	Password      string
	Account       string
	ServerAddress string
}

// Complete reports whether the credential set can drive a connection attempt.
func (c Credentials) Complete() bool {
	return c.SSID != ""
}

// ConfigStore defines the persistent configuration contract.
//
// Save writes the full credential set and sets the role to RoleConfigured,
// atomically from the caller's perspective. Clear resets the role to
// RoleUnconfigured and removes all credential fields. Load reports the
// persisted role together with whatever credentials are stored.
type ConfigStore interface {
	Load() (Role, Credentials, error)
	Save(creds Credentials) error
	Clear() error
}
