// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interfaces

import "context"

// Network is a nearby network found by a discovery scan, shown in the
// provisioning portal's picker.
type Network struct {
	SSID     string
	RSSI     int
	Security string
}

// Radio abstracts the device's wireless hardware. The radio owns either
// the station link or the local access point; both cannot run at once, so
// the caller stops one before starting the other.
type Radio interface {
	// Connect begins a station connection attempt with the given
	// credentials. It returns immediately; the caller polls Connected
	// until its bounded timeout expires.
	Connect(ssid, password string) error

	// Reconnect begins a new attempt against the last used credentials.
	Reconnect() error

	// Disconnect tears down the station link.
	Disconnect()

	// Connected reports whether the station link is established.
	Connected() bool

	// StartAccessPoint brings up the local configuration access point.
	StartAccessPoint(ssid, password string) error

	// StopAccessPoint tears down the local access point.
	StopAccessPoint()

	// Scan performs a discovery scan for nearby networks. It blocks until
	// the scan completes or ctx is done.
	Scan(ctx context.Context) ([]Network, error)

	// HardwareAddr returns the radio's hardware network identifier.
	HardwareAddr() string
}
