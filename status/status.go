// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package status exposes the node's visual status contract. The core emits
// exactly one state on every role transition and every cycle outcome; how
// a state is rendered (color values, blink patterns) is a UI concern of
// the implementation.
package status

// State is a discrete status the device can signal.
type State int

const (
	// Off means no status is shown.
	Off State = iota
	// Provisioning means the device is serving the configuration portal.
	Provisioning
	// Connecting means a station connection attempt is in progress (blinking).
	Connecting
	// Connected means the device is configured and the link is up.
	Connected
	// Error means the last operation failed (blinking).
	Error
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case Provisioning:
		return "provisioning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "off"
	}
}

// Signal drives the status indicator.
type Signal interface {
	// Set switches the steady indicator state.
	Set(s State)

	// Pulse briefly shows a state and then restores the previous one.
	// Used for the no-op acknowledgement of a reset press while already
	// provisioning.
	Pulse(s State)
}
