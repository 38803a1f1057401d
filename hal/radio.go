// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package hal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wxnode/weather-node/pkg/interfaces"
)

// SimRadio is a simulated wireless radio. A station connection attempt
// establishes after a short settle delay; the access point and the
// station link are mutually exclusive, matching the hardware constraint.
type SimRadio struct {
	mu sync.Mutex

	hardwareAddr string
	settleDelay  time.Duration
	scanDelay    time.Duration

	ssid      string
	password  string
	readyAt   time.Time
	attempted bool
	apUp      bool

	rng *rand.Rand
}

// NewSimRadio creates a simulated radio. The hardware address is derived
// from the seed so restarts of the same node keep their identity.
func NewSimRadio(seed int64, settleDelay, scanDelay time.Duration) *SimRadio {
	rng := rand.New(rand.NewSource(seed))
	addr := fmt.Sprintf("02:%02x:%02x:%02x:%02x:%02x",
		rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256))

	return &SimRadio{
		hardwareAddr: addr,
		settleDelay:  settleDelay,
		scanDelay:    scanDelay,
		rng:          rng,
	}
}

// Connect begins a station connection attempt.
func (r *SimRadio) Connect(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.apUp {
		return fmt.Errorf("access point still active")
	}
	if ssid == "" {
		return fmt.Errorf("empty ssid")
	}

	r.ssid = ssid
	r.password = password
	r.attempted = true
	r.readyAt = time.Now().Add(r.settleDelay)
	return nil
}

// Reconnect begins a new attempt against the last used credentials.
func (r *SimRadio) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attempted || r.ssid == "" {
		return fmt.Errorf("no previous connection")
	}
	r.readyAt = time.Now().Add(r.settleDelay)
	return nil
}

// Disconnect tears the station link down.
func (r *SimRadio) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyAt = time.Time{}
	r.attempted = false
}

// Connected reports whether the station link is established.
func (r *SimRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempted && !r.readyAt.IsZero() && time.Now().After(r.readyAt)
}

// StartAccessPoint brings the local access point up.
func (r *SimRadio) StartAccessPoint(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attempted && !r.readyAt.IsZero() && time.Now().After(r.readyAt) {
		return fmt.Errorf("station link still active")
	}
	r.apUp = true
	return nil
}

// StopAccessPoint tears the local access point down.
func (r *SimRadio) StopAccessPoint() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apUp = false
}

// Scan returns a plausible set of nearby networks after the scan delay.
func (r *SimRadio) Scan(ctx context.Context) ([]interfaces.Network, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.scanDelay):
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := []string{"HomeNet", "Workshop", "Garden-2G", "Neighbors5G"}
	networks := make([]interfaces.Network, 0, len(names))
	for _, name := range names {
		networks = append(networks, interfaces.Network{
			SSID:     name,
			RSSI:     -40 - r.rng.Intn(50),
			Security: "WPA2_PSK",
		})
	}
	return networks, nil
}

// HardwareAddr returns the simulated hardware network identifier.
func (r *SimRadio) HardwareAddr() string {
	return r.hardwareAddr
}
