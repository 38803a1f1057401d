// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package hal provides simulated drivers for the collaborators the core
// treats as external: analog inputs, the environmental sensor, the radio,
// and the operator button. The register-level protocols are out of scope;
// these implementations generate plausible readings so the node runs end
// to end without hardware.
package hal

import (
	"math/rand"
	"sync"
)

// SimAnalog is a simulated analog input producing values around a center
// point with bounded jitter, clamped to the converter range.
type SimAnalog struct {
	mu     sync.Mutex
	rng    *rand.Rand
	center int
	jitter int
	max    int
}

// NewSimAnalog creates a simulated analog input.
func NewSimAnalog(seed int64, center, jitter, max int) *SimAnalog {
	return &SimAnalog{
		rng:    rand.New(rand.NewSource(seed)),
		center: center,
		jitter: jitter,
		max:    max,
	}
}

// Read returns the next simulated raw value.
func (s *SimAnalog) Read() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.center
	if s.jitter > 0 {
		v += s.rng.Intn(2*s.jitter+1) - s.jitter
	}
	if v < 0 {
		v = 0
	}
	if v > s.max {
		v = s.max
	}
	return v, nil
}
