// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package status

import (
	"sync"

	"github.com/wxnode/weather-node/pkg/logger"
)

// LED is the default Signal implementation. The physical indicator is out
// of scope, so it records the current state and logs every change the way
// the firmware drives its pixel.
type LED struct {
	mu      sync.Mutex
	current State
}

// NewLED creates a new LED signal, initially off.
func NewLED() *LED {
	return &LED{}
}

// Set switches the steady indicator state.
func (l *LED) Set(s State) {
	l.mu.Lock()
	prev := l.current
	l.current = s
	l.mu.Unlock()

	if prev != s {
		logger.Info().Str("status", s.String()).Msg("Status signal changed")
	}
}

// Pulse briefly shows a state without changing the steady one.
func (l *LED) Pulse(s State) {
	l.mu.Lock()
	steady := l.current
	l.mu.Unlock()

	logger.Info().Str("pulse", s.String()).Str("steady", steady.String()).
		Msg("Status signal pulsed")
}

// Current returns the steady indicator state.
func (l *LED) Current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
