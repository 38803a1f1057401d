// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package button implements the debounced operator reset watcher. A press
// is recognized only after the input stays asserted past the debounce
// window, fires at most one action no matter how long it is held, and
// re-arms on release.
package button

import (
	"context"
	"time"

	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
)

// Watcher polls the operator button and invokes the press action.
type Watcher struct {
	input    interfaces.Button
	onPress  func(ctx context.Context)
	interval time.Duration
	debounce time.Duration
}

// NewWatcher creates a button watcher. onPress runs on the watcher's own
// goroutine; long actions delay further polling, which matches the
// blocking-transition design of the role controller.
func NewWatcher(input interfaces.Button, interval, debounce time.Duration, onPress func(ctx context.Context)) *Watcher {
	return &Watcher{
		input:    input,
		onPress:  onPress,
		interval: interval,
		debounce: debounce,
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	log := logger.Component("button")
	log.Info().Dur("interval", w.interval).Dur("debounce", w.debounce).
		Msg("Button watcher started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	armed := true
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Button watcher stopped")
			return
		case <-ticker.C:
			if !w.input.Pressed() {
				if !armed {
					log.Debug().Msg("Button released")
					armed = true
				}
				continue
			}
			if !armed {
				// Still held from a recognized press; no repeat fire.
				continue
			}
			armed = false

			if !w.confirmPress(ctx) {
				// Spurious transition released within the debounce window.
				armed = true
				continue
			}

			log.Info().Msg("Button press detected")
			w.onPress(ctx)
		}
	}
}

// confirmPress waits out the debounce window and re-checks the input.
func (w *Watcher) confirmPress(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.debounce):
	}
	return w.input.Pressed()
}
