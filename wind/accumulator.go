// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package wind provides the high-frequency wind sampler and the shared
// accumulator it feeds. The accumulator is the only state in the node
// touched by two independent periodic activities, so sum and count live
// behind a single mutex and are only ever read or reset together.
package wind

import "sync"

// Accumulator is a mutex-guarded running sum and sample count. The
// sampler adds mapped readings; the telemetry cycle drains the mean once
// per interval.
type Accumulator struct {
	mu    sync.Mutex
	sum   float64
	count int
}

// NewAccumulator creates an empty accumulator. It is created once at
// startup before the sampler starts and lives for the rest of the process.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add records one mapped wind speed sample. The critical section covers
// only the two counter updates; sampling and mapping happen outside it.
func (a *Accumulator) Add(speed float64) {
	a.mu.Lock()
	a.sum += speed
	a.count++
	a.mu.Unlock()
}

// Drain atomically computes the mean of all samples since the last drain
// and resets the accumulator. Read and reset share one critical section
// so no concurrent sample is lost or double-counted. With no samples the
// mean is 0.
func (a *Accumulator) Drain() (mean float64, samples int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples = a.count
	if samples > 0 {
		mean = a.sum / float64(samples)
	}
	a.sum = 0
	a.count = 0
	return mean, samples
}

// Snapshot returns the current sum and count without resetting them.
// Diagnostic only; the telemetry cycle always uses Drain.
func (a *Accumulator) Snapshot() (sum float64, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sum, a.count
}
