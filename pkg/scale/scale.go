// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package scale provides linear remapping of raw sensor values onto
// physical ranges. Inverted mappings (inMin > inMax or outMin > outMax)
// are supported; they are how the rain and light inputs express
// "lower raw value means more".
package scale

// Map linearly remaps v from [inMin, inMax] to [outMin, outMax].
func Map(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	return outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MapClamped remaps v and clamps the result to the output range.
func MapClamped(v, inMin, inMax, outMin, outMax float64) float64 {
	lo, hi := outMin, outMax
	if lo > hi {
		lo, hi = hi, lo
	}
	return Clamp(Map(v, inMin, inMax, outMin, outMax), lo, hi)
}
