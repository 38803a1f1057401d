// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package telemetry implements the periodic read-compute-send cycle: it
// drains the wind accumulator, reads the remaining sensors, derives
// sea-level pressure, builds the upload payload, and interprets the
// transmission outcome.
package telemetry

import "math"

// Physical constants for the barometric reduction to mean sea level.
const (
	gravity      = 9.80665   // standard gravity [m/s^2]
	molarMassAir = 0.0289644 // molar mass of dry air [kg/mol]
	gasConstant  = 8.31447   // universal gas constant [J/(mol*K)]
)

// Payload is the telemetry upload body. Pointer fields distinguish a
// missing reading from a valid zero: absent fields are omitted, except
// sunshine which serializes as an explicit null when the light reading is
// invalid.
type Payload struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	Sunshine      *float64 `json:"sunshine"`
	WindSpeed     float64  `json:"wind_speed"`
	Precipitation float64  `json:"precipitation"`
}

// ReduceToMSL reduces station pressure to mean-sea-level pressure using
// the barometric formula. The second return value is false when either
// input is NaN; the caller falls back to the raw station pressure so a
// healthy sensor always yields a best-effort pressure.
func ReduceToMSL(stationPressureHPa, stationTemperatureC, stationAltitudeM float64) (float64, bool) {
	if math.IsNaN(stationPressureHPa) || math.IsNaN(stationTemperatureC) {
		return 0, false
	}

	temperatureK := stationTemperatureC + 273.15
	pressurePa := stationPressureHPa * 100.0

	exponent := (gravity * molarMassAir * stationAltitudeM) / (gasConstant * temperatureK)
	mslPa := pressurePa * math.Exp(exponent)

	return mslPa / 100.0, true
}

// round2 rounds to 2 decimal places (temperature, pressure, wind speed).
func round2(v float64) float64 {
	return math.Round(v*100.0) / 100.0
}

// round4 rounds to 4 decimal places (humidity, precipitation).
func round4(v float64) float64 {
	return math.Round(v*10000.0) / 10000.0
}

func ptr(v float64) *float64 {
	return &v
}
