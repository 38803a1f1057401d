// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interfaces

// AnalogInput is a raw analog sampling primitive (wind, rain, light).
// Read returns the raw converter value; range and polarity are a
// calibration concern of the consumer.
type AnalogInput interface {
	Read() (int, error)
}

// EnvReading is one environmental sensor measurement.
type EnvReading struct {
	Temperature float64 // degrees Celsius
	Pressure    float64 // station pressure in hPa
	Humidity    float64 // relative humidity in percent
}

// EnvSensor is the combined temperature/pressure/humidity sensor. Init is
// called once at telemetry task start; if it fails, the dependent payload
// fields stay absent for the life of the task.
type EnvSensor interface {
	Init() error
	Read() (EnvReading, error)
}

// Button is the operator reset input. Pressed reports the instantaneous
// asserted state; debouncing is the watcher's concern.
type Button interface {
	Pressed() bool
}
