// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package status

import "testing"

func TestSetAndCurrent(t *testing.T) {
	led := NewLED()
	if led.Current() != Off {
		t.Errorf("initial state = %v, want off", led.Current())
	}

	led.Set(Provisioning)
	if led.Current() != Provisioning {
		t.Errorf("state = %v, want provisioning", led.Current())
	}
}

func TestPulseKeepsSteadyState(t *testing.T) {
	led := NewLED()
	led.Set(Connected)

	led.Pulse(Error)
	if led.Current() != Connected {
		t.Errorf("state = %v, pulse must not change the steady state", led.Current())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Off, "off"},
		{Provisioning, "provisioning"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Error, "error"},
		{State(99), "off"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
