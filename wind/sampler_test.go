// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package wind

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fixedInput struct {
	value int
	err   error
}

func (f *fixedInput) Read() (int, error) {
	return f.value, f.err
}

func TestMapRaw(t *testing.T) {
	s := NewSampler(&fixedInput{}, NewAccumulator(), time.Millisecond, 1023, 32.40)

	tests := []struct {
		name string
		raw  int
		want float64
	}{
		{"zero", 0, 0},
		{"full scale", 1023, 32.40},
		{"half scale", 511, 511.0 / 1023.0 * 32.40},
		{"over range clamps", 4095, 32.40},
		{"negative clamps", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.mapRaw(tt.raw)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("mapRaw(%d) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRunFeedsAccumulator(t *testing.T) {
	acc := NewAccumulator()
	s := NewSampler(&fixedInput{value: 1023}, acc, time.Millisecond, 1023, 32.40)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	mean, samples := acc.Drain()
	if samples == 0 {
		t.Fatal("no samples recorded")
	}
	if math.Abs(mean-32.40) > 1e-9 {
		t.Errorf("mean = %v, want 32.40", mean)
	}
}

func TestRunDropsFailedReads(t *testing.T) {
	acc := NewAccumulator()
	s := NewSampler(&fixedInput{err: errors.New("read failed")}, acc, time.Millisecond, 1023, 32.40)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if _, samples := acc.Drain(); samples != 0 {
		t.Errorf("samples = %d, want 0", samples)
	}
}
