package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDominantFrequency(t *testing.T) {
	const rate = 48000
	s := Channel(Sine(1000, rate, 2, 8192, 0.5), 2, 1)

	got := DominantFrequency(s, rate)
	assert.InDelta(t, 1000, got, float64(rate)/8192)
}

func TestRamp(t *testing.T) {
	r := Ramp(2, 3, 5)
	assert.Equal(t, []float32{5, -5, 6, -6, 7, -7}, r)
	assert.Equal(t, []float64{5, 6, 7}, Channel(r, 2, 0))
}

func TestRMS(t *testing.T) {
	assert.InDelta(t, 0.5/1.41421356, RMS(Channel(Sine(100, 8000, 1, 8000, 0.5), 1, 0)), 1e-3)
	assert.Zero(t, RMS(nil))
}
