// Package testutil provides reusable test helpers for the scaler packages.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance   = 1e-6
	MagnitudeTolerance = 1e-2
)

// Sine returns frames frames of an interleaved sine at freq Hz, the same
// signal on every channel.
func Sine(freq float64, sampleRate, channels, frames int, amplitude float64) []float32 {
	out := make([]float32, frames*channels)
	w := 2 * math.Pi * freq / float64(sampleRate)
	for i := range frames {
		v := float32(amplitude * math.Sin(w*float64(i)))
		for c := range channels {
			out[i*channels+c] = v
		}
	}
	return out
}

// Ramp returns an interleaved ramp where frame i holds value i+offset on
// channel 0 and -(i+offset) on every other channel.
func Ramp(channels, frames, offset int) []float32 {
	out := make([]float32, frames*channels)
	for i := range frames {
		v := float32(i + offset)
		out[i*channels] = v
		for c := 1; c < channels; c++ {
			out[i*channels+c] = -v
		}
	}
	return out
}

// Channel extracts one channel of an interleaved buffer as float64.
func Channel(interleaved []float32, channels, ch int) []float64 {
	n := len(interleaved) / channels
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(interleaved[i*channels+ch])
	}
	return out
}

// RMS returns the root mean square of s.
func RMS(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC
// spectral bin of s.
func DominantFrequency(s []float64, sampleRate int) float64 {
	n := len(s)
	if n < 2 {
		return 0
	}

	// Hann window limits leakage from the truncated block.
	windowed := make([]float64, n)
	for i, v := range s {
		windowed[i] = v * 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	best, bestMag := 0, 0.0
	for k := 1; k < len(coeffs); k++ {
		mag := math.Hypot(real(coeffs[k]), imag(coeffs[k]))
		if mag > bestMag {
			best, bestMag = k, mag
		}
	}
	return fft.Freq(best) * float64(sampleRate)
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		f := float64(v)
		if math.IsNaN(f) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(f, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [minVal, maxVal].
func AssertAllInRange(t *testing.T, s []float32, minVal, maxVal float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertSilent verifies that every element is exactly zero.
func AssertSilent(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v != 0 {
			return assert.Fail(t, "expected silence", "s[%d]=%f", i, v)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertMonotonic verifies that a slice never decreases.
func AssertMonotonic(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return assert.Fail(t, "not monotonic",
				"s[%d]=%f < s[%d]=%f", i, s[i], i-1, s[i-1])
		}
	}
	return true
}
