// Package filter designs the anti-alias FIR used by the rate transposer.
//
// Designs are written into caller-owned slices so a filter can be retuned
// at control rate without allocating.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-scaler/internal/mathutil"
	"github.com/tphakala/go-audio-scaler/internal/simdops"
)

const (
	minFilterTaps     = 3
	maxCutoff         = 0.5
	sincZeroThreshold = 1e-10
)

// ErrInvalidParams is returned for unusable design parameters.
var ErrInvalidParams = errors.New("invalid filter parameters")

// KaiserWindow fills dst with a symmetric Kaiser window with parameter beta.
// The peak coefficient is 1.
func KaiserWindow(dst []float64, beta float64) {
	n := len(dst)
	switch n {
	case 0:
		return
	case 1:
		dst[0] = 1
		return
	}

	center := float64(n-1) / 2
	norm := mathutil.BesselI0(beta)
	for i := range dst {
		r := (float64(i) - center) / center
		dst[i] = mathutil.BesselI0(beta*math.Sqrt(1-r*r)) / norm
	}
}

// DesignLowPassInto writes a unity-DC-gain Kaiser-windowed sinc lowpass into dst.
//
// cutoff is normalized to the sample rate (0 < cutoff < 0.5) and attenuation
// is the stopband target in dB. len(dst) must be odd and at least 3.
func DesignLowPassInto(dst []float32, cutoff, attenuation float64) error {
	n := len(dst)
	if n < minFilterTaps || n%2 == 0 {
		return fmt.Errorf("%w: need an odd tap count ≥ %d, got %d", ErrInvalidParams, minFilterTaps, n)
	}
	if !(cutoff > 0 && cutoff < maxCutoff) {
		return fmt.Errorf("%w: cutoff %f outside (0, %g)", ErrInvalidParams, cutoff, maxCutoff)
	}
	if attenuation < 0 || math.IsNaN(attenuation) {
		return fmt.Errorf("%w: attenuation %f dB", ErrInvalidParams, attenuation)
	}

	beta := mathutil.KaiserBeta(attenuation)
	norm := mathutil.BesselI0(beta)
	center := float64(n-1) / 2

	var sum float64
	for i := range dst {
		x := float64(i) - center

		h := 2 * cutoff
		if math.Abs(x) > sincZeroThreshold {
			h = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}

		r := x / center
		w := mathutil.BesselI0(beta*math.Sqrt(1-r*r)) / norm

		dst[i] = float32(h * w)
		sum += h * w
	}

	if math.Abs(sum) > sincZeroThreshold {
		k := simdops.Float32()
		k.Scale(dst, dst, float32(1/sum))
	}

	return nil
}
