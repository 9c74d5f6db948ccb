// Package mathutil provides the window-design math used by the anti-alias filter.
package mathutil

import (
	"math"
)

// BesselI0 computes the zeroth-order modified Bessel function of the first kind.
//
// The power series Σ ((x/2)^k / k!)² is summed until the terms drop below
// float64 resolution. For the β range used in Kaiser windows (0-20) this
// converges in fewer than 40 terms.
func BesselI0(x float64) float64 {
	half := x / 2
	sum := 1.0
	term := 1.0
	for k := 1; k < besselMaxTerms; k++ {
		f := half / float64(k)
		term *= f * f
		sum += term
		if term < sum*besselRelTolerance {
			break
		}
	}
	return sum
}

// KaiserBeta returns the Kaiser window β that reaches the given stopband
// attenuation in dB.
//
//   - att > 50 dB:  β = 0.1102 · (att − 8.7)
//   - 21..50 dB:    β = 0.5842 · (att − 21)^0.4 + 0.07886 · (att − 21)
//   - below 21 dB:  β = 0 (rectangular window)
func KaiserBeta(attenuation float64) float64 {
	switch {
	case attenuation > kaiserAttHigh:
		return kaiserBetaHighCoeff * (attenuation - kaiserBetaHighOffset)
	case attenuation >= kaiserAttMedium:
		d := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff*math.Pow(d, kaiserBetaMediumPower) + kaiserBetaMediumLin*d
	default:
		return 0
	}
}

// EstimateFilterLength estimates the odd number of taps a Kaiser-windowed FIR
// needs to reach attenuation (dB) within the given normalized transition
// bandwidth (cycles per sample).
func EstimateFilterLength(attenuation, transitionBW float64) int {
	if transitionBW <= 0 {
		transitionBW = defaultTransitionBW
	}

	n := (attenuation - kaiserLengthOffset) / (kaiserLengthMultiplier * 2 * math.Pi * transitionBW)
	taps := int(math.Ceil(n))
	if taps%2 == 0 {
		taps++
	}

	return max(minFilterLength, min(taps, maxFilterLength))
}
