package mathutil

// Bessel series evaluation
const (
	// besselMaxTerms bounds the power series; for β ≤ 20 the series
	// converges well before this.
	besselMaxTerms = 64

	// besselRelTolerance stops the series once a term no longer
	// contributes to the float64 mantissa.
	besselRelTolerance = 1e-17
)

// Kaiser & Schafer empirical formulas
const (
	kaiserAttHigh   = 50.0 // dB, upper formula threshold
	kaiserAttMedium = 21.0 // dB, lower formula threshold

	kaiserBetaHighCoeff   = 0.1102
	kaiserBetaHighOffset  = 8.7
	kaiserBetaMediumCoeff = 0.5842
	kaiserBetaMediumPower = 0.4
	kaiserBetaMediumLin   = 0.07886

	// N ≈ (att - 7.95) / (2.285 · 2π · Δf)
	kaiserLengthOffset     = 7.95
	kaiserLengthMultiplier = 2.285
)

// Filter length bounds
const (
	minFilterLength     = 3
	maxFilterLength     = 1023
	defaultTransitionBW = 0.01
)
