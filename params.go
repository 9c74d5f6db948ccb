package scaler

import (
	"math"
)

// ScaleState is the set of ratios a BufferScaler renders with.
type ScaleState struct {
	// BaseRate is the sample rate conversion factor (source rate / output rate).
	BaseRate float64

	// TempoRatio is the tempo magnitude after clamping, ≥ 0.
	TempoRatio float64

	// PitchRatio is the requested pitch, sign kept for comparison only.
	PitchRatio float64

	// Backwards is set when the requested tempo was negative.
	Backwards bool
}

// SignedTempo returns the tempo with the direction applied.
func (s ScaleState) SignedTempo() float64 {
	if s.Backwards {
		return -s.TempoRatio
	}
	return s.TempoRatio
}

// Speed returns the signed source speed passed to the supplier.
func (s ScaleState) Speed() float64 {
	speed := s.BaseRate * s.TempoRatio
	if s.Backwards {
		return -speed
	}
	return speed
}

// IsStopped reports whether rendering takes the silence fast path.
func (s ScaleState) IsStopped() bool {
	return s.BaseRate == 0 || s.TempoRatio == 0 || s.PitchRatio == 0
}

// ClampTempo splits a requested tempo into a clamped magnitude and a
// direction. Magnitudes above MaxSeekSpeed become MaxSeekSpeed, magnitudes
// below MinSeekSpeed (and NaN) become exactly 0.
func ClampTempo(tempo float64) (magnitude float64, backwards bool) {
	backwards = tempo < 0
	magnitude = math.Abs(tempo)

	switch {
	case math.IsNaN(magnitude) || magnitude < MinSeekSpeed:
		magnitude = 0
	case magnitude > MaxSeekSpeed:
		magnitude = MaxSeekSpeed
	}
	return magnitude, backwards
}

// finiteOrZero maps NaN and ±Inf to 0.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// PitchRatioFromSemitones converts a key shift in semitones to a pitch ratio.
func PitchRatioFromSemitones(semitones float64) float64 {
	return math.Exp2(semitones / semitonesPerOctave)
}

// SemitonesFromPitchRatio converts a pitch ratio to a key shift in
// semitones. The sign of ratio is ignored; a zero ratio returns 0.
func SemitonesFromPitchRatio(ratio float64) float64 {
	ratio = math.Abs(ratio)
	if ratio == 0 {
		return 0
	}
	return semitonesPerOctave * math.Log2(ratio)
}

// SetScaleParameters applies new ratios and returns the tempo and pitch that
// were actually applied.
//
// The tempo is clamped as by ClampTempo and returned with its sign. Only
// changed values are pushed to the engine: a zero tempo or a non-positive
// base rate is stored but never pushed, and the pitch is pushed as its
// magnitude. Non-finite inputs count as 0.
func (b *BufferScaler) SetScaleParameters(baseRate, tempoRatio, pitchRatio float64) (appliedTempo, appliedPitch float64) {
	magnitude, backwards := ClampTempo(tempoRatio)
	b.state.Backwards = backwards

	if magnitude != b.state.TempoRatio {
		if magnitude > 0 {
			b.engine.SetTempo(magnitude)
		}
		b.state.TempoRatio = magnitude
	}

	baseRate = math.Max(finiteOrZero(baseRate), 0)
	if baseRate != b.state.BaseRate {
		if baseRate > 0 {
			b.engine.SetRate(baseRate)
		}
		b.state.BaseRate = baseRate
	}

	pitchRatio = finiteOrZero(pitchRatio)
	if pitchRatio != b.state.PitchRatio {
		if p := math.Abs(pitchRatio); p > 0 {
			b.engine.SetPitch(p)
		}
		b.state.PitchRatio = pitchRatio
	}

	return b.state.SignedTempo(), pitchRatio
}

// State returns the ratios currently in effect.
func (b *BufferScaler) State() ScaleState {
	return b.state
}
