package engine

import (
	"github.com/tphakala/go-audio-scaler/internal/filter"
	"github.com/tphakala/go-audio-scaler/internal/pipeline"
	"github.com/tphakala/go-audio-scaler/internal/simdops"
)

// AntiAliasFilter is a streaming FIR lowpass over interleaved frames.
//
// The last len(coeffs)-1 frames of every Process call stay in the input FIFO
// as history. Coefficients are redesigned in place when the cutoff changes.
type AntiAliasFilter struct {
	coeffs   []float32
	cutoff   float64
	channels int
	ops      *simdops.Kernels

	// per-channel scratch, grow only
	chanIn  []float32
	chanOut []float32
	chanAlt []float32
}

// NewAntiAliasFilter creates a filter with taps coefficients and the given
// normalized cutoff.
func NewAntiAliasFilter(taps int, cutoff float64) (*AntiAliasFilter, error) {
	a := &AntiAliasFilter{
		coeffs:   make([]float32, taps),
		channels: 1,
		ops:      simdops.Float32(),
	}
	if err := filter.DesignLowPassInto(a.coeffs, cutoff, aaAttenuationDB); err != nil {
		return nil, err
	}
	a.cutoff = cutoff
	return a, nil
}

// SetCutoff redesigns the coefficients for a new normalized cutoff. Out of
// range values are ignored.
func (a *AntiAliasFilter) SetCutoff(cutoff float64) {
	if cutoff == a.cutoff {
		return
	}
	if err := filter.DesignLowPassInto(a.coeffs, cutoff, aaAttenuationDB); err != nil {
		// coefficients are untouched on a validation error
		return
	}
	a.cutoff = cutoff
}

// AntiAliasCutoff returns the normalized cutoff used by the rate transposer
// at rate: a fixed fraction of the lower of the two Nyquist frequencies.
func AntiAliasCutoff(rate float64) float64 {
	if rate > 1 {
		return aaCutoffScale * nyquist / rate
	}
	return aaCutoffScale * nyquist * rate
}

// Coefficients returns the current taps. The slice must not be modified.
func (a *AntiAliasFilter) Coefficients() []float32 {
	return a.coeffs
}

// Cutoff returns the current normalized cutoff.
func (a *AntiAliasFilter) Cutoff() float64 {
	return a.cutoff
}

// Process filters every frame that has a full window of history.
func (a *AntiAliasFilter) Process(in, out *pipeline.FrameFIFO) {
	taps := len(a.coeffs)
	avail := in.Available()
	if avail < taps {
		return
	}

	n := avail - taps + 1
	ch := a.channels
	src := in.Begin()
	a.ensureScratch(avail)

	dst := out.Extend(n)
	switch ch {
	case 1:
		a.ops.ConvolveValid(dst, src[:avail], a.coeffs)
	case 2:
		a.deinterleave(src, 0, avail)
		a.ops.ConvolveValid(a.chanOut[:n], a.chanIn[:avail], a.coeffs)
		a.deinterleave(src, 1, avail)
		a.ops.ConvolveValid(a.chanAlt[:n], a.chanIn[:avail], a.coeffs)
		a.ops.Interleave2(dst, a.chanOut[:n], a.chanAlt[:n])
	default:
		for c := range ch {
			a.deinterleave(src, c, avail)
			a.ops.ConvolveValid(a.chanOut[:n], a.chanIn[:avail], a.coeffs)
			for i, v := range a.chanOut[:n] {
				dst[i*ch+c] = v
			}
		}
	}
	out.Commit(n)
	in.Skip(n)
}

// Reset is a no-op; all filter history lives in the input FIFO.
func (a *AntiAliasFilter) Reset() {}

// SetChannels changes the frame width.
func (a *AntiAliasFilter) SetChannels(channels int) {
	if channels > 0 {
		a.channels = channels
	}
}

// GetLatency returns the group delay in frames.
func (a *AntiAliasFilter) GetLatency() int {
	return (len(a.coeffs) - 1) / 2
}

func (a *AntiAliasFilter) deinterleave(src []float32, c, frames int) {
	ch := a.channels
	for i := range frames {
		a.chanIn[i] = src[i*ch+c]
	}
}

func (a *AntiAliasFilter) ensureScratch(frames int) {
	if cap(a.chanIn) >= frames {
		a.chanIn = a.chanIn[:frames]
		a.chanOut = a.chanOut[:frames]
		a.chanAlt = a.chanAlt[:frames]
		return
	}
	a.chanIn = make([]float32, frames)
	a.chanOut = make([]float32, frames)
	a.chanAlt = make([]float32, frames)
}
