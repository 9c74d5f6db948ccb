// Package engine implements the default time-stretch engine: a cubic rate
// transposer with an anti-alias FIR and a WSOLA tempo stage, chained through
// frame FIFOs.
package engine

import (
	"math"

	"github.com/tphakala/go-audio-scaler/internal/pipeline"
)

// RateTransposer changes playback rate with cubic (4-point, 3rd order)
// Hermite interpolation. A rate above 1 consumes input faster than it
// produces output.
//
// The anti-alias filter runs before the interpolator when downsampling and
// after it when upsampling, with its cutoff tracking the rate.
type RateTransposer struct {
	rate     float64
	fract    float64
	skip     int // whole frames the last window step ran past the input
	channels int

	aa  *AntiAliasFilter
	tmp *pipeline.FrameFIFO // between interpolator and filter
}

// NewRateTransposer creates a transposer at rate 1.
func NewRateTransposer(channels int) (*RateTransposer, error) {
	aa, err := NewAntiAliasFilter(AntiAliasTaps, AntiAliasCutoff(1))
	if err != nil {
		return nil, err
	}

	t := &RateTransposer{
		rate:     1,
		channels: channels,
		aa:       aa,
		tmp:      pipeline.NewFrameFIFO(channels, defaultFIFOFrames),
	}
	aa.SetChannels(channels)
	return t, nil
}

// SetRate sets the input/output frame ratio. Non-positive and non-finite
// values are ignored.
func (t *RateTransposer) SetRate(rate float64) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return
	}

	// the intermediate FIFO holds filtered input or interpolated output
	// depending on direction; it cannot carry over a direction change
	if filterOrder(rate) != filterOrder(t.rate) {
		t.tmp.Clear()
	}
	t.rate = rate
	t.aa.SetCutoff(AntiAliasCutoff(rate))
}

// Rate returns the current rate.
func (t *RateTransposer) Rate() float64 {
	return t.rate
}

// Process transposes every frame that has a full interpolation window.
func (t *RateTransposer) Process(in, out *pipeline.FrameFIFO) {
	switch {
	case t.rate > 1:
		t.aa.Process(in, t.tmp)
		t.transpose(t.tmp, out)
	case t.rate < 1:
		t.transpose(in, t.tmp)
		t.aa.Process(t.tmp, out)
	default:
		t.transpose(in, out)
	}
}

// filterOrder is 1 when the filter runs first, -1 when it runs last and 0
// when it is bypassed.
func filterOrder(rate float64) int {
	switch {
	case rate > 1:
		return 1
	case rate < 1:
		return -1
	}
	return 0
}

// transpose interpolates between the second and third frame of each 4-frame
// window. The last three consumed frames stay in in as history.
func (t *RateTransposer) transpose(in, out *pipeline.FrameFIFO) {
	if t.skip > 0 {
		t.skip -= in.Skip(t.skip)
		if t.skip > 0 {
			return
		}
	}

	avail := in.Available()
	if avail < cubicInterpolationPoints {
		return
	}

	ch := t.channels
	src := in.Begin()
	maxOut := int(float64(avail-cubicInterpolationPoints+1)/t.rate) + 2
	dst := out.Extend(maxOut)

	n, pos := 0, 0
	fract := t.fract
	for pos <= avail-cubicInterpolationPoints && n < maxOut {
		base := pos * ch
		for c := range ch {
			dst[n*ch+c] = float32(interpolate(
				float64(src[base+c]),
				float64(src[base+ch+c]),
				float64(src[base+2*ch+c]),
				float64(src[base+3*ch+c]),
				fract))
		}
		n++

		fract += t.rate
		whole := int(fract)
		fract -= float64(whole)
		pos += whole
	}

	out.Commit(n)
	t.skip = pos - in.Skip(pos)
	t.fract = fract
}

// interpolate performs cubic Hermite interpolation.
// Uses the formula: y = ((a*x + b)*x + c)*x + d
// where x is the fractional position between y1 and y2.
func interpolate(y0, y1, y2, y3, x float64) float64 {
	coefA := -hermiteCoeff0_5*y0 + hermiteCoeff1_5*y1 - hermiteCoeff1_5*y2 + hermiteCoeff0_5*y3
	coefB := y0 - hermiteCoeff2_5*y1 + 2*y2 - hermiteCoeff0_5*y3
	coefC := -hermiteCoeff0_5*y0 + hermiteCoeff0_5*y2
	coefD := y1

	return ((coefA*x+coefB)*x+coefC)*x + coefD
}

// Reserve preallocates the intermediate FIFO.
func (t *RateTransposer) Reserve(frames int) {
	t.tmp.Reserve(frames)
}

// Reset clears internal state.
func (t *RateTransposer) Reset() {
	t.fract = 0
	t.skip = 0
	t.tmp.Clear()
	t.aa.Reset()
}

// SetChannels changes the frame width.
func (t *RateTransposer) SetChannels(channels int) {
	if channels <= 0 {
		return
	}
	t.channels = channels
	t.tmp.SetChannels(channels)
	t.aa.SetChannels(channels)
}

// GetLatency returns the stage latency in frames.
func (t *RateTransposer) GetLatency() int {
	if t.rate == 1 {
		return cubicLatencySamples
	}
	return cubicLatencySamples + t.aa.GetLatency()
}
