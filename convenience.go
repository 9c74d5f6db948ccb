package scaler

import (
	"fmt"
)

// Common sample rates for convenience functions.
const (
	// RateCD is the CD quality sample rate (Red Book standard).
	RateCD = 44100

	// RateDAT is the DAT/DVD sample rate.
	RateDAT = 48000

	// RateHiRes96 is the high-resolution 2x DAT sample rate.
	RateHiRes96 = 96000
)

// offlineBlockFrames is the render block size of ScaleInterleaved.
const offlineBlockFrames = 1024

// BaseRateFor returns the base rate that plays a source recorded at
// sourceRate on an output running at outputRate.
func BaseRateFor(sourceRate, outputRate int) float64 {
	if sourceRate <= 0 || outputRate <= 0 {
		return 0
	}
	return float64(sourceRate) / float64(outputRate)
}

// NewStereo creates a stereo scaler at sampleRate using the built-in engine.
func NewStereo(supplier ReadAheadSupplier, sampleRate int) (*BufferScaler, error) {
	return New(supplier, &Config{
		Format: SignalFormat{SampleRate: sampleRate, Channels: 2},
	})
}

// sliceSupplier plays an interleaved slice forward and reports starvation
// at its end.
type sliceSupplier struct {
	samples []float32
	pos     int
}

func (s *sliceSupplier) GetNextSamples(speed float64, buf []float32) int {
	if speed < 0 {
		return 0
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	return n
}

// ScaleInterleaved stretches a whole interleaved buffer in one call.
//
// The result covers the full input at the given tempo and pitch: roughly
// len(input)/tempo samples. A tempo or pitch of 0 is rejected.
func ScaleInterleaved(input []float32, format SignalFormat, tempo, pitch float64) ([]float32, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	magnitude, backwards := ClampTempo(tempo)
	if magnitude == 0 || backwards || !(pitch > 0) {
		return nil, fmt.Errorf("%w: tempo %v and pitch %v must be positive", ErrInvalidConfig, tempo, pitch)
	}

	supplier := &sliceSupplier{samples: input}
	b, err := New(supplier, &Config{Format: format})
	if err != nil {
		return nil, err
	}
	b.SetScaleParameters(1, magnitude, pitch)

	inputFrames := float64(format.SamplesToFrames(len(input)))
	block := make([]float32, format.FramesToSamples(offlineBlockFrames))
	out := make([]float32, 0, int(float64(len(input))/magnitude)+len(block))

	for consumed := 0.0; consumed < inputFrames; {
		frames := min(offlineBlockFrames, int((inputFrames-consumed)/magnitude)+1)
		consumed += b.ScaleBuffer(block, frames)
		out = append(out, block[:format.FramesToSamples(frames)]...)
	}
	return out, nil
}
