package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-scaler/internal/pipeline"
)

// ErrInvalidConfig is returned for an unusable channel count or sample rate.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Stretcher is a streaming time-stretch and pitch-shift engine.
//
// Rate and pitch both resample; tempo stretches. They combine into an
// effective rate (rate·pitch) applied by the transposer and an effective
// tempo (tempo/pitch) applied by the WSOLA stage. The transposer runs first
// when it does not increase the frame count, so the tempo stage always sees
// the smaller stream. When both effective values are 1 samples pass through
// untouched.
//
// Setters ignore non-positive and non-finite values. Stretcher is not safe
// for concurrent use.
type Stretcher struct {
	channels   int
	sampleRate int

	rate  float64
	tempo float64
	pitch float64

	effRate  float64
	effTempo float64

	transposer *RateTransposer
	stretch    *TimeStretch
	chain      *pipeline.Chain

	bypass    bool
	rateFirst bool
}

// NewStretcher creates an engine with every ratio at 1.
func NewStretcher(channels, sampleRate int) (*Stretcher, error) {
	if err := validateFormat(channels, sampleRate); err != nil {
		return nil, err
	}

	transposer, err := NewRateTransposer(channels)
	if err != nil {
		return nil, fmt.Errorf("rate transposer: %w", err)
	}
	stretch := NewTimeStretch(channels, sampleRate)

	s := &Stretcher{
		channels:   channels,
		sampleRate: sampleRate,
		rate:       1,
		tempo:      1,
		pitch:      1,
		transposer: transposer,
		stretch:    stretch,
		chain:      pipeline.NewChain(channels, defaultFIFOFrames, transposer, stretch),
		rateFirst:  true,
	}
	s.calcEffective()
	return s, nil
}

func validateFormat(channels, sampleRate int) error {
	if channels < 1 || channels > maxChannels {
		return fmt.Errorf("%w: channels %d outside [1, %d]", ErrInvalidConfig, channels, maxChannels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}
	return nil
}

func validRatio(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// SetChannels changes the frame width. Pending audio is discarded when the
// width changes.
func (s *Stretcher) SetChannels(channels int) {
	if channels < 1 || channels > maxChannels || channels == s.channels {
		return
	}
	s.channels = channels
	s.chain.SetChannels(channels)
	s.reserve()
}

// SetSampleRate sets the stream sample rate used for window lengths.
func (s *Stretcher) SetSampleRate(sampleRate int) {
	if sampleRate <= 0 || sampleRate == s.sampleRate {
		return
	}
	s.sampleRate = sampleRate
	s.stretch.SetSampleRate(sampleRate)
	s.reserve()
}

// SetRate sets the playback rate, changing tempo and pitch together.
func (s *Stretcher) SetRate(rate float64) {
	if !validRatio(rate) {
		return
	}
	s.rate = rate
	s.calcEffective()
}

// SetTempo sets the tempo ratio without changing pitch.
func (s *Stretcher) SetTempo(tempo float64) {
	if !validRatio(tempo) {
		return
	}
	s.tempo = tempo
	s.calcEffective()
}

// SetPitch sets the pitch ratio without changing tempo.
func (s *Stretcher) SetPitch(pitch float64) {
	if !validRatio(pitch) {
		return
	}
	s.pitch = pitch
	s.calcEffective()
}

// Rate returns the playback rate.
func (s *Stretcher) Rate() float64 { return s.rate }

// Tempo returns the tempo ratio.
func (s *Stretcher) Tempo() float64 { return s.tempo }

// Pitch returns the pitch ratio.
func (s *Stretcher) Pitch() float64 { return s.pitch }

// Bypassed reports whether samples currently pass through unprocessed.
func (s *Stretcher) Bypassed() bool { return s.bypass }

func (s *Stretcher) calcEffective() {
	s.effRate = s.rate * s.pitch
	s.effTempo = s.tempo / s.pitch

	s.transposer.SetRate(s.effRate)
	s.stretch.SetTempo(s.effTempo)

	bypass := math.Abs(s.effRate-1) < unityTolerance && math.Abs(s.effTempo-1) < unityTolerance
	if bypass && !s.bypass {
		s.chain.Drain()
	}
	s.bypass = bypass

	rateFirst := s.effRate <= 1
	if rateFirst != s.rateFirst {
		if rateFirst {
			_ = s.chain.Reorder(s.transposer, s.stretch)
		} else {
			_ = s.chain.Reorder(s.stretch, s.transposer)
		}
		s.rateFirst = rateFirst
	}

	s.reserve()
}

// reserve grows the FIFOs so that steady-state processing at the current
// settings does not allocate.
func (s *Stretcher) reserve() {
	scale := math.Max(1, math.Max(1/s.effTempo, 1/s.effRate))
	scale = math.Min(scale, maxReserveScale)

	frames := int(float64(s.stretch.InputRequirement()+reserveHeadroomFrames) * scale)
	s.chain.Reserve(frames)
	s.transposer.Reserve(frames)
}

// PutSamples queues frames frames of interleaved input.
func (s *Stretcher) PutSamples(buf []float32, frames int) {
	if frames <= 0 {
		return
	}
	if s.bypass {
		s.chain.Output().Put(buf, frames)
		return
	}
	s.chain.Input().Put(buf, frames)
	s.chain.Run()
}

// ReceiveSamples copies up to maxFrames processed frames into buf and returns
// the number copied. It never blocks.
func (s *Stretcher) ReceiveSamples(buf []float32, maxFrames int) int {
	return s.chain.Output().Receive(buf, maxFrames)
}

// FramesAvailable returns the processed frames ready to be received.
func (s *Stretcher) FramesAvailable() int {
	return s.chain.Output().Available()
}

// FramesUnprocessed returns the frames queued inside the engine that have not
// yet reached the output.
func (s *Stretcher) FramesUnprocessed() int {
	return s.chain.Pending()
}

// Latency returns the nominal processing latency in frames.
func (s *Stretcher) Latency() int {
	if s.bypass {
		return 0
	}
	return s.chain.GetLatency()
}

// Clear discards every queued frame and resets all stage state.
func (s *Stretcher) Clear() {
	s.chain.Clear()
}
