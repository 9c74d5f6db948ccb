package scaler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// TimeStretchEngine is a stateful stretch primitive. It buffers input
// internally and emits output at the configured rate, tempo and pitch.
//
// Buffers are interleaved float32 frames. Setters receive positive values
// only. ReceiveSamples must never block and never write more than maxFrames
// frames.
type TimeStretchEngine interface {
	SetChannels(channels int)
	SetSampleRate(sampleRate int)
	SetRate(rate float64)
	SetTempo(tempo float64)
	SetPitch(pitch float64)

	// PutSamples queues frames frames of buf.
	PutSamples(buf []float32, frames int)

	// ReceiveSamples copies up to maxFrames processed frames into buf and
	// returns the number copied.
	ReceiveSamples(buf []float32, maxFrames int) int

	// Clear discards all buffered audio and state.
	Clear()
}

// ReadAheadSupplier delivers raw source frames on demand.
//
// GetNextSamples fills buf with the next interleaved samples in the direction
// given by the sign of speed and returns the number of samples written, at
// most len(buf). It may return 0 when nothing is available and must never
// block.
type ReadAheadSupplier interface {
	GetNextSamples(speed float64, buf []float32) int
}

// Config holds BufferScaler configuration.
type Config struct {
	// Format is the initial output format. The zero value leaves the scaler
	// unconfigured until OnFormatChanged.
	Format SignalFormat

	// Engine is the stretch primitive. Nil selects the built-in engine.
	Engine TimeStretchEngine

	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger

	// SeekOffsetFrames is the silence pre-fed after Clear.
	// Zero selects DefaultSeekOffsetFrames.
	SeekOffsetFrames int
}

// Common errors returned by the scaler.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid scaler configuration")

	// ErrInvalidFormat indicates an unusable signal format.
	ErrInvalidFormat = errors.New("invalid signal format")
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SeekOffsetFrames < 0 {
		return fmt.Errorf("%w: seek offset must not be negative", ErrInvalidConfig)
	}

	if c.Format != (SignalFormat{}) {
		if err := c.Format.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// BufferScaler renders time-stretched and pitch-shifted audio by pulling raw
// frames from a ReadAheadSupplier through a TimeStretchEngine.
//
// All methods except Stats must be called from one goroutine, normally the
// render thread. ScaleBuffer does not allocate.
type BufferScaler struct {
	supplier ReadAheadSupplier
	engine   TimeStretchEngine
	logger   *zap.Logger

	format           SignalFormat
	seekOffsetFrames int

	state   ScaleState
	scratch []float32 // grows on format change, never shrinks
	starved bool      // previous pull returned nothing

	stats counters
}

// New creates a BufferScaler reading from supplier. A nil config selects
// defaults.
func New(supplier ReadAheadSupplier, config *Config) (*BufferScaler, error) {
	if supplier == nil {
		return nil, fmt.Errorf("%w: supplier is nil", ErrInvalidConfig)
	}
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eng := config.Engine
	if eng == nil {
		var err error
		eng, err = NewDefaultEngine(config.Format)
		if err != nil {
			return nil, err
		}
	}

	seekOffset := config.SeekOffsetFrames
	if seekOffset == 0 {
		seekOffset = DefaultSeekOffsetFrames
	}

	b := &BufferScaler{
		supplier:         supplier,
		engine:           eng,
		logger:           logger,
		seekOffsetFrames: seekOffset,
		state: ScaleState{
			BaseRate:   1,
			TempoRatio: 1,
			PitchRatio: 1,
		},
	}

	if config.Format.IsValid() {
		b.OnFormatChanged(config.Format)
	}
	return b, nil
}

// ScaleBuffer renders frames frames into output and returns the number of
// source frames the call advanced through (base rate × tempo × frames
// received from the engine).
//
// When stopped (zero base rate, tempo or pitch) or unconfigured, output is
// silenced and 0 is returned without touching the supplier or engine. Two
// consecutive empty pulls feed a block of silence to flush the engine, so
// the call always completes.
func (b *BufferScaler) ScaleBuffer(output []float32, frames int) float64 {
	b.stats.calls.Add(1)

	if !b.format.IsValid() {
		clear(output)
		clear(b.scratch)
		return 0
	}

	ch := b.format.Channels
	frames = min(frames, len(output)/ch)
	if frames <= 0 {
		return 0
	}
	out := output[:frames*ch]

	if b.state.IsStopped() {
		clear(out)
		b.stats.silentCalls.Add(1)
		return 0
	}

	speed := b.state.Speed()
	scratchFrames := len(b.scratch) / ch
	scratch := b.scratch[:scratchFrames*ch]
	b.starved = false

	received := 0
	for received < frames {
		received += b.engine.ReceiveSamples(out[received*ch:], frames-received)
		if received >= frames {
			break
		}

		if got := b.supplier.GetNextSamples(speed, scratch) / ch; got > 0 {
			b.starved = false
			b.engine.PutSamples(scratch, got)
			continue
		}

		b.stats.emptyPulls.Add(1)
		if b.starved {
			clear(scratch)
			b.engine.PutSamples(scratch, scratchFrames)
			b.stats.silenceFlushes.Add(1)

			if ce := b.logger.Check(zap.DebugLevel, "supplier starved, flushing engine with silence"); ce != nil {
				ce.Write(
					zap.Int("silence_frames", scratchFrames),
					zap.Int("remaining_frames", frames-received),
					zap.Float64("speed", speed),
				)
			}
		}
		b.starved = true
	}

	b.stats.framesOut.Add(uint64(received))
	return b.state.BaseRate * b.state.TempoRatio * float64(received)
}

// OnFormatChanged reconfigures the scaler for a new output format.
//
// The scratch buffer is cleared and grown to hold the seek offset in the new
// channel layout. The engine is then primed at a very slow tempo so its
// largest internal allocation happens here rather than while rendering. An
// invalid format leaves the scaler unconfigured.
func (b *BufferScaler) OnFormatChanged(format SignalFormat) {
	clear(b.scratch)
	b.format = format

	if !format.IsValid() {
		b.logger.Debug("output format invalid, rendering disabled",
			zap.Int("sample_rate", format.SampleRate),
			zap.Int("channels", format.Channels))
		return
	}

	b.engine.SetChannels(format.Channels)
	b.engine.SetSampleRate(format.SampleRate)

	if need := format.FramesToSamples(b.seekOffsetFrames); len(b.scratch) < need {
		b.scratch = make([]float32, need)
	}

	b.engine.SetTempo(primeTempo)
	b.engine.PutSamples(b.scratch, b.seekOffsetFrames)
	b.engine.Clear()
	if b.state.TempoRatio > 0 {
		b.engine.SetTempo(b.state.TempoRatio)
	}

	b.logger.Debug("output format changed",
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Int("scratch_samples", len(b.scratch)))
}

// Clear resets the engine and pre-feeds the seek offset worth of silence, so
// the first frame rendered afterwards lines up with the new source position.
func (b *BufferScaler) Clear() {
	b.engine.Clear()
	clear(b.scratch)
	b.starved = false

	if b.format.IsValid() {
		b.engine.PutSamples(b.scratch, b.seekOffsetFrames)
	}
}

// Format returns the current output format.
func (b *BufferScaler) Format() SignalFormat {
	return b.format
}

// ScratchCapacity returns the scratch buffer size in samples.
func (b *BufferScaler) ScratchCapacity() int {
	return len(b.scratch)
}

// SeekOffsetFrames returns the silence pre-fed by Clear.
func (b *BufferScaler) SeekOffsetFrames() int {
	return b.seekOffsetFrames
}
