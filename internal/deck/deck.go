// Package deck couples a track, its read-ahead manager and a BufferScaler
// into one playback voice with a thread-safe control surface.
//
// Process and Run belong to a single render goroutine. All other exported
// methods may be called from any goroutine; they never block the render
// goroutine.
package deck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	scaler "github.com/tphakala/go-audio-scaler"
	"github.com/tphakala/go-audio-scaler/internal/readahead"
)

// Common errors returned by the package.
var (
	// ErrInvalidConfig indicates invalid deck configuration.
	ErrInvalidConfig = errors.New("invalid deck configuration")

	// ErrQueueFull indicates the render goroutine has not drained earlier
	// commands yet.
	ErrQueueFull = errors.New("deck command queue full")
)

const defaultQueueSize = 16

// Config holds deck configuration.
type Config struct {
	// OutputRate is the render sample rate in Hz. The channel layout follows
	// the track.
	OutputRate int

	// QueueSize bounds pending seek and loop commands. Zero selects a default.
	QueueSize int

	// SeekOffsetFrames is passed to the scaler. Zero selects the default.
	SeekOffsetFrames int

	// Engine overrides the built-in stretch engine.
	Engine scaler.TimeStretchEngine

	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Sink receives each rendered block from Run. The block is reused after the
// call returns.
type Sink func(block []float32) error

type commandKind uint8

const (
	commandSeek commandKind = iota + 1
	commandSetLoop
	commandClearLoop
)

type command struct {
	kind       commandKind
	frame      int
	start, end int
}

// Deck is one playback voice.
type Deck struct {
	id       uuid.UUID
	track    *readahead.Track
	format   scaler.SignalFormat
	baseRate float64
	logger   *zap.Logger

	manager  *readahead.Manager
	scaler   *scaler.BufferScaler
	handoff  *scaler.ParamHandoff
	commands chan command

	// render goroutine only
	position float64

	positionBits atomic.Uint64
	blocks       atomic.Uint64

	// control side, serialises Publish
	mu        sync.Mutex
	requested scaler.ScaleRequest
	loop      *LoopSnapshot
}

// New creates a deck playing track from its start at unity tempo and pitch.
func New(track *readahead.Track, config Config) (*Deck, error) {
	if track == nil {
		return nil, fmt.Errorf("%w: track is nil", ErrInvalidConfig)
	}
	if config.QueueSize < 0 {
		return nil, fmt.Errorf("%w: queue size must not be negative", ErrInvalidConfig)
	}
	queueSize := config.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}

	format := scaler.SignalFormat{SampleRate: config.OutputRate, Channels: track.Channels()}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New()
	logger = logger.With(zap.String("deck", id.String()))

	manager, err := readahead.NewManager(track, logger)
	if err != nil {
		return nil, err
	}

	bs, err := scaler.New(manager, &scaler.Config{
		Format:           format,
		Engine:           config.Engine,
		Logger:           logger,
		SeekOffsetFrames: config.SeekOffsetFrames,
	})
	if err != nil {
		return nil, err
	}

	initial := scaler.ScaleRequest{
		BaseRate:   scaler.BaseRateFor(track.SampleRate(), config.OutputRate),
		TempoRatio: 1,
		PitchRatio: 1,
	}
	bs.SetScaleParameters(initial.BaseRate, initial.TempoRatio, initial.PitchRatio)

	return &Deck{
		id:        id,
		track:     track,
		format:    format,
		baseRate:  initial.BaseRate,
		logger:    logger,
		manager:   manager,
		scaler:    bs,
		handoff:   scaler.NewParamHandoff(initial),
		commands:  make(chan command, queueSize),
		requested: initial,
	}, nil
}

// ID returns the deck identifier.
func (d *Deck) ID() uuid.UUID { return d.id }

// Track returns the loaded track.
func (d *Deck) Track() *readahead.Track { return d.track }

// Format returns the render format.
func (d *Deck) Format() scaler.SignalFormat { return d.format }

// BaseRate returns the track rate divided by the output rate.
func (d *Deck) BaseRate() float64 { return d.baseRate }

// =============================================================================
// Control side
// =============================================================================

// SetParams requests a new tempo and pitch. A negative tempo plays
// backwards; a zero tempo or pitch stops playback.
func (d *Deck) SetParams(tempo, pitch float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishLocked(tempo, pitch)
}

// SetTempo requests a new tempo, keeping the pitch.
func (d *Deck) SetTempo(tempo float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishLocked(tempo, d.requested.PitchRatio)
}

// SetKey requests a key shift in semitones, keeping the tempo.
func (d *Deck) SetKey(semitones float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishLocked(d.requested.TempoRatio, scaler.PitchRatioFromSemitones(semitones))
}

func (d *Deck) publishLocked(tempo, pitch float64) {
	d.requested = scaler.ScaleRequest{
		BaseRate:   d.baseRate,
		TempoRatio: tempo,
		PitchRatio: pitch,
	}
	d.handoff.Publish(d.requested)
}

// Params returns the most recently requested parameters.
func (d *Deck) Params() scaler.ScaleRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requested
}

// Seek queues a jump to frame. The position is clamped to the track.
func (d *Deck) Seek(frame int) error {
	return d.enqueue(command{kind: commandSeek, frame: frame})
}

// SeekTime queues a jump to offset from the track start.
func (d *Deck) SeekTime(offset time.Duration) error {
	frame := int(offset.Seconds() * float64(d.track.SampleRate()))
	return d.Seek(frame)
}

// SetLoop queues a loop over track frames [start, end).
func (d *Deck) SetLoop(start, end int) error {
	if start < 0 || end <= start || end > d.track.Frames() {
		return fmt.Errorf("%w: [%d, %d) in a %d-frame track",
			readahead.ErrInvalidLoop, start, end, d.track.Frames())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enqueue(command{kind: commandSetLoop, start: start, end: end}); err != nil {
		return err
	}
	d.loop = &LoopSnapshot{Start: start, End: end}
	return nil
}

// ClearLoop queues removal of the loop.
func (d *Deck) ClearLoop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enqueue(command{kind: commandClearLoop}); err != nil {
		return err
	}
	d.loop = nil
	return nil
}

func (d *Deck) enqueue(c command) error {
	select {
	case d.commands <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Position returns the play position in track frames as of the last
// rendered block.
func (d *Deck) Position() float64 {
	return math.Float64frombits(d.positionBits.Load())
}

// PositionTime returns the play position as an offset from the track start.
func (d *Deck) PositionTime() time.Duration {
	return time.Duration(d.Position() / float64(d.track.SampleRate()) * float64(time.Second))
}

// =============================================================================
// Render side
// =============================================================================

// Process renders one block into out, which holds whole frames in the
// deck's format, and returns the number of frames rendered.
func (d *Deck) Process(out []float32) int {
	d.handoff.Apply(d.scaler)
	d.drainCommands()

	frames := d.format.SamplesToFrames(len(out))
	consumed := d.scaler.ScaleBuffer(out, frames)
	if consumed > 0 {
		d.position = d.manager.PlayPositionFromLog(d.position, consumed)
	}

	d.positionBits.Store(math.Float64bits(d.position))
	d.blocks.Add(1)
	return frames
}

func (d *Deck) drainCommands() {
	for {
		select {
		case c := <-d.commands:
			d.apply(c)
		default:
			return
		}
	}
}

func (d *Deck) apply(c command) {
	switch c.kind {
	case commandSeek:
		d.manager.Seek(c.frame)
		d.scaler.Clear()
		d.position = float64(d.manager.Position())

	case commandSetLoop:
		if err := d.manager.SetLoop(c.start, c.end); err != nil {
			d.logger.Warn("loop rejected", zap.Error(err))
		}

	case commandClearLoop:
		d.manager.ClearLoop()
	}
}

// AtEdge reports whether playback has consumed the track up to the edge it
// is heading towards. Render goroutine only.
func (d *Deck) AtEdge() bool {
	if d.scaler.State().Backwards {
		return d.position <= 0
	}
	return d.position >= float64(d.track.Frames())
}

// Run renders blocks of blockFrames frames in real time and passes each to
// sink until ctx is done or sink fails. It returns ctx.Err() or the sink
// error.
func (d *Deck) Run(ctx context.Context, blockFrames int, sink Sink) error {
	if blockFrames <= 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, blockFrames)
	}
	if sink == nil {
		return fmt.Errorf("%w: sink is nil", ErrInvalidConfig)
	}

	block := make([]float32, d.format.FramesToSamples(blockFrames))
	period := time.Duration(blockFrames) * time.Second / time.Duration(d.format.SampleRate)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	d.logger.Info("deck rendering",
		zap.String("track", d.track.Name()),
		zap.Int("block_frames", blockFrames),
		zap.Duration("period", period))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Process(block)
			if err := sink(block); err != nil {
				return fmt.Errorf("deck sink: %w", err)
			}
		}
	}
}
