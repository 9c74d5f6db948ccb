package scaler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tphakala/go-audio-scaler/internal/testutil"
)

var stereo48k = SignalFormat{SampleRate: 48000, Channels: 2}

// fakeEngine passes frames through unchanged and records every call.
type fakeEngine struct {
	channels int
	queue    []float32
	ops      []string
	puts     int
	receives int
}

func (e *fakeEngine) SetChannels(channels int) {
	e.channels = channels
	e.ops = append(e.ops, fmt.Sprintf("channels %d", channels))
}

func (e *fakeEngine) SetSampleRate(sampleRate int) {
	e.ops = append(e.ops, fmt.Sprintf("samplerate %d", sampleRate))
}

func (e *fakeEngine) SetRate(rate float64) {
	e.ops = append(e.ops, fmt.Sprintf("rate %g", rate))
}

func (e *fakeEngine) SetTempo(tempo float64) {
	e.ops = append(e.ops, fmt.Sprintf("tempo %g", tempo))
}

func (e *fakeEngine) SetPitch(pitch float64) {
	e.ops = append(e.ops, fmt.Sprintf("pitch %g", pitch))
}

func (e *fakeEngine) PutSamples(buf []float32, frames int) {
	e.puts++
	e.ops = append(e.ops, fmt.Sprintf("put %d", frames))
	e.queue = append(e.queue, buf[:frames*e.channels]...)
}

func (e *fakeEngine) ReceiveSamples(buf []float32, maxFrames int) int {
	e.receives++
	n := min(maxFrames, len(e.queue)/e.channels, len(buf)/e.channels)
	copy(buf, e.queue[:n*e.channels])
	e.queue = e.queue[n*e.channels:]
	return n
}

func (e *fakeEngine) Clear() {
	e.ops = append(e.ops, "clear")
	e.queue = e.queue[:0]
}

// resetLog forgets recorded calls.
func (e *fakeEngine) resetLog() {
	e.ops = nil
	e.puts = 0
	e.receives = 0
}

// scriptedSupplier delivers a ramp (frame i holds i on channel 0 and -i on
// the others). Each script entry caps one pull; a negative entry fills the
// buffer. After the script it fills the buffer, or returns nothing when
// starve is set.
type scriptedSupplier struct {
	channels int
	script   []int
	starve   bool
	next     int
	speeds   []float64
}

func (s *scriptedSupplier) GetNextSamples(speed float64, buf []float32) int {
	s.speeds = append(s.speeds, speed)

	frames := len(buf) / s.channels
	switch {
	case len(s.script) > 0:
		if want := s.script[0]; want >= 0 {
			frames = min(frames, want)
		}
		s.script = s.script[1:]
	case s.starve:
		frames = 0
	}

	copy(buf, testutil.Ramp(s.channels, frames, s.next))
	s.next += frames
	return frames * s.channels
}

func newTestScaler(t *testing.T, supplier ReadAheadSupplier, format SignalFormat) (*BufferScaler, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{channels: format.Channels}
	b, err := New(supplier, &Config{Format: format, Engine: eng})
	require.NoError(t, err)
	eng.resetLog()
	return b, eng
}

func TestNew_Validation(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}

	testCases := []struct {
		name     string
		supplier ReadAheadSupplier
		config   *Config
		wantErr  error
	}{
		{"nil supplier", nil, nil, ErrInvalidConfig},
		{"negative seek offset", supplier, &Config{SeekOffsetFrames: -1}, ErrInvalidConfig},
		{"zero sample rate", supplier, &Config{Format: SignalFormat{Channels: 2}}, ErrInvalidFormat},
		{"too many channels", supplier, &Config{Format: SignalFormat{SampleRate: 48000, Channels: 1000}}, ErrInvalidFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := New(tc.supplier, tc.config)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, b)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(&scriptedSupplier{channels: 2}, nil)
	require.NoError(t, err)

	assert.False(t, b.Format().IsValid(), "unconfigured until a format arrives")
	assert.Equal(t, DefaultSeekOffsetFrames, b.SeekOffsetFrames())
	assert.Equal(t, ScaleState{BaseRate: 1, TempoRatio: 1, PitchRatio: 1}, b.State())
	assert.Zero(t, b.ScratchCapacity())
}

func TestScaleBuffer_UnityPassThrough(t *testing.T) {
	t.Run("fake engine", func(t *testing.T) {
		supplier := &scriptedSupplier{channels: 2}
		b, _ := newTestScaler(t, supplier, stereo48k)

		out := make([]float32, 2*1000)
		assert.Equal(t, 1000.0, b.ScaleBuffer(out, 1000))
		assert.Equal(t, testutil.Ramp(2, 1000, 0), out)
	})

	t.Run("default engine", func(t *testing.T) {
		supplier := &scriptedSupplier{channels: 2}
		b, err := New(supplier, &Config{Format: stereo48k})
		require.NoError(t, err)

		out := make([]float32, 2*1000)
		assert.Equal(t, 1000.0, b.ScaleBuffer(out, 1000))
		assert.Equal(t, testutil.Ramp(2, 1000, 0), out)

		assert.Equal(t, 500.0, b.ScaleBuffer(out, 500))
		assert.Equal(t, testutil.Ramp(2, 500, 1000), out[:1000])
	})
}

func TestScaleBuffer_StoppedFastPath(t *testing.T) {
	testCases := []struct {
		name     string
		baseRate float64
		tempo    float64
		pitch    float64
	}{
		{"zero base rate", 0, 1, 1},
		{"zero tempo", 1, 0, 1},
		{"tempo below min seek speed", 1, MinSeekSpeed / 2, 1},
		{"reverse tempo below min seek speed", 1, -MinSeekSpeed / 2, 1},
		{"zero pitch", 1, 1, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			supplier := &scriptedSupplier{channels: 2}
			b, eng := newTestScaler(t, supplier, stereo48k)
			b.SetScaleParameters(tc.baseRate, tc.tempo, tc.pitch)
			eng.resetLog()

			out := make([]float32, 2*256)
			for i := range out {
				out[i] = 0.5
			}

			assert.Zero(t, b.ScaleBuffer(out, 256))
			testutil.AssertSilent(t, out)
			assert.Empty(t, supplier.speeds, "supplier must not be called")
			assert.Zero(t, eng.puts)
			assert.Zero(t, eng.receives)
			assert.Equal(t, uint64(1), b.Stats().SilentCalls)
		})
	}
}

func TestScaleBuffer_SingleEmptyPullIsRetried(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2, script: []int{0}}
	b, _ := newTestScaler(t, supplier, stereo48k)

	out := make([]float32, 2*300)
	assert.Equal(t, 300.0, b.ScaleBuffer(out, 300))
	assert.Equal(t, testutil.Ramp(2, 300, 0), out)

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.EmptyPulls)
	assert.Zero(t, stats.SilenceFlushes)
}

func TestScaleBuffer_ConsecutiveEmptyPullsFlushSilence(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	supplier := &scriptedSupplier{channels: 2, script: []int{0, 0}}
	eng := &fakeEngine{channels: 2}
	b, err := New(supplier, &Config{Format: stereo48k, Engine: eng, Logger: zap.New(core)})
	require.NoError(t, err)

	const frames = 600
	out := make([]float32, 2*frames)
	assert.Equal(t, float64(frames), b.ScaleBuffer(out, frames))

	flushed := DefaultSeekOffsetFrames
	testutil.AssertSilent(t, out[:2*flushed])
	assert.Equal(t, testutil.Ramp(2, frames-flushed, 0), out[2*flushed:])

	stats := b.Stats()
	assert.Equal(t, uint64(2), stats.EmptyPulls)
	assert.Equal(t, uint64(1), stats.SilenceFlushes)

	entries := logs.FilterMessage("supplier starved, flushing engine with silence").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(flushed), entries[0].ContextMap()["silence_frames"])
}

func TestScaleBuffer_PersistentStarvationTerminates(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2, starve: true}
	b, _ := newTestScaler(t, supplier, stereo48k)

	const frames = 2000
	out := make([]float32, 2*frames)
	assert.Equal(t, float64(frames), b.ScaleBuffer(out, frames))
	testutil.AssertSilent(t, out)

	// the first empty pull is free, every later one flushes
	flushes := (frames + DefaultSeekOffsetFrames - 1) / DefaultSeekOffsetFrames
	stats := b.Stats()
	assert.Equal(t, uint64(flushes), stats.SilenceFlushes)
	assert.Equal(t, uint64(flushes+1), stats.EmptyPulls)
}

func TestScaleBuffer_StarvationFlagResetsEachCall(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2, starve: true}
	b, _ := newTestScaler(t, supplier, stereo48k)

	out := make([]float32, 2*2000)
	b.ScaleBuffer(out, 2000)
	require.Equal(t, uint64(4), b.Stats().SilenceFlushes)

	// 76 flushed frames are still queued; the next empty pull must be
	// retried rather than flushed
	supplier.starve = false
	supplier.script = []int{0}
	b.ScaleBuffer(out, 100)

	assert.Equal(t, uint64(4), b.Stats().SilenceFlushes)
	testutil.AssertSilent(t, out[:2*76])
	assert.Equal(t, testutil.Ramp(2, 24, 0), out[2*76:2*100])
}

func TestScaleBuffer_Accounting(t *testing.T) {
	testCases := []struct {
		name     string
		baseRate float64
		tempo    float64
		pitch    float64
	}{
		{"unity", 1, 1, 1},
		{"cd on dat", 44100.0 / 48000.0, 1, 1},
		{"faster", 1, 1.3, 1},
		{"pitch ignored", 1, 1, 1.5},
		{"everything", 1.0884, 0.8, 0.7},
		{"backwards", 1, -0.5, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			supplier := &scriptedSupplier{channels: 2}
			b, _ := newTestScaler(t, supplier, stereo48k)
			tempo, _ := b.SetScaleParameters(tc.baseRate, tc.tempo, tc.pitch)
			require.Equal(t, tc.tempo, tempo)

			out := make([]float32, 2*777)
			got := b.ScaleBuffer(out, 777)

			magnitude, backwards := ClampTempo(tc.tempo)
			assert.InDelta(t, tc.baseRate*magnitude*777, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)

			require.NotEmpty(t, supplier.speeds)
			wantSpeed := tc.baseRate * magnitude
			if backwards {
				wantSpeed = -wantSpeed
			}
			assert.InDelta(t, wantSpeed, supplier.speeds[0], 1e-12)
		})
	}
}

func TestScaleBuffer_DirectionReversal(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	b, eng := newTestScaler(t, supplier, stereo48k)
	b.SetScaleParameters(1, 1.2, 1)
	capacity := b.ScratchCapacity()

	out := make([]float32, 2*100)
	b.ScaleBuffer(out, 100)
	eng.resetLog()

	b.SetScaleParameters(1, -1.2, 1)
	assert.Empty(t, eng.ops, "only the direction changed")
	assert.True(t, b.State().Backwards)

	eng.queue = eng.queue[:0]
	b.ScaleBuffer(out, 100)
	assert.InDelta(t, -1.2, supplier.speeds[len(supplier.speeds)-1], 1e-12)
	assert.Equal(t, capacity, b.ScratchCapacity())
}

func TestScaleBuffer_ShortOutputClampsFrames(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	b, _ := newTestScaler(t, supplier, stereo48k)

	out := make([]float32, 2*10)
	assert.Equal(t, 10.0, b.ScaleBuffer(out, 50))
	assert.Zero(t, b.ScaleBuffer(out, 0))
}

func TestOnFormatChanged_PrimesEngine(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	b, eng := newTestScaler(t, supplier, SignalFormat{})

	b.OnFormatChanged(stereo48k)
	assert.Equal(t, []string{
		"channels 2",
		"samplerate 48000",
		"tempo 0.1",
		"put 519",
		"clear",
		"tempo 1",
	}, eng.ops)
	assert.Empty(t, eng.queue)

	eng.resetLog()
	b.SetScaleParameters(1, 0, 1)
	b.OnFormatChanged(SignalFormat{SampleRate: 44100, Channels: 2})
	assert.Equal(t, []string{
		"channels 2",
		"samplerate 44100",
		"tempo 0.1",
		"put 519",
		"clear",
	}, eng.ops, "a stopped tempo is not restored")
}

func TestOnFormatChanged_ScratchNeverShrinks(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	b, eng := newTestScaler(t, supplier, stereo48k)
	assert.Equal(t, 2*DefaultSeekOffsetFrames, b.ScratchCapacity())

	steps := []struct {
		format SignalFormat
		want   int
	}{
		{SignalFormat{SampleRate: 48000, Channels: 6}, 6 * DefaultSeekOffsetFrames},
		{SignalFormat{SampleRate: 44100, Channels: 1}, 6 * DefaultSeekOffsetFrames},
		{SignalFormat{SampleRate: 96000, Channels: 2}, 6 * DefaultSeekOffsetFrames},
	}
	for _, step := range steps {
		eng.channels = step.format.Channels
		b.OnFormatChanged(step.format)
		b.Clear()
		assert.Equal(t, step.want, b.ScratchCapacity(), "format %s", step.format)
		assert.GreaterOrEqual(t, b.ScratchCapacity(), step.format.FramesToSamples(DefaultSeekOffsetFrames))
	}
}

func TestOnFormatChanged_InvalidFormatDisablesRendering(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	b, eng := newTestScaler(t, supplier, stereo48k)

	b.OnFormatChanged(SignalFormat{SampleRate: 48000})
	assert.Empty(t, eng.ops, "engine untouched")

	out := []float32{1, 1, 1, 1}
	assert.Zero(t, b.ScaleBuffer(out, 2))
	testutil.AssertSilent(t, out)
	assert.Empty(t, supplier.speeds)
}

func TestClear_PrefeedsSeekOffset(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2}
	eng := &fakeEngine{channels: 2}
	b, err := New(supplier, &Config{Format: stereo48k, Engine: eng, SeekOffsetFrames: 64})
	require.NoError(t, err)
	eng.resetLog()

	b.Clear()
	assert.Equal(t, []string{"clear", "put 64"}, eng.ops)

	out := make([]float32, 2*100)
	b.ScaleBuffer(out, 100)
	testutil.AssertSilent(t, out[:2*64])
	assert.Equal(t, testutil.Ramp(2, 36, 0), out[2*64:])
}

func TestScaleBuffer_DefaultEngineStretches(t *testing.T) {
	const rate = 48000
	input := testutil.Sine(440, rate, 2, 4*rate, 0.5)
	supplier := &sliceSupplier{samples: input}

	b, err := New(supplier, &Config{Format: SignalFormat{SampleRate: rate, Channels: 2}})
	require.NoError(t, err)
	b.SetScaleParameters(1, 1.5, PitchRatioFromSemitones(3))

	out := make([]float32, 2*rate)
	got := b.ScaleBuffer(out, rate)
	assert.InDelta(t, 1.5*rate, got, 1e-6)
	testutil.AssertNoNaNOrInf(t, out)

	freq := testutil.DominantFrequency(testutil.Channel(out, 2, 0)[16384:32768], rate)
	assert.InDelta(t, 440*PitchRatioFromSemitones(3), freq, 10)
}

func TestScaleBuffer_DefaultEngineStarvationTerminates(t *testing.T) {
	supplier := &scriptedSupplier{channels: 2, starve: true}
	b, err := New(supplier, &Config{Format: stereo48k})
	require.NoError(t, err)
	b.SetScaleParameters(1, 0.5, 1)

	out := make([]float32, 2*4096)
	assert.Equal(t, 0.5*4096, b.ScaleBuffer(out, 4096))
	testutil.AssertSilent(t, out)
	assert.Positive(t, b.Stats().SilenceFlushes)
}

// loopSupplier repeats one preallocated block forever.
type loopSupplier struct {
	block []float32
}

func (s *loopSupplier) GetNextSamples(_ float64, buf []float32) int {
	return copy(buf, s.block)
}

func TestScaleBuffer_DefaultEngineNoAllocations(t *testing.T) {
	supplier := &loopSupplier{block: testutil.Sine(480, 48000, 2, DefaultSeekOffsetFrames, 0.5)}
	b, err := New(supplier, &Config{Format: stereo48k})
	require.NoError(t, err)
	b.SetScaleParameters(44100.0/48000.0, 1.2, 1.05)

	out := make([]float32, 2*512)
	for range 200 {
		b.ScaleBuffer(out, 512)
	}

	allocs := testing.AllocsPerRun(100, func() {
		b.ScaleBuffer(out, 512)
	})
	assert.Zero(t, allocs)
}
