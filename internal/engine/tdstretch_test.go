package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-scaler/internal/pipeline"
	"github.com/tphakala/go-audio-scaler/internal/testutil"
)

func TestTimeStretch_AutoSequence(t *testing.T) {
	testCases := []struct {
		name     string
		tempo    float64
		wantSeq  int
		wantSeek int
	}{
		{"slowest", 0.25, 4320, 960},
		{"below low knee", 0.4, 4320, 960},
		{"top knee", 2, 1920, 720},
		{"fastest", 4, 1920, 720},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewTimeStretch(2, 48000)
			s.SetTempo(tc.tempo)

			assert.Equal(t, tc.wantSeq, s.SequenceFrames())
			assert.Equal(t, tc.wantSeek, s.SeekFrames())
			assert.Equal(t, 384, s.OverlapFrames())

			skip := int(tc.tempo*float64(tc.wantSeq-384) + 0.5)
			assert.Equal(t, max(skip+384, tc.wantSeq)+tc.wantSeek, s.InputRequirement())
		})
	}
}

func TestTimeStretch_OverlapAlignment(t *testing.T) {
	s := NewTimeStretch(1, 44100)
	assert.Equal(t, 352, s.OverlapFrames())

	s.SetSampleRate(1000)
	assert.Equal(t, minOverlapFrames, s.OverlapFrames())
}

func TestTimeStretch_WaitsForInputRequirement(t *testing.T) {
	s := NewTimeStretch(1, 48000)
	s.SetTempo(1.5)

	in := pipeline.NewFrameFIFO(1, 0)
	out := pipeline.NewFrameFIFO(1, 0)

	in.Put(make([]float32, s.InputRequirement()-1), s.InputRequirement()-1)
	s.Process(in, out)
	assert.Zero(t, out.Available())

	in.Put([]float32{0}, 1)
	s.Process(in, out)
	assert.Equal(t, s.SequenceFrames()-2*s.OverlapFrames(), out.Available(),
		"first sequence has no cross-fade")
}

func TestTimeStretch_Reset(t *testing.T) {
	input := testutil.Sine(300, 48000, 1, 30000, 0.5)

	run := func(s *TimeStretch) []float32 {
		in := pipeline.NewFrameFIFO(1, 0)
		out := pipeline.NewFrameFIFO(1, 0)
		in.Put(input, len(input))
		s.Process(in, out)
		return append([]float32(nil), out.Begin()...)
	}

	s := NewTimeStretch(1, 48000)
	s.SetTempo(0.8)
	first := run(s)
	require.NotEmpty(t, first)

	s.Reset()
	second := run(s)

	fresh := NewTimeStretch(1, 48000)
	fresh.SetTempo(0.8)
	assert.Equal(t, run(fresh), second, "output after reset should match a fresh stage")
	assert.Equal(t, first, second)
}

func TestTimeStretch_SeekPrefersMatchingPhase(t *testing.T) {
	s := NewTimeStretch(1, 8000)
	n := s.OverlapFrames()

	// midBuffer holds a burst, and the input holds the same burst at a known
	// offset inside the seek range
	burst := testutil.Sine(500, 8000, 1, n, 1)
	copy(s.midBuffer, burst)

	target := s.SeekFrames() / 2
	src := make([]float32, s.SeekFrames()+n)
	copy(src[target:], burst)

	assert.Equal(t, target, s.seekBestOverlap(src))
}
