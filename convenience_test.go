package scaler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-scaler/internal/testutil"
)

func TestBaseRateFor(t *testing.T) {
	assert.InDelta(t, 44100.0/48000.0, BaseRateFor(RateCD, RateDAT), 1e-15)
	assert.Equal(t, 2.0, BaseRateFor(RateHiRes96, RateDAT))
	assert.Zero(t, BaseRateFor(0, RateDAT))
	assert.Zero(t, BaseRateFor(RateCD, -1))
}

func TestScaleInterleaved(t *testing.T) {
	format := SignalFormat{SampleRate: RateDAT, Channels: 2}
	input := testutil.Sine(440, RateDAT, 2, RateDAT, 0.5)

	testCases := []struct {
		name  string
		tempo float64
		pitch float64
	}{
		{"identity", 1, 1},
		{"faster", 1.5, 1},
		{"slower and higher", 0.8, 1.2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ScaleInterleaved(input, format, tc.tempo, tc.pitch)
			require.NoError(t, err)

			want := float64(len(input)) / tc.tempo
			assert.InDelta(t, want, float64(len(out)), float64(2*offlineBlockFrames+2))
			testutil.AssertNoNaNOrInf(t, out)
		})
	}
}

func TestScaleInterleaved_IdentityKeepsSamples(t *testing.T) {
	format := SignalFormat{SampleRate: RateCD, Channels: 1}
	input := testutil.Ramp(1, 3000, 1)

	out, err := ScaleInterleaved(input, format, 1, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), len(input))
	assert.Equal(t, input, out[:len(input)])
}

func TestScaleInterleaved_Errors(t *testing.T) {
	format := SignalFormat{SampleRate: RateCD, Channels: 2}

	_, err := ScaleInterleaved(nil, SignalFormat{}, 1, 1)
	require.ErrorIs(t, err, ErrInvalidFormat)

	for _, tc := range []struct{ tempo, pitch float64 }{{0, 1}, {-1, 1}, {1, 0}, {1, -1}} {
		_, err = ScaleInterleaved(make([]float32, 10), format, tc.tempo, tc.pitch)
		require.ErrorIs(t, err, ErrInvalidConfig, "tempo %v pitch %v", tc.tempo, tc.pitch)
	}
}

func TestNewStereo(t *testing.T) {
	b, err := NewStereo(&scriptedSupplier{channels: 2}, RateDAT)
	require.NoError(t, err)
	assert.Equal(t, SignalFormat{SampleRate: RateDAT, Channels: 2}, b.Format())
}
