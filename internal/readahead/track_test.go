package readahead

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrack_Validation(t *testing.T) {
	testCases := []struct {
		name       string
		samples    []float32
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{"stereo", make([]float32, 8), 44100, 2, false},
		{"empty", nil, 48000, 1, false},
		{"zero rate", make([]float32, 4), 0, 2, true},
		{"zero channels", make([]float32, 4), 44100, 0, true},
		{"too many channels", make([]float32, 4), 44100, maxChannels + 1, true},
		{"partial frame", make([]float32, 5), 44100, 2, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			track, err := NewTrack("t", tc.samples, tc.sampleRate, tc.channels)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTrack)
				assert.Nil(t, track)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tc.samples)/tc.channels, track.Frames())
		})
	}
}

func TestTrack_Accessors(t *testing.T) {
	track, err := NewTrack("tone", make([]float32, 2*48000), 48000, 2)
	require.NoError(t, err)

	assert.Equal(t, "tone", track.Name())
	assert.Equal(t, 48000, track.SampleRate())
	assert.Equal(t, 2, track.Channels())
	assert.Equal(t, 48000, track.Frames())
	assert.Equal(t, time.Second, track.Duration())
	assert.Len(t, track.Samples(), 2*48000)
}

// writeTestWAV encodes ints as a 16-bit WAV file and returns its path.
func writeTestWAV(t *testing.T, data []int, sampleRate, channels int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadWAV_Normalises(t *testing.T) {
	data := []int{0, 0, 16384, -16384, 32767, -32768}
	path := writeTestWAV(t, data, 22050, 2)

	track, err := LoadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, "in.wav", track.Name())
	assert.Equal(t, 22050, track.SampleRate())
	assert.Equal(t, 2, track.Channels())
	require.Equal(t, 3, track.Frames())

	want := []float32{0, 0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	assert.InDeltaSlice(t, want, track.Samples(), 1e-6)
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not riff data")), "bad")
	require.ErrorIs(t, err, ErrInvalidTrack)
}

func TestLoadWAV_MissingFile(t *testing.T) {
	_, err := LoadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}
