// Package readahead supplies raw track frames to a scaler on demand, in
// either direction, with loop handling and a log of what was delivered.
package readahead

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"
)

// Common errors returned by the package.
var (
	// ErrInvalidTrack indicates unusable audio data or format.
	ErrInvalidTrack = errors.New("invalid track")

	// ErrInvalidLoop indicates loop points outside the track or out of order.
	ErrInvalidLoop = errors.New("invalid loop")
)

const (
	maxChannels      = 256
	unsigned8BitBias = 128
	bitDepth8        = 8
)

// Track is decoded interleaved float32 PCM held in memory.
type Track struct {
	name       string
	samples    []float32
	sampleRate int
	channels   int
}

// NewTrack wraps interleaved samples. The slice is not copied.
func NewTrack(name string, samples []float32, sampleRate, channels int) (*Track, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidTrack, sampleRate)
	}
	if channels < 1 || channels > maxChannels {
		return nil, fmt.Errorf("%w: channels %d outside [1, %d]", ErrInvalidTrack, channels, maxChannels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a whole number of %d-channel frames",
			ErrInvalidTrack, len(samples), channels)
	}

	return &Track{
		name:       name,
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Name returns the track name.
func (t *Track) Name() string { return t.name }

// SampleRate returns the sample rate in Hz.
func (t *Track) SampleRate() int { return t.sampleRate }

// Channels returns the number of channels.
func (t *Track) Channels() int { return t.channels }

// Frames returns the track length in frames.
func (t *Track) Frames() int { return len(t.samples) / t.channels }

// Samples returns the interleaved sample data.
func (t *Track) Samples() []float32 { return t.samples }

// Duration returns the track length.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.Frames()) * time.Second / time.Duration(t.sampleRate)
}

// DecodeWAV reads a whole PCM WAV stream into a Track, normalising samples
// to [-1, 1].
func DecodeWAV(r io.ReadSeeker, name string) (*Track, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM WAV stream", ErrInvalidTrack)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth < bitDepth8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidTrack, bitDepth)
	}

	samples := make([]float32, len(buf.Data))
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	if bitDepth == bitDepth8 {
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			samples[i] = float32(float64(v-unsigned8BitBias) * scale)
		}
	} else {
		for i, v := range buf.Data {
			samples[i] = float32(float64(v) * scale)
		}
	}

	return NewTrack(name, samples, buf.Format.SampleRate, buf.Format.NumChannels)
}

// LoadWAV decodes the WAV file at path. The track is named after the file.
func LoadWAV(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeWAV(f, filepath.Base(path))
}
