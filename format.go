package scaler

import (
	"fmt"
)

// SignalFormat describes the output signal the scaler renders into.
// The zero value is an unconfigured format.
type SignalFormat struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels per interleaved frame.
	Channels int
}

// IsValid reports whether the format can be rendered.
func (f SignalFormat) IsValid() bool {
	return f.SampleRate > 0 && f.SampleRate <= maxSampleRate &&
		f.Channels >= 1 && f.Channels <= maxChannels
}

// Validate returns an error wrapping ErrInvalidFormat for an unusable format.
func (f SignalFormat) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate > maxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside (0, %d]", ErrInvalidFormat, f.SampleRate, maxSampleRate)
	}
	if f.Channels < 1 || f.Channels > maxChannels {
		return fmt.Errorf("%w: channels %d outside [1, %d]", ErrInvalidFormat, f.Channels, maxChannels)
	}
	return nil
}

// FramesToSamples converts a frame count to an interleaved sample count.
func (f SignalFormat) FramesToSamples(frames int) int {
	return frames * f.Channels
}

// SamplesToFrames converts an interleaved sample count to whole frames.
func (f SignalFormat) SamplesToFrames(samples int) int {
	if f.Channels <= 0 {
		return 0
	}
	return samples / f.Channels
}

func (f SignalFormat) String() string {
	return fmt.Sprintf("%d Hz/%d ch", f.SampleRate, f.Channels)
}
