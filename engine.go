package scaler

import (
	"fmt"

	"github.com/tphakala/go-audio-scaler/internal/engine"
)

// Compile-time interface check.
var _ TimeStretchEngine = (*engine.Stretcher)(nil)

// NewDefaultEngine creates the built-in engine: a cubic rate transposer with
// an anti-alias FIR followed or preceded by a WSOLA tempo stage.
// An invalid format falls back to 44.1 kHz stereo until the first format
// change.
func NewDefaultEngine(format SignalFormat) (TimeStretchEngine, error) {
	if !format.IsValid() {
		format = SignalFormat{
			SampleRate: defaultEngineSampleRate,
			Channels:   defaultEngineChannels,
		}
	}

	s, err := engine.NewStretcher(format.Channels, format.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return s, nil
}
