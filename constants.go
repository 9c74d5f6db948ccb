package scaler

// Seek speed limits applied to the tempo magnitude
const (
	// MinSeekSpeed is the slowest tempo magnitude that still plays.
	// Anything slower is a full stop.
	MinSeekSpeed = 0.010

	// MaxSeekSpeed is the fastest tempo magnitude.
	MaxSeekSpeed = 100.0
)

// Engine priming and reset
const (
	// DefaultSeekOffsetFrames is the silence pre-fed after a reset to cover
	// the engine's look-ahead at unity rate.
	DefaultSeekOffsetFrames = 519

	// primeTempo is the slow tempo used to force the engine's largest
	// internal allocation during a format change.
	primeTempo = 0.1
)

// Format limits
const (
	maxChannels   = 256     // Maximum supported channel count
	maxSampleRate = 1536000 // Maximum supported sample rate in Hz
)

// Default engine format used before the first format change
const (
	defaultEngineChannels   = 2
	defaultEngineSampleRate = 44100
)

// Pitch utilities
const (
	semitonesPerOctave = 12.0
)
