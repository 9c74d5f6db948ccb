package scaler

import (
	"sync/atomic"
)

// Stats is a snapshot of BufferScaler counters.
type Stats struct {
	// Calls is the number of ScaleBuffer calls.
	Calls uint64 `json:"calls" yaml:"calls"`

	// FramesOut is the number of frames received from the engine.
	FramesOut uint64 `json:"frames_out" yaml:"frames_out"`

	// SilentCalls counts calls that took the stopped fast path.
	SilentCalls uint64 `json:"silent_calls" yaml:"silent_calls"`

	// EmptyPulls counts supplier pulls that returned no frames.
	EmptyPulls uint64 `json:"empty_pulls" yaml:"empty_pulls"`

	// SilenceFlushes counts silence blocks fed after consecutive empty pulls.
	SilenceFlushes uint64 `json:"silence_flushes" yaml:"silence_flushes"`
}

// counters are written by the render thread and read from anywhere.
type counters struct {
	calls          atomic.Uint64
	framesOut      atomic.Uint64
	silentCalls    atomic.Uint64
	emptyPulls     atomic.Uint64
	silenceFlushes atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Calls:          c.calls.Load(),
		FramesOut:      c.framesOut.Load(),
		SilentCalls:    c.silentCalls.Load(),
		EmptyPulls:     c.emptyPulls.Load(),
		SilenceFlushes: c.silenceFlushes.Load(),
	}
}

// Stats returns the scaler counters. It is safe to call from any goroutine.
func (b *BufferScaler) Stats() Stats {
	return b.stats.snapshot()
}
