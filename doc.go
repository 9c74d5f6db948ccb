// Package scaler provides real-time audio time-stretching and pitch-shifting
// for playback engines in pure Go.
//
// A [BufferScaler] sits between a pull-based audio graph and a stateful
// stretch primitive. Each render call drains processed frames from the
// [TimeStretchEngine], pulls raw frames from a [ReadAheadSupplier] when more
// are needed, and reports how far along the source timeline the call moved.
//
// # Features
//
//   - Independent tempo and pitch with forward and reverse playback
//   - Seek speeds from [MinSeekSpeed] to [MaxSeekSpeed], slower is a full stop
//   - Starvation recovery: a stalled supplier cannot hang a render call
//   - No allocation and no locks on the render path
//   - Wait-free parameter handoff for multi-threaded hosts ([ParamHandoff])
//   - Built-in engine with SIMD kernels via github.com/tphakala/simd,
//     replaceable through the [TimeStretchEngine] interface
//
// # Quick Start
//
// For one-shot stretching of a buffer in memory:
//
//	output, err := scaler.ScaleInterleaved(input, scaler.SignalFormat{SampleRate: 48000, Channels: 2}, 1.25, 1.0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For real-time rendering:
//
//	b, err := scaler.New(supplier, &scaler.Config{
//	    Format: scaler.SignalFormat{SampleRate: 48000, Channels: 2},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tempo, pitch := b.SetScaleParameters(scaler.BaseRateFor(44100, 48000), 1.1, 1.0)
//
//	// In the audio callback
//	advanced := b.ScaleBuffer(out, frames)
//
// # Accounting
//
// ScaleBuffer returns base rate × tempo × frames rendered. The value ignores
// the direction of travel and the engine's internal latency; pitch does not
// enter it because the engine folds pitch into compensating rate and tempo
// changes.
//
// # Thread Safety
//
// A BufferScaler belongs to one goroutine. Publish parameters from other
// goroutines through a [ParamHandoff] and read counters with
// [BufferScaler.Stats].
package scaler
