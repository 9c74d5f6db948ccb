package readahead

import (
	"fmt"

	"go.uber.org/zap"

	scaler "github.com/tphakala/go-audio-scaler"
)

var _ scaler.ReadAheadSupplier = (*Manager)(nil)

// loopRegion is a half-open frame range [start, end).
type loopRegion struct {
	start   int
	end     int
	enabled bool
}

// Manager serves track frames to a BufferScaler.
//
// The position is a frame boundary: forward reads deliver frames from the
// position onwards, reverse reads deliver the frames before it, last frame
// first. When playback reaches an active loop boundary the next read returns
// 0 frames and the read after that continues from the other end of the loop.
//
// A Manager is not safe for concurrent use; it belongs to the render thread.
type Manager struct {
	track  *Track
	logger *zap.Logger

	position    int
	loop        loopRegion
	loopPending bool
	log         readLog
}

// NewManager creates a Manager positioned at the start of track.
func NewManager(track *Track, logger *zap.Logger) (*Manager, error) {
	if track == nil {
		return nil, fmt.Errorf("%w: track is nil", ErrInvalidTrack)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{track: track, logger: logger}, nil
}

// Track returns the track being read.
func (m *Manager) Track() *Track { return m.track }

// Position returns the read position in frames.
func (m *Manager) Position() int { return m.position }

// GetNextSamples fills buf with whole frames in the direction of speed and
// returns the number of samples written.
func (m *Manager) GetNextSamples(speed float64, buf []float32) int {
	ch := m.track.channels
	want := len(buf) / ch
	if want == 0 {
		return 0
	}

	if m.loopPending {
		m.loopPending = false
		m.jumpLoop(speed < 0)
	}

	if speed < 0 {
		return m.readReverse(buf, want) * ch
	}
	return m.readForward(buf, want) * ch
}

func (m *Manager) readForward(buf []float32, want int) int {
	ch := m.track.channels
	limit := m.track.Frames()
	looping := m.loop.enabled && m.position <= m.loop.end
	if looping {
		limit = m.loop.end
	}

	n := min(want, limit-m.position)
	if n <= 0 {
		m.loopPending = looping
		return 0
	}

	copy(buf, m.track.samples[m.position*ch:(m.position+n)*ch])
	m.log.add(float64(m.position), float64(m.position+n))
	m.position += n
	return n
}

func (m *Manager) readReverse(buf []float32, want int) int {
	ch := m.track.channels
	low := 0
	looping := m.loop.enabled && m.position >= m.loop.start
	if looping {
		low = m.loop.start
	}

	n := min(want, m.position-low)
	if n <= 0 {
		m.loopPending = looping
		return 0
	}

	src := m.track.samples
	for i := range n {
		f := m.position - 1 - i
		copy(buf[i*ch:(i+1)*ch], src[f*ch:(f+1)*ch])
	}
	m.log.add(float64(m.position), float64(m.position-n))
	m.position -= n
	return n
}

func (m *Manager) jumpLoop(backwards bool) {
	if !m.loop.enabled {
		return
	}
	from := m.position
	if backwards {
		m.position = m.loop.end
	} else {
		m.position = m.loop.start
	}

	if ce := m.logger.Check(zap.DebugLevel, "loop jump"); ce != nil {
		ce.Write(zap.Int("from", from), zap.Int("to", m.position))
	}
}

// Seek moves the read position to frame, clamped to the track. Pending loop
// jumps and the read log are discarded.
func (m *Manager) Seek(frame int) {
	m.position = max(0, min(frame, m.track.Frames()))
	m.loopPending = false
	m.log.clear()
}

// SetLoop enables looping over frames [start, end).
func (m *Manager) SetLoop(start, end int) error {
	if start < 0 || end <= start || end > m.track.Frames() {
		return fmt.Errorf("%w: [%d, %d) in a %d-frame track", ErrInvalidLoop, start, end, m.track.Frames())
	}
	m.loop = loopRegion{start: start, end: end, enabled: true}
	m.loopPending = false
	return nil
}

// ClearLoop disables looping.
func (m *Manager) ClearLoop() {
	m.loop = loopRegion{}
	m.loopPending = false
}

// Loop returns the loop region and whether it is enabled.
func (m *Manager) Loop() (start, end int, enabled bool) {
	return m.loop.start, m.loop.end, m.loop.enabled
}

// PlayPositionFromLog consumes consumed frames from the read log and returns
// the track position they end at. With an empty log current is returned.
func (m *Manager) PlayPositionFromLog(current, consumed float64) float64 {
	return m.log.consume(current, consumed)
}

// PendingLogChunks returns the number of read chunks not yet consumed.
func (m *Manager) PendingLogChunks() int {
	return m.log.len()
}
