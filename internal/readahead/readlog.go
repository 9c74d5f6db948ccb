package readahead

import (
	"math"
)

// readLogCapacity bounds the number of distinct chunks remembered. Merging
// keeps steady playback to a single entry, so only loop jumps and direction
// changes consume slots.
const readLogCapacity = 64

// ReadChunk is a span of track frames delivered to the scaler, in delivery
// order. End < Start for reverse reads.
type ReadChunk struct {
	Start float64
	End   float64
}

// Frames returns the chunk length in frames.
func (c ReadChunk) Frames() float64 {
	return math.Abs(c.End - c.Start)
}

func (c ReadChunk) direction() float64 {
	if c.End < c.Start {
		return -1
	}
	return 1
}

// readLog is a fixed ring of ReadChunks, oldest first. When full, the oldest
// chunk is dropped.
type readLog struct {
	chunks [readLogCapacity]ReadChunk
	head   int
	count  int
}

func (l *readLog) add(start, end float64) {
	if start == end {
		return
	}
	c := ReadChunk{Start: start, End: end}

	if l.count > 0 {
		last := &l.chunks[(l.head+l.count-1)%readLogCapacity]
		if last.End == start && last.direction() == c.direction() {
			last.End = end
			return
		}
	}

	if l.count == readLogCapacity {
		l.head = (l.head + 1) % readLogCapacity
		l.count--
	}
	l.chunks[(l.head+l.count)%readLogCapacity] = c
	l.count++
}

// consume advances through frames of delivered audio and returns the track
// position reached, or current if the log is empty.
func (l *readLog) consume(current, frames float64) float64 {
	pos := current
	for frames > 0 && l.count > 0 {
		c := &l.chunks[l.head]
		length := c.Frames()
		if frames < length {
			c.Start += c.direction() * frames
			return c.Start
		}
		pos = c.End
		frames -= length
		l.head = (l.head + 1) % readLogCapacity
		l.count--
	}
	return pos
}

func (l *readLog) clear() {
	l.head = 0
	l.count = 0
}

func (l *readLog) len() int {
	return l.count
}
