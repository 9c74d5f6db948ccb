// Package pipeline connects streaming audio stages through frame FIFOs.
//
// A Chain owns one FIFO more than it has stages: stage i reads FIFO i and
// writes FIFO i+1. Stages keep whatever history they need in their input
// FIFO, so a stage never owns sample storage of its own beyond scratch.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrStageCount is returned when a reorder changes the number of stages.
var ErrStageCount = errors.New("stage count mismatch")

// Stage is one streaming transform in a Chain.
type Stage interface {
	// Process consumes what it can from in and appends results to out.
	// Unconsumed input stays in in for the next call.
	Process(in, out *FrameFIFO)

	// Reset clears internal state.
	Reset()

	// SetChannels changes the frame width.
	SetChannels(channels int)

	// GetLatency returns the stage latency in frames.
	GetLatency() int
}

// Chain runs stages in order over a series of FIFOs.
type Chain struct {
	stages []Stage
	fifos  []*FrameFIFO
}

// NewChain creates a chain with capFrames frames preallocated per FIFO.
func NewChain(channels, capFrames int, stages ...Stage) *Chain {
	fifos := make([]*FrameFIFO, len(stages)+1)
	for i := range fifos {
		fifos[i] = NewFrameFIFO(channels, capFrames)
	}
	for _, s := range stages {
		s.SetChannels(channels)
	}

	return &Chain{
		stages: stages,
		fifos:  fifos,
	}
}

// Input returns the FIFO that feeds the first stage.
func (c *Chain) Input() *FrameFIFO {
	return c.fifos[0]
}

// Output returns the FIFO the last stage writes to.
func (c *Chain) Output() *FrameFIFO {
	return c.fifos[len(c.fifos)-1]
}

// Stages returns the current stage order.
func (c *Chain) Stages() []Stage {
	return c.stages
}

// Run passes pending input through every stage once.
func (c *Chain) Run() {
	for i, s := range c.stages {
		s.Process(c.fifos[i], c.fifos[i+1])
	}
}

// Reorder installs a new order for the same number of stages. Frames waiting
// between stages have already passed the earlier stages, so they are moved to
// the output rather than being processed a second time.
func (c *Chain) Reorder(stages ...Stage) error {
	if len(stages) != len(c.stages) {
		return fmt.Errorf("%w: have %d, got %d", ErrStageCount, len(c.stages), len(stages))
	}

	out := c.Output()
	for i := len(c.fifos) - 2; i >= 1; i-- {
		out.MoveFrom(c.fifos[i])
	}
	copy(c.stages, stages)
	return nil
}

// Drain moves every pending frame to the output without processing, oldest
// audio first, and resets every stage.
func (c *Chain) Drain() {
	out := c.Output()
	for i := len(c.fifos) - 2; i >= 0; i-- {
		out.MoveFrom(c.fifos[i])
	}
	for _, s := range c.stages {
		s.Reset()
	}
}

// Pending returns the frames waiting in every FIFO except the output.
func (c *Chain) Pending() int {
	n := 0
	for _, f := range c.fifos[:len(c.fifos)-1] {
		n += f.Available()
	}
	return n
}

// GetLatency returns the summed stage latency in frames.
func (c *Chain) GetLatency() int {
	n := 0
	for _, s := range c.stages {
		n += s.GetLatency()
	}
	return n
}

// Reserve preallocates room for frames frames in every FIFO.
func (c *Chain) Reserve(frames int) {
	for _, f := range c.fifos {
		f.Reserve(frames)
	}
}

// SetChannels changes the frame width of every FIFO and stage.
func (c *Chain) SetChannels(channels int) {
	for _, f := range c.fifos {
		f.SetChannels(channels)
	}
	for _, s := range c.stages {
		s.SetChannels(channels)
	}
}

// Clear empties every FIFO and resets every stage.
func (c *Chain) Clear() {
	for _, f := range c.fifos {
		f.Clear()
	}
	for _, s := range c.stages {
		s.Reset()
	}
}
