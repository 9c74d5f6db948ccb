package scaler

import (
	"sync/atomic"
)

// ScaleRequest is a set of ratios published to a render thread.
type ScaleRequest struct {
	BaseRate   float64 `json:"base_rate"`
	TempoRatio float64 `json:"tempo_ratio"`
	PitchRatio float64 `json:"pitch_ratio"`
}

const (
	handoffIndexMask = 0b011
	handoffDirtyBit  = 0b100
)

// ParamHandoff passes ScaleRequests from one writer goroutine to one reader
// goroutine without locks or blocking.
//
// It is a triple buffer: the writer and reader each own a slot and swap it
// with the shared middle slot through a single atomic word holding the
// middle index and a dirty bit. The reader always sees the most recent
// complete request.
type ParamHandoff struct {
	slots  [3]ScaleRequest
	middle atomic.Uint32

	write uint32 // writer-owned slot
	read  uint32 // reader-owned slot
}

// NewParamHandoff creates a handoff whose reader initially sees initial.
func NewParamHandoff(initial ScaleRequest) *ParamHandoff {
	h := &ParamHandoff{
		slots: [3]ScaleRequest{initial, initial, initial},
		write: 0,
		read:  1,
	}
	h.middle.Store(2)
	return h
}

// Publish makes req the latest request. Only one goroutine may publish.
func (h *ParamHandoff) Publish(req ScaleRequest) {
	h.slots[h.write] = req
	prev := h.middle.Swap(h.write | handoffDirtyBit)
	h.write = prev & handoffIndexMask
}

// Consume returns the latest request and whether it was published since the
// previous Consume. Only one goroutine may consume.
func (h *ParamHandoff) Consume() (ScaleRequest, bool) {
	if h.middle.Load()&handoffDirtyBit == 0 {
		return h.slots[h.read], false
	}
	prev := h.middle.Swap(h.read)
	h.read = prev & handoffIndexMask
	return h.slots[h.read], true
}

// Apply consumes a pending request, if any, and applies it to b.
// It reports whether parameters were applied.
func (h *ParamHandoff) Apply(b *BufferScaler) bool {
	req, fresh := h.Consume()
	if !fresh {
		return false
	}
	b.SetScaleParameters(req.BaseRate, req.TempoRatio, req.PitchRatio)
	return true
}
