package server

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	bytesPerSample       = 4
	subscriberQueueDepth = 32
)

// Hub fans rendered blocks out to stream subscribers. Slow subscribers lose
// blocks instead of stalling the render goroutine.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a subscriber for deckID. The returned function
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(deckID string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberQueueDepth)

	h.mu.Lock()
	set, ok := h.subs[deckID]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.subs[deckID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[deckID], ch)
			if len(h.subs[deckID]) == 0 {
				delete(h.subs, deckID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of subscribers for deckID.
func (h *Hub) Subscribers(deckID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[deckID])
}

// Broadcast encodes block as little-endian float32 and offers it to every
// subscriber of deckID. It returns the number of subscribers that accepted
// it.
func (h *Hub) Broadcast(deckID string, block []float32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[deckID]
	if len(set) == 0 {
		return 0
	}

	payload := EncodeBlock(block)
	delivered := 0
	for ch := range set {
		select {
		case ch <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// EncodeBlock packs samples as little-endian IEEE 754 float32.
func EncodeBlock(block []float32) []byte {
	out := make([]byte, len(block)*bytesPerSample)
	for i, v := range block {
		binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(v))
	}
	return out
}

// DecodeBlock unpacks little-endian float32 samples. Trailing bytes that do
// not form a whole sample are ignored.
func DecodeBlock(data []byte) []float32 {
	out := make([]float32, len(data)/bytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*bytesPerSample:]))
	}
	return out
}
