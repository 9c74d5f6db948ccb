package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBlock(t *testing.T) {
	block := []float32{0, 1, -1, 0.25}
	data := EncodeBlock(block)

	require.Len(t, data, 16)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, data[4:8], "1.0 little-endian")
	assert.Equal(t, block, DecodeBlock(data))
	assert.Len(t, DecodeBlock(data[:7]), 1, "partial sample ignored")
}

func TestHub_FanOutAndDrop(t *testing.T) {
	h := NewHub()
	assert.Zero(t, h.Broadcast("a", []float32{1}), "no subscribers")

	fast, unsubFast := h.Subscribe("a")
	slow, unsubSlow := h.Subscribe("a")
	_, unsubOther := h.Subscribe("b")
	defer unsubOther()
	assert.Equal(t, 2, h.Subscribers("a"))

	for range subscriberQueueDepth {
		assert.Equal(t, 2, h.Broadcast("a", []float32{1}))
		<-fast
	}
	assert.Equal(t, 1, h.Broadcast("a", []float32{2}), "full subscriber drops the block")
	assert.Len(t, slow, subscriberQueueDepth)

	unsubFast()
	unsubFast()
	<-fast
	_, open := <-fast
	assert.False(t, open)

	unsubSlow()
	assert.Zero(t, h.Subscribers("a"))
	assert.Equal(t, 1, h.Subscribers("b"))
}
