package pipeline

// FrameFIFO is a first-in first-out queue of interleaved float32 frames.
//
// Storage is a single contiguous slice. Reads advance a start offset and
// writes compact the live region to the front before growing, so in steady
// state no allocation happens. Capacity never shrinks. FrameFIFO is not safe
// for concurrent use.
type FrameFIFO struct {
	data     []float32
	channels int
	start    int // first live frame
	frames   int // live frame count
}

// NewFrameFIFO creates a FIFO for the given channel count with room for
// capFrames frames.
func NewFrameFIFO(channels, capFrames int) *FrameFIFO {
	if channels < minChannels {
		channels = minChannels
	}
	if capFrames < 1 {
		capFrames = defaultCapacityFrames
	}

	return &FrameFIFO{
		data:     make([]float32, capFrames*channels),
		channels: channels,
	}
}

// SetChannels changes the frame width. Pending frames are discarded when the
// width changes.
func (f *FrameFIFO) SetChannels(channels int) {
	if channels < minChannels || channels == f.channels {
		return
	}
	f.channels = channels
	f.Clear()
}

// Channels returns the number of samples per frame.
func (f *FrameFIFO) Channels() int {
	return f.channels
}

// Available returns the number of frames ready to be read.
func (f *FrameFIFO) Available() int {
	return f.frames
}

// Capacity returns how many frames fit without growing.
func (f *FrameFIFO) Capacity() int {
	return len(f.data) / f.channels
}

// Reserve makes sure at least frames frames fit without growing.
func (f *FrameFIFO) Reserve(frames int) {
	if frames <= f.Capacity() {
		return
	}
	f.grow(frames)
}

// Begin returns the live frames as an interleaved slice. The slice is valid
// until the next write.
func (f *FrameFIFO) Begin() []float32 {
	ch := f.channels
	return f.data[f.start*ch : (f.start+f.frames)*ch]
}

// Put appends the first frames frames of src.
func (f *FrameFIFO) Put(src []float32, frames int) {
	if frames <= 0 {
		return
	}
	if n := len(src) / f.channels; frames > n {
		frames = n
	}

	dst := f.Extend(frames)
	copy(dst, src[:frames*f.channels])
	f.Commit(frames)
}

// Extend returns writable space for frames frames past the live region.
// Nothing becomes readable until Commit.
func (f *FrameFIFO) Extend(frames int) []float32 {
	f.ensureTail(frames)
	ch := f.channels
	end := f.start + f.frames
	return f.data[end*ch : (end+frames)*ch]
}

// Commit makes frames frames written through Extend readable.
func (f *FrameFIFO) Commit(frames int) {
	if frames <= 0 {
		return
	}
	if limit := f.Capacity() - f.start - f.frames; frames > limit {
		frames = limit
	}
	f.frames += frames
}

// Receive copies up to maxFrames frames into dst and removes them.
// It returns the number of frames copied.
func (f *FrameFIFO) Receive(dst []float32, maxFrames int) int {
	n := min(maxFrames, f.frames, len(dst)/f.channels)
	if n <= 0 {
		return 0
	}

	ch := f.channels
	copy(dst[:n*ch], f.data[f.start*ch:(f.start+n)*ch])
	f.Skip(n)
	return n
}

// Skip drops up to frames frames from the front and returns how many were
// dropped.
func (f *FrameFIFO) Skip(frames int) int {
	n := min(frames, f.frames)
	if n <= 0 {
		return 0
	}

	f.frames -= n
	if f.frames == 0 {
		f.start = 0
	} else {
		f.start += n
	}
	return n
}

// MoveFrom appends every frame of src and empties src. Both FIFOs must have
// the same channel count.
func (f *FrameFIFO) MoveFrom(src *FrameFIFO) int {
	n := src.frames
	if n == 0 || src.channels != f.channels {
		return 0
	}

	f.Put(src.Begin(), n)
	src.Clear()
	return n
}

// Clear discards all live frames. Capacity is kept.
func (f *FrameFIFO) Clear() {
	f.start = 0
	f.frames = 0
}

// ensureTail makes room for frames frames after the live region.
func (f *FrameFIFO) ensureTail(frames int) {
	capacity := f.Capacity()
	if f.start+f.frames+frames <= capacity {
		return
	}

	if f.frames+frames <= capacity {
		f.compact()
		return
	}

	f.grow(max(capacity*growthFactor, f.frames+frames))
}

func (f *FrameFIFO) compact() {
	if f.start == 0 {
		return
	}
	ch := f.channels
	copy(f.data, f.data[f.start*ch:(f.start+f.frames)*ch])
	f.start = 0
}

func (f *FrameFIFO) grow(frames int) {
	ch := f.channels
	data := make([]float32, frames*ch)
	copy(data, f.data[f.start*ch:(f.start+f.frames)*ch])
	f.data = data
	f.start = 0
}
