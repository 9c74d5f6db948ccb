package pipeline

const (
	// defaultCapacityFrames is the initial FIFO size when none is given.
	defaultCapacityFrames = 1024

	// growthFactor is applied to the backing slice when a write does not fit.
	growthFactor = 2

	// minChannels is the lowest channel count a FIFO accepts.
	minChannels = 1
)
