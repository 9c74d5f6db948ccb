package main

// Default command-line flag values
const (
	defaultInputRate  = 44100 // CD quality sample rate
	defaultOutputRate = 44100
	defaultChannels   = 2 // Stereo
)

// Test signal parameters
const (
	testSignalFrequency = 1000.0 // 1 kHz test tone
	testSignalFrames    = 44100  // Default test signal length
	processBlockFrames  = 1024
)

// Demo sample rates
const (
	sampleRateCD  = 44100
	sampleRateDAT = 48000
)

// Demo channel configurations
const (
	monoChannels   = 1
	stereoChannels = 2
	surround5_1    = 6
	surround7_1    = 8
)

const msPerSecond = 1000.0
