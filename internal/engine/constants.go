package engine

// Cubic (Hermite) interpolation constants
const (
	// Cubic interpolation uses 4-point window
	cubicInterpolationPoints = 4

	// Cubic interpolation latency (centered around middle points)
	cubicLatencySamples = 2

	// Hermite interpolation coefficients for smooth C1 continuity
	// Formula: y = ((a*x + b)*x + c)*x + d
	hermiteCoeff0_5 = 0.5
	hermiteCoeff1_5 = 1.5
	hermiteCoeff2_5 = 2.5
)

// Anti-alias filter constants
const (
	// AntiAliasTaps is the FIR length; odd for an integer group delay.
	AntiAliasTaps = 65

	// aaAttenuationDB is the stopband target of the designed filter.
	aaAttenuationDB = 60.0

	// aaCutoffScale pulls the cutoff below the new Nyquist so the transition
	// band ends before it.
	aaCutoffScale = 0.9

	// nyquist is half the sample rate in normalized frequency.
	nyquist = 0.5
)

// WSOLA auto-sequence constants (milliseconds unless noted)
const (
	autoSeqTempoLow = 0.5
	autoSeqTempoTop = 2.0

	autoSeqAtMin = 90.0
	autoSeqAtMax = 40.0
	autoSeqK     = (autoSeqAtMax - autoSeqAtMin) / (autoSeqTempoTop - autoSeqTempoLow)
	autoSeqC     = autoSeqAtMin - autoSeqK*autoSeqTempoLow

	autoSeekAtMin = 20.0
	autoSeekAtMax = 15.0
	autoSeekK     = (autoSeekAtMax - autoSeekAtMin) / (autoSeqTempoTop - autoSeqTempoLow)
	autoSeekC     = autoSeekAtMin - autoSeekK*autoSeqTempoLow

	defaultOverlapMs = 8.0

	// minOverlapFrames is the shortest cross-fade, and overlap lengths are
	// rounded down to a multiple of overlapAlignFrames.
	minOverlapFrames   = 16
	overlapAlignFrames = 8

	msPerSecond = 1000.0
)

// Correlation search constants
const (
	// corrBias is added to the normalized correlation before weighting.
	corrBias = 0.1

	// corrCentreWeight de-emphasises offsets far from the seek window centre.
	corrCentreWeight = 0.25

	// minCorrNorm guards the normalization of near-silent windows.
	minCorrNorm = 1e-9
)

// Stretcher constants
const (
	// unityTolerance decides when an effective rate or tempo counts as 1.
	unityTolerance = 1e-10

	// maxChannels bounds the frame width.
	maxChannels = 256

	// reserveHeadroomFrames is added to the stage requirement when
	// preallocating FIFOs.
	reserveHeadroomFrames = 4096

	// maxReserveScale caps the expansion factor used for FIFO preallocation.
	maxReserveScale = 10.0

	// defaultFIFOFrames is the initial FIFO size.
	defaultFIFOFrames = 4096
)
