package engine

import (
	"math"

	"github.com/tphakala/go-audio-scaler/internal/pipeline"
	"github.com/tphakala/go-audio-scaler/internal/simdops"
)

// TimeStretch changes tempo without changing pitch using WSOLA: the input is
// cut into overlapping sequences, each placed where it best correlates with
// the tail of the previous one, and cross-faded.
//
// Sequence and seek window lengths follow the tempo: long sequences for slow
// tempos, short ones for fast tempos.
type TimeStretch struct {
	tempo      float64
	sampleRate int
	channels   int

	seqFrames     int // sequence (seek window) length
	seekFrames    int // search range
	overlapFrames int

	nominalSkip float64
	skipFract   float64
	sampleReq   int
	isBeginning bool

	midBuffer []float32 // tail of the previous sequence, overlapFrames*channels
	ops       *simdops.Kernels
}

// NewTimeStretch creates a tempo stage at tempo 1.
func NewTimeStretch(channels, sampleRate int) *TimeStretch {
	s := &TimeStretch{
		tempo:       1,
		sampleRate:  sampleRate,
		channels:    channels,
		isBeginning: true,
		ops:         simdops.Float32(),
	}
	s.calcOverlap()
	s.calcSequence()
	return s
}

// SetTempo sets the tempo ratio. Non-positive and non-finite values are
// ignored.
func (s *TimeStretch) SetTempo(tempo float64) {
	if !(tempo > 0) || math.IsInf(tempo, 0) {
		return
	}
	s.tempo = tempo
	s.calcSequence()
}

// Tempo returns the current tempo ratio.
func (s *TimeStretch) Tempo() float64 {
	return s.tempo
}

// SetSampleRate recalculates every window length for a new rate and clears
// state.
func (s *TimeStretch) SetSampleRate(sampleRate int) {
	if sampleRate <= 0 {
		return
	}
	s.sampleRate = sampleRate
	s.calcOverlap()
	s.calcSequence()
	s.Reset()
}

// InputRequirement returns the frames needed before a sequence is emitted.
func (s *TimeStretch) InputRequirement() int {
	return s.sampleReq
}

// SequenceFrames returns the current sequence length in frames.
func (s *TimeStretch) SequenceFrames() int {
	return s.seqFrames
}

// SeekFrames returns the current seek range in frames.
func (s *TimeStretch) SeekFrames() int {
	return s.seekFrames
}

// OverlapFrames returns the cross-fade length in frames.
func (s *TimeStretch) OverlapFrames() int {
	return s.overlapFrames
}

func (s *TimeStretch) calcOverlap() {
	n := int(float64(s.sampleRate) * defaultOverlapMs / msPerSecond)
	if n < minOverlapFrames {
		n = minOverlapFrames
	}
	n -= n % overlapAlignFrames
	s.overlapFrames = n
	s.ensureMidBuffer()
}

func (s *TimeStretch) calcSequence() {
	seqMs := clamp(autoSeqC+autoSeqK*s.tempo, autoSeqAtMax, autoSeqAtMin)
	seekMs := clamp(autoSeekC+autoSeekK*s.tempo, autoSeekAtMax, autoSeekAtMin)

	s.seqFrames = int(float64(s.sampleRate) * seqMs / msPerSecond)
	if s.seqFrames < 2*s.overlapFrames {
		s.seqFrames = 2 * s.overlapFrames
	}
	s.seekFrames = int(float64(s.sampleRate) * seekMs / msPerSecond)

	s.nominalSkip = s.tempo * float64(s.seqFrames-s.overlapFrames)
	intSkip := int(s.nominalSkip + 0.5)
	s.sampleReq = max(intSkip+s.overlapFrames, s.seqFrames) + s.seekFrames
}

func (s *TimeStretch) ensureMidBuffer() {
	n := s.overlapFrames * s.channels
	if cap(s.midBuffer) < n {
		s.midBuffer = make([]float32, n)
	}
	s.midBuffer = s.midBuffer[:n]
	clear(s.midBuffer)
}

// Process emits as many sequences as the buffered input allows.
func (s *TimeStretch) Process(in, out *pipeline.FrameFIFO) {
	ch := s.channels
	ovl := s.overlapFrames

	for in.Available() >= s.sampleReq {
		offset := 0
		if !s.isBeginning {
			offset = s.seekBestOverlap(in.Begin())
			s.overlap(out.Extend(ovl), in.Begin()[offset*ch:])
			out.Commit(ovl)
			offset += ovl
		} else {
			// start the first sequence early enough that its centre lines up
			// with the start of the input
			s.isBeginning = false
			skip := int(s.tempo*float64(ovl) + 0.5*float64(s.seekFrames) + 0.5)
			s.skipFract -= float64(skip)
			if s.skipFract <= -s.nominalSkip {
				s.skipFract = -s.nominalSkip
			}
		}

		if in.Available() < offset+s.seqFrames-ovl {
			break
		}

		body := s.seqFrames - 2*ovl
		src := in.Begin()
		out.Put(src[offset*ch:], body)
		copy(s.midBuffer, src[(offset+body)*ch:(offset+body+ovl)*ch])

		s.skipFract += s.nominalSkip
		skip := int(s.skipFract)
		s.skipFract -= float64(skip)
		in.Skip(skip)
	}
}

// seekBestOverlap returns the offset within the seek range whose first
// overlap window correlates best with midBuffer, biased towards the centre.
func (s *TimeStretch) seekBestOverlap(src []float32) int {
	n := s.overlapFrames * s.channels
	ch := s.channels
	seek := float64(s.seekFrames)

	best, bestCorr := 0, math.Inf(-1)
	for i := range s.seekFrames {
		win := src[i*ch : i*ch+n]
		corr := float64(s.ops.Dot(win, s.midBuffer))
		norm := float64(s.ops.Dot(win, win))
		if norm < minCorrNorm {
			norm = 1
		}
		corr /= math.Sqrt(norm)

		tmp := (2*float64(i) - seek) / seek
		corr = (corr + corrBias) * (1 - corrCentreWeight*tmp*tmp)

		if corr > bestCorr {
			best, bestCorr = i, corr
		}
	}
	return best
}

// overlap cross-fades midBuffer into src linearly, writing overlapFrames
// frames to dst.
func (s *TimeStretch) overlap(dst, src []float32) {
	ch := s.channels
	scale := 1 / float32(s.overlapFrames)
	var f1 float32
	f2 := float32(1)
	for i := range s.overlapFrames {
		for c := range ch {
			k := i*ch + c
			dst[k] = src[k]*f1 + s.midBuffer[k]*f2
		}
		f1 += scale
		f2 -= scale
	}
}

// Reset clears internal state.
func (s *TimeStretch) Reset() {
	s.isBeginning = true
	s.skipFract = 0
	clear(s.midBuffer)
}

// SetChannels changes the frame width.
func (s *TimeStretch) SetChannels(channels int) {
	if channels <= 0 || channels == s.channels {
		return
	}
	s.channels = channels
	s.ensureMidBuffer()
	s.Reset()
}

// GetLatency returns the stage latency in frames.
func (s *TimeStretch) GetLatency() int {
	return s.sampleReq
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
