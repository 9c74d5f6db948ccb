package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	scaler "github.com/tphakala/go-audio-scaler"
	"github.com/tphakala/go-audio-scaler/internal/deck"
)

const (
	// Sample format constants
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	// Conversion constants
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	wavFormatPCM = 1

	// Extra output allowed beyond the nominal stretched length
	budgetSlackSeconds = 1
	budgetSlackFactor  = 2
)

var errLoopNeedsDuration = errors.New("looping needs --duration to terminate")

// runReport summarises a render. It is written as YAML.
type runReport struct {
	Input          string             `yaml:"input"`
	Output         string             `yaml:"output"`
	InputRate      int                `yaml:"input_rate"`
	OutputRate     int                `yaml:"output_rate"`
	Channels       int                `yaml:"channels"`
	BitDepth       int                `yaml:"bit_depth"`
	Tempo          float64            `yaml:"tempo"`
	Pitch          float64            `yaml:"pitch"`
	Semitones      float64            `yaml:"semitones"`
	Reverse        bool               `yaml:"reverse"`
	Loop           *deck.LoopSnapshot `yaml:"loop,omitempty"`
	InputFrames    int64              `yaml:"input_frames"`
	OutputFrames   int64              `yaml:"output_frames"`
	Peak           float64            `yaml:"peak"`
	RMS            float64            `yaml:"rms"`
	Elapsed        string             `yaml:"elapsed"`
	RealtimeFactor float64            `yaml:"realtime_factor"`
	Scaler         scaler.Stats       `yaml:"scaler"`
}

// writeReport writes report to path as YAML.
func writeReport(path string, report *runReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func secondsToFrames(seconds float64, sampleRate int) int {
	return int(math.Round(seconds * float64(sampleRate)))
}

// outputBudget returns the most output frames a render may produce. An
// explicit duration wins; otherwise the stretched track length is doubled
// and padded, since rendering normally stops when the track edge is reached.
func outputBudget(trackFrames int, baseRate, tempo, durationSec float64, outputRate int, looping bool) (int64, error) {
	if durationSec > 0 {
		return int64(secondsToFrames(durationSec, outputRate)), nil
	}
	if looping {
		return 0, errLoopNeedsDuration
	}
	speed := baseRate * tempo
	if !(speed > 0) {
		return 0, fmt.Errorf("cannot render at speed %v", speed)
	}
	nominal := float64(trackFrames) / speed
	return int64(nominal*budgetSlackFactor) + int64(budgetSlackSeconds*outputRate), nil
}

// getMaxValue returns the maximum sample value for the given bit depth.
func getMaxValue(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample16:
		return maxInt16
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// wavOutputWriter converts float blocks to PCM and encodes them.
type wavOutputWriter struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	maxVal  float64
}

// createWAVOutput creates the output file and encoder.
func createWAVOutput(path string, sampleRate, bitDepth, channels int) (*wavOutputWriter, error) {
	outputFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &wavOutputWriter{
		file:    outputFile,
		encoder: wav.NewEncoder(outputFile, sampleRate, bitDepth, channels, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		maxVal: getMaxValue(bitDepth),
	}, nil
}

// WriteFloat clamps block to [-1, 1], scales it to the bit depth and writes it.
func (w *wavOutputWriter) WriteFloat(block []float32) error {
	if cap(w.buf.Data) < len(block) {
		w.buf.Data = make([]int, len(block))
	}
	data := w.buf.Data[:len(block)]
	for i, v := range block {
		sample := math.Max(-1, math.Min(1, float64(v)))
		data[i] = int(sample * w.maxVal)
	}
	w.buf.Data = data

	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return nil
}

// Close finalises the WAV header and closes the file.
func (w *wavOutputWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// levelMeter accumulates peak and energy over rendered blocks.
type levelMeter struct {
	scratch []float64
	frames  int64
	samples int64
	peak    float64
	sumSq   float64
}

func (m *levelMeter) add(block []float32, frames int) {
	if cap(m.scratch) < len(block) {
		m.scratch = make([]float64, len(block))
	}
	x := m.scratch[:len(block)]
	for i, v := range block {
		x[i] = float64(v)
	}

	m.peak = math.Max(m.peak, floats.Norm(x, math.Inf(1)))
	m.sumSq += floats.Dot(x, x)
	m.samples += int64(len(block))
	m.frames += int64(frames)
}

func (m *levelMeter) rms() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

// renderDeck pulls blocks from d into w until budget frames are written or,
// unless exact is set, the deck reaches the track edge.
func renderDeck(d *deck.Deck, w *wavOutputWriter, blockFrames int, budget int64, exact bool) (*levelMeter, error) {
	format := d.Format()
	block := make([]float32, format.FramesToSamples(blockFrames))
	meter := &levelMeter{}

	for meter.frames < budget {
		n := int(min(int64(blockFrames), budget-meter.frames))
		out := block[:format.FramesToSamples(n)]
		d.Process(out)

		if err := w.WriteFloat(out); err != nil {
			return nil, err
		}
		meter.add(out, n)

		if !exact && d.AtEdge() {
			break
		}
	}
	return meter, nil
}
