package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-audio-scaler/internal/config"
	"github.com/tphakala/go-audio-scaler/internal/readahead"
	"github.com/tphakala/go-audio-scaler/internal/testutil"
)

const (
	testRate   = 44100
	testFrames = 44100
)

// writeToneWAV writes a one second stereo 440 Hz tone and returns its path.
func writeToneWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	w, err := createWAVOutput(path, testRate, 16, 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteFloat(testutil.Sine(440, testRate, 2, testFrames, 0.5)))
	require.NoError(t, w.Close())
	return path
}

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)
	return cfg
}

func TestCreateWAVOutput_InvalidDirectory(t *testing.T) {
	_, err := createWAVOutput("/nonexistent/dir/output.wav", 48000, 16, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}

func TestWAVOutput_RoundTripAndClamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := createWAVOutput(path, 48000, 16, 2)
	require.NoError(t, err)

	require.NoError(t, w.WriteFloat([]float32{0, 0.5, -0.5, 2}))
	require.NoError(t, w.WriteFloat([]float32{-3, 0.25}))
	require.NoError(t, w.Close())

	track, err := readahead.LoadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, track.SampleRate())
	assert.Equal(t, 2, track.Channels())
	require.Equal(t, 3, track.Frames())

	want := []float32{0, 0.5, -0.5, 1, -1, 0.25}
	assert.InDeltaSlice(t, want, track.Samples(), 2.0/32768)
}

func TestGetMaxValue(t *testing.T) {
	assert.Equal(t, maxInt16, getMaxValue(16))
	assert.Equal(t, maxInt24, getMaxValue(24))
	assert.Equal(t, maxInt32, getMaxValue(32))
	assert.Equal(t, maxInt16, getMaxValue(8))
}

func TestOutputBudget(t *testing.T) {
	budget, err := outputBudget(44100, 1, 2, 0, 44100, false)
	require.NoError(t, err)
	assert.Equal(t, int64(44100+44100), budget)

	budget, err = outputBudget(44100, 1, 2, 3, 48000, true)
	require.NoError(t, err)
	assert.Equal(t, int64(144000), budget, "duration wins")

	_, err = outputBudget(44100, 1, 1, 0, 44100, true)
	require.ErrorIs(t, err, errLoopNeedsDuration)

	_, err = outputBudget(44100, 0, 1, 0, 44100, false)
	require.Error(t, err)
}

func TestLevelMeter(t *testing.T) {
	var m levelMeter
	m.add([]float32{0.5, -1}, 1)
	m.add([]float32{0, 0}, 1)

	assert.Equal(t, int64(2), m.frames)
	assert.Equal(t, 1.0, m.peak)
	assert.InDelta(t, 0.5590, m.rms(), 1e-4)

	var empty levelMeter
	assert.Zero(t, empty.rms())
}

func TestRender_TempoShortensOutput(t *testing.T) {
	track, err := readahead.LoadWAV(writeToneWAV(t))
	require.NoError(t, err)

	cfg := defaultConfig(t)
	cfg.Scale.Tempo = 2
	out := filepath.Join(t.TempDir(), "fast.wav")

	report, err := render(track, out, cfg, 0, zap.NewNop())
	require.NoError(t, err)

	assert.InDelta(t, testFrames/2, report.OutputFrames, float64(cfg.Output.BlockFrames)+64)
	assert.InDelta(t, 0.5, report.Peak, 0.1)
	assert.Greater(t, report.RMS, 0.2)

	rendered, err := readahead.LoadWAV(out)
	require.NoError(t, err)
	assert.EqualValues(t, report.OutputFrames, rendered.Frames())
}

func TestRender_Reverse(t *testing.T) {
	track, err := readahead.LoadWAV(writeToneWAV(t))
	require.NoError(t, err)

	cfg := defaultConfig(t)
	cfg.Scale.Reverse = true

	report, err := render(track, filepath.Join(t.TempDir(), "rev.wav"), cfg, 0, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, report.Reverse)
	assert.InDelta(t, testFrames, report.OutputFrames, float64(cfg.Output.BlockFrames)+float64(cfg.Output.SeekOffsetFrames))
	assert.Greater(t, report.Peak, 0.4)
}

func TestRender_LoopWithDuration(t *testing.T) {
	track, err := readahead.LoadWAV(writeToneWAV(t))
	require.NoError(t, err)

	cfg := defaultConfig(t)
	cfg.Loop = config.LoopConfig{Enabled: true, Start: 0.1, End: 0.3}

	_, err = render(track, filepath.Join(t.TempDir(), "loop.wav"), cfg, 0, zap.NewNop())
	require.ErrorIs(t, err, errLoopNeedsDuration)

	report, err := render(track, filepath.Join(t.TempDir(), "loop.wav"), cfg, 2, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(2*testRate), report.OutputFrames)
	require.NotNil(t, report.Loop)
	assert.Equal(t, 4410, report.Loop.Start)
	assert.Equal(t, 13230, report.Loop.End)
	assert.Zero(t, report.Scaler.SilenceFlushes)
}

func TestRun_EndToEnd(t *testing.T) {
	in := writeToneWAV(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "slow.wav")
	reportPath := filepath.Join(dir, "report.yaml")

	err := run([]string{"--tempo", "0.5", "--semitones", "12", "--bit-depth", "24", "--report", reportPath, in, out})
	require.NoError(t, err)

	rendered, err := readahead.LoadWAV(out)
	require.NoError(t, err)
	assert.InDelta(t, 2*testFrames, rendered.Frames(), 2048)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report runReport
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Equal(t, 0.5, report.Tempo)
	assert.InDelta(t, 2.0, report.Pitch, 1e-9)
	assert.InDelta(t, 12.0, report.Semitones, 1e-9)
	assert.Equal(t, 24, report.BitDepth)
	assert.Equal(t, in, report.Input)
}

func TestRun_Arguments(t *testing.T) {
	require.Error(t, run([]string{"only-one.wav"}))
	require.Error(t, run([]string{"--tempo", "0", "a.wav", "b.wav"}), "zero tempo fails validation")
}
