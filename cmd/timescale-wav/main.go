// Command timescale-wav renders a WAV file at a new tempo and pitch.
//
// Usage:
//
//	timescale-wav --tempo 1.25 input.wav output.wav
//	timescale-wav --semitones -3 --bit-depth 24 input.wav output.wav
//	timescale-wav --reverse input.wav reversed.wav
//	timescale-wav --loop --loop-start 2 --loop-end 4 --duration 30 in.wav out.wav
//
// Settings may also come from a YAML file (--config) or SCALER_* environment
// variables; flags given on the command line take precedence.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	scaler "github.com/tphakala/go-audio-scaler"
	"github.com/tphakala/go-audio-scaler/internal/config"
	"github.com/tphakala/go-audio-scaler/internal/deck"
	"github.com/tphakala/go-audio-scaler/internal/logger"
	"github.com/tphakala/go-audio-scaler/internal/readahead"
)

const (
	minRequiredArgs = 2
)

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"scale.tempo":         "tempo",
	"scale.pitch":         "pitch",
	"scale.semitones":     "semitones",
	"scale.reverse":       "reverse",
	"output.sample_rate":  "rate",
	"output.bit_depth":    "bit-depth",
	"output.block_frames": "block",
	"loop.enabled":        "loop",
	"loop.start":          "loop-start",
	"loop.end":            "loop-end",
	"log.level":           "log-level",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(argv []string) error {
	flags := pflag.NewFlagSet("timescale-wav", pflag.ContinueOnError)
	configFile := flags.String("config", "", "YAML configuration file")
	flags.Float64("tempo", 1, "Tempo ratio (e.g. 0.5 half speed, 2 double speed)")
	flags.Float64("pitch", 1, "Pitch ratio")
	flags.Float64("semitones", 0, "Key shift in semitones, applied on top of --pitch")
	flags.Bool("reverse", false, "Play the input backwards")
	flags.Int("rate", 0, "Output sample rate in Hz")
	flags.Int("bit-depth", 0, "Output bit depth: 16, 24 or 32")
	flags.Int("block", 0, "Render block size in frames")
	flags.Bool("loop", false, "Loop between --loop-start and --loop-end")
	flags.Float64("loop-start", 0, "Loop start in seconds")
	flags.Float64("loop-end", 0, "Loop end in seconds")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	duration := flags.Float64("duration", 0, "Stop after this many seconds of output (required with --loop)")
	reportPath := flags.String("report", "", "Write a YAML run report to this file")
	verbose := flags.BoolP("verbose", "v", false, "Verbose output")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: timescale-wav [options] input.wav output.wav\n\nOptions:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(argv); err != nil {
		return err
	}

	args := flags.Args()
	if len(args) < minRequiredArgs {
		flags.Usage()
		return fmt.Errorf("insufficient arguments")
	}
	inputPath, outputPath := args[0], args[1]

	cfg, err := config.Load(config.Options{
		ConfigFile: *configFile,
		Flags:      flags,
		FlagKeys:   flagKeys,
	})
	if err != nil {
		return err
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	track, err := readahead.LoadWAV(inputPath)
	if err != nil {
		return err
	}
	zlog.Info("input loaded",
		zap.String("path", inputPath),
		zap.Int("sample_rate", track.SampleRate()),
		zap.Int("channels", track.Channels()),
		zap.Duration("duration", track.Duration()))

	start := time.Now()
	report, err := render(track, outputPath, cfg, *duration, zlog)
	if err != nil {
		return err
	}
	report.Input = inputPath
	report.Elapsed = time.Since(start).Round(time.Millisecond).String()
	if secs := time.Since(start).Seconds(); secs > 0 {
		report.RealtimeFactor = float64(report.OutputFrames) / float64(report.OutputRate) / secs
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			return err
		}
	}

	fmt.Printf("Rendered %s -> %s\n", filepath.Base(inputPath), filepath.Base(outputPath))
	fmt.Printf("  tempo %.3f, pitch %.3f (%+.2f st)%s\n",
		report.Tempo, report.Pitch, report.Semitones, reverseSuffix(report.Reverse))
	fmt.Printf("  %d frames @ %d Hz -> %d frames @ %d Hz\n",
		report.InputFrames, report.InputRate, report.OutputFrames, report.OutputRate)
	fmt.Printf("  peak %.3f, rms %.3f, %s (%.1fx realtime)\n",
		report.Peak, report.RMS, report.Elapsed, report.RealtimeFactor)

	return nil
}

func reverseSuffix(reverse bool) string {
	if reverse {
		return ", reversed"
	}
	return ""
}

// render plays track through a deck into outputPath.
func render(track *readahead.Track, outputPath string, cfg config.Config, durationSec float64, zlog *zap.Logger) (report *runReport, err error) {
	d, err := deck.New(track, deck.Config{
		OutputRate:       cfg.Output.SampleRate,
		SeekOffsetFrames: cfg.Output.SeekOffsetFrames,
		Logger:           zlog,
	})
	if err != nil {
		return nil, err
	}

	tempo := cfg.Scale.SignedTempo()
	pitch := cfg.Scale.PitchRatio()
	d.SetParams(tempo, pitch)

	if cfg.Scale.Reverse {
		if err := d.Seek(track.Frames()); err != nil {
			return nil, err
		}
	}

	var loop *deck.LoopSnapshot
	if cfg.Loop.Enabled {
		loop = &deck.LoopSnapshot{
			Start: secondsToFrames(cfg.Loop.Start, track.SampleRate()),
			End:   secondsToFrames(cfg.Loop.End, track.SampleRate()),
		}
		if err := d.SetLoop(loop.Start, loop.End); err != nil {
			return nil, err
		}
	}

	budget, err := outputBudget(track.Frames(), d.BaseRate(), cfg.Scale.Tempo, durationSec,
		cfg.Output.SampleRate, cfg.Loop.Enabled)
	if err != nil {
		return nil, err
	}

	output, err := createWAVOutput(outputPath, cfg.Output.SampleRate, cfg.Output.BitDepth, track.Channels())
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
	}()

	level, err := renderDeck(d, output, cfg.Output.BlockFrames, budget, durationSec > 0)
	if err != nil {
		return nil, err
	}

	return &runReport{
		Output:       outputPath,
		InputRate:    track.SampleRate(),
		OutputRate:   cfg.Output.SampleRate,
		Channels:     track.Channels(),
		BitDepth:     cfg.Output.BitDepth,
		Tempo:        cfg.Scale.Tempo,
		Pitch:        pitch,
		Semitones:    scaler.SemitonesFromPitchRatio(pitch),
		Reverse:      cfg.Scale.Reverse,
		Loop:         loop,
		InputFrames:  int64(track.Frames()),
		OutputFrames: level.frames,
		Peak:         level.peak,
		RMS:          level.rms(),
		Scaler:       d.Snapshot().Stats,
	}, nil
}
