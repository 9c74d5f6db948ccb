// Package config loads command configuration from defaults, an optional
// YAML file, SCALER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	scaler "github.com/tphakala/go-audio-scaler"
	"github.com/tphakala/go-audio-scaler/internal/logger"
)

// ErrInvalidConfig indicates a configuration value out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

const envPrefix = "scaler"

// OutputConfig describes the render format.
type OutputConfig struct {
	SampleRate       int `mapstructure:"sample_rate" yaml:"sample_rate"`
	BlockFrames      int `mapstructure:"block_frames" yaml:"block_frames"`
	BitDepth         int `mapstructure:"bit_depth" yaml:"bit_depth"`
	SeekOffsetFrames int `mapstructure:"seek_offset_frames" yaml:"seek_offset_frames"`
}

// ScaleConfig holds the initial playback ratios.
type ScaleConfig struct {
	Tempo     float64 `mapstructure:"tempo" yaml:"tempo"`
	Pitch     float64 `mapstructure:"pitch" yaml:"pitch"`
	Semitones float64 `mapstructure:"semitones" yaml:"semitones"`
	Reverse   bool    `mapstructure:"reverse" yaml:"reverse"`
}

// SignedTempo returns the tempo with the playback direction applied.
func (s ScaleConfig) SignedTempo() float64 {
	if s.Reverse {
		return -s.Tempo
	}
	return s.Tempo
}

// PitchRatio combines the pitch ratio with the semitone shift.
func (s ScaleConfig) PitchRatio() float64 {
	return s.Pitch * scaler.PitchRatioFromSemitones(s.Semitones)
}

// LoopConfig is an optional loop region in seconds.
type LoopConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Start   float64 `mapstructure:"start" yaml:"start"`
	End     float64 `mapstructure:"end" yaml:"end"`
}

// ServerConfig configures the control daemon.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// DeckConfig is one deck loaded at daemon start.
type DeckConfig struct {
	Track string  `mapstructure:"track" yaml:"track"`
	Tempo float64 `mapstructure:"tempo" yaml:"tempo"`
	Pitch float64 `mapstructure:"pitch" yaml:"pitch"`
}

// Config is the full command configuration.
type Config struct {
	Output OutputConfig  `mapstructure:"output" yaml:"output"`
	Scale  ScaleConfig   `mapstructure:"scale" yaml:"scale"`
	Loop   LoopConfig    `mapstructure:"loop" yaml:"loop"`
	Server ServerConfig  `mapstructure:"server" yaml:"server"`
	Decks  []DeckConfig  `mapstructure:"decks" yaml:"decks"`
	Log    logger.Config `mapstructure:"log" yaml:"log"`
}

// Options control where Load looks for values.
type Options struct {
	// ConfigFile is an optional YAML file. Empty skips it.
	ConfigFile string

	// Flags, when set, override other sources for every key in FlagKeys
	// whose flag was given on the command line.
	Flags *pflag.FlagSet

	// FlagKeys maps configuration keys such as "scale.tempo" to flag names.
	FlagKeys map[string]string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.sample_rate", scaler.RateCD)
	v.SetDefault("output.block_frames", 1024)
	v.SetDefault("output.bit_depth", 16)
	v.SetDefault("output.seek_offset_frames", scaler.DefaultSeekOffsetFrames)

	v.SetDefault("scale.tempo", 1.0)
	v.SetDefault("scale.pitch", 1.0)
	v.SetDefault("scale.semitones", 0.0)
	v.SetDefault("scale.reverse", false)

	v.SetDefault("loop.enabled", false)
	v.SetDefault("loop.start", 0.0)
	v.SetDefault("loop.end", 0.0)

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.name", "scaler.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)
}

// Load assembles and validates the configuration.
func Load(opts Options) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(opts.ConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				return Config{}, fmt.Errorf("%w: no flag %q for key %s", ErrInvalidConfig, name, key)
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	validBitDepths   = []int{16, 24, 32}
	validServerModes = []string{"debug", "release", "test"}
	validLogFormats  = []string{"", "json", "console"}
)

// Validate checks value ranges.
func (c *Config) Validate() error {
	format := scaler.SignalFormat{SampleRate: c.Output.SampleRate, Channels: 1}
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: output: %w", ErrInvalidConfig, err)
	}
	if c.Output.BlockFrames <= 0 {
		return fmt.Errorf("%w: output block_frames must be positive", ErrInvalidConfig)
	}
	if !slices.Contains(validBitDepths, c.Output.BitDepth) {
		return fmt.Errorf("%w: output bit_depth %d not one of %v", ErrInvalidConfig, c.Output.BitDepth, validBitDepths)
	}
	if c.Output.SeekOffsetFrames < 0 {
		return fmt.Errorf("%w: output seek_offset_frames must not be negative", ErrInvalidConfig)
	}

	if err := validateRatio("scale.tempo", c.Scale.Tempo); err != nil {
		return err
	}
	if c.Scale.Tempo > scaler.MaxSeekSpeed {
		return fmt.Errorf("%w: scale.tempo %v above %v", ErrInvalidConfig, c.Scale.Tempo, scaler.MaxSeekSpeed)
	}
	if err := validateRatio("scale.pitch", c.Scale.Pitch); err != nil {
		return err
	}
	if math.IsNaN(c.Scale.Semitones) || math.IsInf(c.Scale.Semitones, 0) {
		return fmt.Errorf("%w: scale.semitones must be finite", ErrInvalidConfig)
	}

	if c.Loop.Enabled && (c.Loop.Start < 0 || c.Loop.End <= c.Loop.Start) {
		return fmt.Errorf("%w: loop [%v, %v) is empty or negative", ErrInvalidConfig, c.Loop.Start, c.Loop.End)
	}

	if !slices.Contains(validServerModes, c.Server.Mode) {
		return fmt.Errorf("%w: server.mode %q not one of %v", ErrInvalidConfig, c.Server.Mode, validServerModes)
	}

	for i, d := range c.Decks {
		if strings.TrimSpace(d.Track) == "" {
			return fmt.Errorf("%w: decks[%d] has no track", ErrInvalidConfig, i)
		}
		if d.Tempo < 0 || d.Pitch < 0 {
			return fmt.Errorf("%w: decks[%d] ratios must not be negative", ErrInvalidConfig, i)
		}
	}

	if !slices.Contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("%w: log.format %q not one of json, console", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

func validateRatio(key string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfig, key, v)
	}
	return nil
}
