// Command scalerd loads tracks into decks, renders each deck in real time
// and serves an HTTP control API with websocket PCM streams.
//
// Usage:
//
//	scalerd --config scalerd.yaml
//	SCALER_SERVER_ADDR=:9000 scalerd --track a.wav --track b.wav
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tphakala/go-audio-scaler/internal/config"
	"github.com/tphakala/go-audio-scaler/internal/deck"
	"github.com/tphakala/go-audio-scaler/internal/logger"
	"github.com/tphakala/go-audio-scaler/internal/readahead"
	"github.com/tphakala/go-audio-scaler/internal/server"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var flagKeys = map[string]string{
	"server.addr":         "addr",
	"output.sample_rate":  "rate",
	"output.block_frames": "block",
	"log.level":           "log-level",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(argv []string) error {
	flags := pflag.NewFlagSet("scalerd", pflag.ContinueOnError)
	configFile := flags.String("config", "", "YAML configuration file")
	tracks := flags.StringArray("track", nil, "WAV file to load into a deck (repeatable)")
	flags.String("addr", "", "HTTP listen address")
	flags.Int("rate", 0, "Output sample rate in Hz")
	flags.Int("block", 0, "Render block size in frames")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	if err := flags.Parse(argv); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: *configFile,
		Flags:      flags,
		FlagKeys:   flagKeys,
	})
	if err != nil {
		return err
	}
	for _, path := range *tracks {
		cfg.Decks = append(cfg.Decks, config.DeckConfig{Track: path})
	}
	if len(cfg.Decks) == 0 {
		return fmt.Errorf("no decks configured: pass --track or list decks in the config file")
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, zlog)
}

// loadDecks creates one deck per configured track.
func loadDecks(cfg config.Config, zlog *zap.Logger) ([]*deck.Deck, error) {
	decks := make([]*deck.Deck, 0, len(cfg.Decks))
	for i, dc := range cfg.Decks {
		track, err := readahead.LoadWAV(dc.Track)
		if err != nil {
			return nil, fmt.Errorf("deck %d: %w", i, err)
		}

		d, err := deck.New(track, deck.Config{
			OutputRate:       cfg.Output.SampleRate,
			SeekOffsetFrames: cfg.Output.SeekOffsetFrames,
			Logger:           zlog,
		})
		if err != nil {
			return nil, fmt.Errorf("deck %d: %w", i, err)
		}

		scale := cfg.Scale
		if dc.Tempo > 0 {
			scale.Tempo = dc.Tempo
		}
		tempo := scale.SignedTempo()
		pitch := cfg.Scale.PitchRatio()
		if dc.Pitch > 0 {
			pitch = dc.Pitch
		}
		d.SetParams(tempo, pitch)

		zlog.Info("deck loaded",
			zap.String("deck", d.ID().String()),
			zap.String("track", track.Name()),
			zap.Duration("duration", track.Duration()),
			zap.Float64("tempo", tempo),
			zap.Float64("pitch", pitch))
		decks = append(decks, d)
	}
	return decks, nil
}

func serve(ctx context.Context, cfg config.Config, zlog *zap.Logger) error {
	decks, err := loadDecks(cfg, zlog)
	if err != nil {
		return err
	}

	ctx, cancelDecks := context.WithCancel(ctx)
	defer cancelDecks()

	registry := server.NewRegistry()
	hub := server.NewHub()
	for _, d := range decks {
		registry.Add(d)
	}

	gin.SetMode(cfg.Server.Mode)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(registry, hub, zlog).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var wg sync.WaitGroup
	for _, d := range decks {
		wg.Add(1)
		go func(d *deck.Deck) {
			defer wg.Done()
			id := d.ID().String()
			err := d.Run(ctx, cfg.Output.BlockFrames, func(block []float32) error {
				hub.Broadcast(id, block)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				zlog.Error("deck stopped", zap.String("deck", id), zap.Error(err))
			}
		}(d)
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		zlog.Warn("http shutdown", zap.Error(shutdownErr))
	}

	cancelDecks()
	wg.Wait()
	zlog.Info("scalerd stopped")
	return err
}
