/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/munin_audio/internal/api"
	"github.com/friendsincode/munin_audio/internal/config"
	"github.com/friendsincode/munin_audio/internal/db"
	"github.com/friendsincode/munin_audio/internal/events"
	"github.com/friendsincode/munin_audio/internal/logbuffer"
	"github.com/friendsincode/munin_audio/internal/logging"
	"github.com/friendsincode/munin_audio/internal/playlist"
	"github.com/friendsincode/munin_audio/internal/playout"
	"github.com/friendsincode/munin_audio/internal/scheduler"
	"github.com/friendsincode/munin_audio/internal/telemetry"
	"github.com/friendsincode/munin_audio/internal/version"
)

const (
	outputSampleRate = beep.SampleRate(44100)
	speakerBuffer    = 100 * time.Millisecond
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:     "muninaudio",
	Short:   "Munin Audio - radio playout engine",
	Long:    "Munin Audio drives continuous broadcast-style playback from an ordered track queue with crossfades, silence auto-skip and artist intros.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playout engine and control API",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Import audio files from a folder into the playlist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(cfg.LogBufferCap)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Munin Audio starting")

	playback, err := config.LoadPlayback(cfg.PlaybackPath)
	if err != nil {
		return fmt.Errorf("load playback config: %w", err)
	}

	database, err := db.Connect(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	store, err := playlist.NewStore(database)
	if err != nil {
		return fmt.Errorf("open playlist: %w", err)
	}
	queue, err := playlist.NewQueue(store, logger)
	if err != nil {
		return fmt.Errorf("load playlist: %w", err)
	}

	device, err := playout.OpenSpeaker(outputSampleRate, speakerBuffer, logger)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	defer device.Close()

	bus := events.NewBus()
	metrics := telemetry.New()
	bus.OnDrop(func(events.Type) { metrics.DroppedEvents.Inc() })
	resolver := playout.NewIntroResolver(logger)
	engine := playout.New(device, queue, playback, bus, metrics, resolver, logger)
	runner := scheduler.NewRunner(engine, queue, logger)

	srv := api.New(api.Deps{
		Config:   cfg,
		Engine:   engine,
		Store:    store,
		Queue:    queue,
		Runner:   runner,
		LogBuf:   logBuf,
		Metrics:  metrics,
		Playback: playback,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)
	go runner.Run(ctx)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Stop(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful http shutdown failed")
	}

	if err := engine.Send(playout.Shutdown()); err == nil {
		select {
		case <-engine.Done():
		case <-timeoutCtx.Done():
			logger.Warn().Msg("engine shutdown timed out")
		}
	}
	cancel()

	logger.Info().Msg("Munin Audio stopped")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	root := cfg.MediaRoot
	if len(args) == 1 {
		root = args[0]
	}

	database, err := db.Connect(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(database)

	store, err := playlist.NewStore(database)
	if err != nil {
		return fmt.Errorf("open playlist: %w", err)
	}

	added, err := playlist.NewScanner(store, logger).Scan(root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	fmt.Printf("added %d tracks from %s\n", added, root)
	return nil
}
