package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	audio2text "github.com/snarg/audio2text"
	"github.com/snarg/audio2text/internal/api"
	"github.com/snarg/audio2text/internal/config"
	"github.com/snarg/audio2text/internal/media"
	"github.com/snarg/audio2text/internal/metrics"
	"github.com/snarg/audio2text/internal/pipeline"
	"github.com/snarg/audio2text/internal/storage"
	"github.com/snarg/audio2text/internal/summarize"
	"github.com/snarg/audio2text/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.WhisperModel, "whisper-model", "", "Default model (overrides WHISPER_MODEL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("whisper_backend", cfg.Whisper.Backend).
		Str("default_model", cfg.Whisper.Model).
		Msg("audio2text starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Media tools
	tools := media.NewTools(cfg.Media.FFmpeg, cfg.Media.FFprobe)
	for tool, ok := range tools.Available() {
		if !ok {
			log.Warn().Str("tool", tool).Msg("media tool not found in PATH; requests will fail")
		}
	}

	// Scratch root; the sweeper owns everything under it with the workspace prefix
	if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TempDir).Msg("failed to create temp dir")
	}

	// Recognizer models
	loader, err := transcribe.NewLoader(cfg.Whisper, cfg.TempDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure whisper backend")
	}
	models := transcribe.NewModelCache(loader, cfg.Whisper.Model, log)

	// Optional artifact archive
	archive, err := storage.New(cfg.Archive, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize artifact archive")
	}
	archiveType := ""
	if archive != nil {
		archiveType = archive.Type()
	}

	// Stale workspace sweeper
	sweeper := storage.NewWorkspaceSweeper(cfg.TempDir, cfg.WorkspaceMaxAge, log)
	sweeper.Start()
	defer sweeper.Stop()

	svc := pipeline.NewService(pipeline.Deps{
		Media:      tools,
		Models:     models,
		Summarizer: summarize.NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.BaseURL),
		Archive:    archive,
		TempDir:    cfg.TempDir,
		Language:   cfg.Whisper.Language,
		Log:        log,
	})
	prometheus.MustRegister(metrics.NewCollector(svc))

	webFS, err := fs.Sub(audio2text.WebFiles, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load embedded console")
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:   cfg,
		Pipeline: svc,
		Health: api.HealthDeps{
			Tools:   tools,
			Models:  models,
			Backend: cfg.Whisper.Backend,
			Archive: archiveType,
		},
		WebFS:     webFS,
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// In-flight transcriptions can be long; give them a bounded grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("audio2text stopped")
}
