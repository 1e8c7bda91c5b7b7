// Package main is the entrypoint for the transcription worker. It consumes
// the transcription queue, downloads and transcribes audio, and forwards
// jobs to the notes queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"voicediary/internal/cache"
	"voicediary/internal/config"
	"voicediary/internal/jobs"
	"voicediary/internal/queue"
	"voicediary/internal/storage"
	"voicediary/internal/store"
	"voicediary/internal/transcribe"
	"voicediary/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("transcription worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	files, err := storage.NewFileStore(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("init file storage: %w", err)
	}

	// With DATABASE_URL set, jobs failing in this stage get their archive
	// row written here instead of waiting for an API read.
	var archive store.Archive
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		archive = store.NewPostgresArchive(pool)
		slog.Info("job archive connected")
	}

	downloadClient := &http.Client{Timeout: 30 * time.Second}
	whisperClient := &http.Client{Timeout: cfg.Transcribe.Timeout}

	stage := worker.NewTranscribeStage(
		store.WithArchive(store.NewRedisStoreFromClient(client), archive),
		cache.NewRedisTranscriptCacheFromClient(client),
		queue.NewRedisQueueFromClient(client),
		files,
		transcribe.NewHTTPDownloader(downloadClient, int64(cfg.Transcribe.MaxDownloadMB)*1024*1024),
		transcribe.NewHTTPTranscriber(cfg.Transcribe.Endpoint, cfg.Transcribe.DefaultModel, whisperClient),
		cfg.Cache.TranscriptTTL,
	)

	loop := worker.NewLoop(
		queue.NewRedisQueueFromClient(client),
		jobs.TranscriptionChannel,
		stage.Handle,
		cfg.Worker.PollTimeout,
		cfg.Worker.ReconnectDelay,
	)

	slog.Info("transcription worker starting",
		"whisper_endpoint", cfg.Transcribe.Endpoint,
		"default_model", cfg.Transcribe.DefaultModel)
	loop.Run(ctx)

	slog.Info("transcription worker stopped")
	return nil
}
