// Package main is the entrypoint for the note-generation worker. It
// consumes the notes queue and turns transcripts into diary notes through
// the provider router.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"voicediary/internal/config"
	"voicediary/internal/jobs"
	"voicediary/internal/llm"
	"voicediary/internal/llm/anthropic"
	"voicediary/internal/llm/local"
	"voicediary/internal/llm/openai"
	"voicediary/internal/queue"
	"voicediary/internal/storage"
	"voicediary/internal/store"
	"voicediary/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("note worker failed", "error", err)
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

	// Completion and failure both land here, so with DATABASE_URL set this
	// worker writes the archive row the moment a job turns terminal.
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

	router := buildRouter(cfg.LLM)
	slog.Info("provider router initialized", "providers", router.Providers())

	stage := worker.NewNoteStage(
		store.WithArchive(store.NewRedisStoreFromClient(client), archive),
		files,
		router,
		cfg.LLM.Timeout,
	)

	loop := worker.NewLoop(
		queue.NewRedisQueueFromClient(client),
		jobs.NotesChannel,
		stage.Handle,
		cfg.Worker.PollTimeout,
		cfg.Worker.ReconnectDelay,
	)

	slog.Info("note worker starting")
	loop.Run(ctx)

	slog.Info("note worker stopped")
	return nil
}

// buildRouter enumerates the configured providers once, in priority order.
// A provider participates iff its credentials were supplied; the router's
// built-in emergency path always remains.
func buildRouter(cfg config.LLMConfig) *llm.Router {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var entries []llm.ProviderEntry
	if cfg.OpenAI.APIKey != "" {
		entries = append(entries, llm.ProviderEntry{
			Provider:      openai.NewClient(cfg.OpenAI, httpClient),
			Rank:          1,
			PrimaryModel:  cfg.OpenAI.PrimaryModel,
			FallbackModel: cfg.OpenAI.FallbackModel,
		})
	}
	if cfg.Anthropic.APIKey != "" {
		entries = append(entries, llm.ProviderEntry{
			Provider:      anthropic.NewClient(cfg.Anthropic, httpClient),
			Rank:          2,
			PrimaryModel:  cfg.Anthropic.PrimaryModel,
			FallbackModel: cfg.Anthropic.FallbackModel,
		})
	}
	if cfg.Local.Enabled {
		entries = append(entries, llm.ProviderEntry{
			Provider:     local.NewProvider(),
			Rank:         4,
			PrimaryModel: cfg.Local.Model,
		})
	}

	if len(entries) == 0 {
		slog.Warn("no LLM providers configured, every note will use the emergency fallback")
	}

	return llm.NewRouter(entries, llm.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	})
}
