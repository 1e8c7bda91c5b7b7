// Package main is the entrypoint for the voicediary intake and status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"voicediary/internal/api"
	"voicediary/internal/api/handler"
	mw "voicediary/internal/api/middleware"
	"voicediary/internal/api/response"
	"voicediary/internal/cache"
	"voicediary/internal/config"
	"voicediary/internal/queue"
	"voicediary/internal/ratelimit"
	"voicediary/internal/storage"
	"voicediary/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

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

	stageQueue := queue.NewRedisQueueFromClient(client)

	// The archive is optional; without DATABASE_URL the listing endpoint
	// degrades but intake and status reads work.
	var archive store.Archive
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		archive = store.NewPostgresArchive(pool)
		slog.Info("job archive connected")
	} else {
		slog.Warn("DATABASE_URL not set, job archive disabled")
	}

	// Cancellations through the API are terminal, so the store is wrapped
	// to archive them as they land.
	statusStore := store.WithArchive(store.NewRedisStoreFromClient(client), archive)

	files, err := storage.NewFileStore(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("init file storage: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour)
	transcriptCache := cache.NewRedisTranscriptCacheFromClient(client)

	deps := api.Dependencies{
		RateLimit:     mw.NewRateLimit(limiter),
		Jobs:          handler.NewJobs(statusStore, archive, stageQueue, files),
		HealthHandler: healthHandler(statusStore, transcriptCache, archive),
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks Redis and, when configured, archive connectivity.
func healthHandler(s store.Store, c cache.TranscriptCache, archive store.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"status_store": "ok",
			"cache":        "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["status_store"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if archive != nil {
			checks["archive"] = "ok"
			if err := archive.Ping(r.Context()); err != nil {
				checks["archive"] = "degraded"
			}
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
