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

	"github.com/mapa-edu/mapa-server/internal/api"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
	"github.com/mapa-edu/mapa-server/pkg/mapa/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repo, pool, err := cfg.BuildRepository(ctx)
	if err != nil {
		logger.Error("failed to build repository", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := cfg.BuildBlobStore()
	if err != nil {
		logger.Error("failed to build blob store", "error", err)
		os.Exit(1)
	}

	media, err := cfg.BuildMediaPipeline(store)
	if err != nil {
		logger.Error("failed to build media pipeline", "error", err)
		os.Exit(1)
	}

	notifier, err := cfg.BuildNotifier()
	if err != nil {
		logger.Error("failed to build notifier", "error", err)
		os.Exit(1)
	}

	auth := mapa.NewAuthenticator(repo, cfg.TokenSecret, cfg.TokenTTL)

	svc, err := mapa.New(
		mapa.WithRepository(repo),
		mapa.WithMediaPipeline(media),
		mapa.WithAuthenticator(auth),
		mapa.WithNotifier(notifier),
		mapa.WithBaseURL(cfg.BaseURL),
		mapa.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(svc, auth, media, store, cfg.Environment)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: server.Routes(),
	}

	database := "memory"
	if cfg.UsesPostgres() {
		database = "postgres"
	}

	go func() {
		logger.Info("mapa server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage_backend", cfg.StorageBackend,
			"database", database)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
