package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/rxstock/internal/app"
	"github.com/JonMunkholm/rxstock/internal/config"
	"github.com/JonMunkholm/rxstock/internal/core"
	"github.com/JonMunkholm/rxstock/internal/logging"
	"github.com/JonMunkholm/rxstock/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"chunk_size", cfg.Import.ChunkSize,
		"max_concurrent_commits", cfg.Import.MaxConcurrentCommits,
		"cache_enabled", cfg.Cache.Enabled,
		"events_enabled", cfg.Events.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	logger.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go a.Service.StartJanitor(ctx, core.JanitorConfig{
		Interval: cfg.Import.JanitorInterval,
		TTL:      cfg.Import.SessionTTL,
	})

	server := web.NewServer(a.Service, web.Options{
		Config: cfg,
		Audit:  a.Audit,
		Health: a.Ping,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Running commits finish their current chunk before the pool closes.
	if err := a.Service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("commits still running at shutdown", "error", err)
	}
}
