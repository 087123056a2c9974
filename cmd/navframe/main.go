package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/nav/navframe/internal/api"
	"github.com/nav/navframe/internal/auth"
	"github.com/nav/navframe/internal/batch"
	"github.com/nav/navframe/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("NAVFRAME_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	apiCfg, workers := loadAPIConfig(logger)

	pool := batch.NewPool(workers, logger)
	metrics.SetBatchWorkers(pool.Workers())

	srv := api.NewServer(addr, logger, authCfg, pool, apiCfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "batch_workers", pool.Workers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("NAVFRAME_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("NAVFRAME_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("NAVFRAME_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("NAVFRAME_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadAPIConfig(logger *slog.Logger) (api.Config, int) {
	cfg := api.Config{
		MaxBatchPoints: 10000,
		MaxBatchPerIP:  4,
	}
	workers := runtime.NumCPU()

	if v := os.Getenv("NAVFRAME_BATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVFRAME_BATCH_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}

	if v := os.Getenv("NAVFRAME_BATCH_MAX_POINTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVFRAME_BATCH_MAX_POINTS value, using default", "value", v, "default", cfg.MaxBatchPoints)
		} else {
			cfg.MaxBatchPoints = n
		}
	}

	if v := os.Getenv("NAVFRAME_BATCH_MAX_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVFRAME_BATCH_MAX_PER_IP value, using default", "value", v, "default", cfg.MaxBatchPerIP)
		} else {
			cfg.MaxBatchPerIP = n
		}
	}

	if v := os.Getenv("NAVFRAME_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid NAVFRAME_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("api config",
		"batch_workers", workers,
		"batch_max_points", cfg.MaxBatchPoints,
		"batch_max_per_ip", cfg.MaxBatchPerIP,
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg, workers
}
