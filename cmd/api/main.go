package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/api/httpserver"
	"github.com/PratikKhaire/100x-n8n/internal/app"
	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
	"github.com/PratikKhaire/100x-n8n/pkg/tracing"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("api").Fatal("Failed to load configuration", "error", err)
	}

	log := logger.NewWithConfig("api", cfg.LoggerConfig())
	logger.SetGlobal(log)
	log.Info("Starting flowrun API server",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"environment", cfg.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Initialize(ctx, cfg.TracingConfig("api", version))
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	metricsCfg := cfg.MetricsConfig()
	metricsCfg.ServiceName = "api"
	m := metrics.Initialize(metricsCfg)

	a, err := app.New(ctx, cfg, log, m, app.Options{Service: "api", Version: version})
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	defer a.Close()

	deps := httpserver.Dependencies{
		Workflows: a.Workflows,
		Catalog:   a.Catalog,
		Health:    a.Health,
		Logger:    log,
		Version:   version,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = m
	}

	server := httpserver.New(cfg.API, deps)
	if err := server.Start(ctx, 30*time.Second); err != nil {
		log.Error("API server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", "error", err)
	}

	log.Info("API server stopped")
}
