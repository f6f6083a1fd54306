package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/app"
	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/scheduler"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("scheduler").Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig("scheduler", cfg.LoggerConfig())
	logger.SetGlobal(log)
	log.Info("Starting flowrun scheduler", "version", version, "location", cfg.Scheduler.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsCfg := cfg.MetricsConfig()
	metricsCfg.ServiceName = "scheduler"
	m := metrics.Initialize(metricsCfg)

	a, err := app.New(ctx, cfg, log, m, app.Options{Service: "scheduler", Version: version})
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	defer a.Close()

	schedulerSvc, err := scheduler.NewService(cfg.Scheduler, a.Repo, a.Workflows.Dispatch, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", "error", err)
	}
	a.Health.Register("scheduler", true, schedulerSvc.Health)

	if err := schedulerSvc.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}
	log.Info("Scheduler started", "entries", len(schedulerSvc.Scheduled()))

	go func() {
		extra := map[string]http.Handler{}
		if cfg.Metrics.Enabled {
			extra[cfg.Metrics.Path] = m.Handler()
		}
		if err := a.Health.Serve(ctx, fmt.Sprintf(":%d", cfg.Scheduler.HealthPort), extra); err != nil {
			log.Error("Health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Received shutdown signal, stopping scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := schedulerSvc.Stop(shutdownCtx); err != nil {
		log.Error("Error during scheduler shutdown", "error", err)
	}

	log.Info("Scheduler stopped")
}
