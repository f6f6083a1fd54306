package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/PratikKhaire/100x-n8n/internal/app"
	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/messaging"
	"github.com/PratikKhaire/100x-n8n/internal/worker"
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
		logger.New("worker").Fatal("Failed to load configuration", "error", err)
	}

	log := logger.NewWithConfig("worker", cfg.LoggerConfig())
	logger.SetGlobal(log)
	log.Info("Starting flowrun worker",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"concurrency", cfg.Worker.Concurrency,
	)

	if !cfg.Kafka.Enabled {
		log.Fatal("The worker consumes jobs from Kafka; set KAFKA_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Initialize(ctx, cfg.TracingConfig("worker", version))
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	metricsCfg := cfg.MetricsConfig()
	metricsCfg.ServiceName = "worker"
	m := metrics.Initialize(metricsCfg)

	a, err := app.New(ctx, cfg, log, m, app.Options{Service: "worker", Version: version})
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	defer a.Close()

	concurrency := max(cfg.Worker.Concurrency, 1)
	sources := make([]worker.JobSource, 0, concurrency)
	for i := 0; i < concurrency; i++ {
		consumer, err := messaging.NewConsumer(cfg.Kafka, cfg.Kafka.JobsTopic, log, m)
		if err != nil {
			log.Fatal("Failed to create Kafka consumer", "error", err)
		}
		sources = append(sources, consumer)
	}

	w, err := worker.New(sources, a.Workflows, log, 0)
	if err != nil {
		log.Fatal("Failed to create worker", "error", err)
	}
	w.Start(ctx)

	go func() {
		extra := map[string]http.Handler{}
		if cfg.Metrics.Enabled {
			extra[cfg.Metrics.Path] = m.Handler()
		}
		addr := fmt.Sprintf(":%d", cfg.Worker.HealthPort)
		if err := a.Health.Serve(ctx, addr, extra); err != nil {
			log.Error("Health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Received shutdown signal, stopping worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if err := w.Stop(shutdownCtx); err != nil {
		log.Error("Error during worker shutdown", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", "error", err)
	}

	log.Info("Worker shutdown completed")
}
