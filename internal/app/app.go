// Package app assembles the components shared by the api, worker and
// scheduler binaries from a loaded configuration.
package app

import (
	"context"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/database"
	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/messaging"
	"github.com/PratikKhaire/100x-n8n/internal/nodes"
	"github.com/PratikKhaire/100x-n8n/internal/nodes/http"
	"github.com/PratikKhaire/100x-n8n/internal/storage/s3"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/health"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// App holds the wired components of one process
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Repo      workflows.Repository
	Catalog   *nodes.Catalog
	Engine    *engine.Engine
	Workflows *workflows.Service
	Health    *health.Checker

	closers []func() error
}

// Options name the process being assembled
type Options struct {
	Service string
	Version string
}

// New opens the repository, builds the node catalog and engine, and wires
// the optional Kafka and S3 integrations. Close releases everything New
// opened, also when New fails halfway.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.ConfigurationError("configuration is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Health:  health.NewChecker(opts.Service, opts.Version, 5*time.Second, log),
	}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Repo = repo
	a.Health.Register("database", true, repo.Health)

	a.Catalog, err = nodes.NewCatalog(log, nodes.Config{
		HTTP: http.Config{
			Timeout:      cfg.Engine.HTTPTimeout,
			MaxRedirects: cfg.Engine.HTTPMaxRedirects,
			MaxBodyBytes: cfg.Engine.HTTPMaxBodyBytes,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	observers, queue, err := a.integrations()
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := engine.ParseUnknownNodePolicy(cfg.Engine.UnknownNodePolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine, err = engine.New(a.Catalog.Registry(), repo, log, m, engine.Options{
		UnknownNodePolicy: policy,
		MaxSteps:          cfg.Engine.MaxSteps,
		RunTimeout:        cfg.Engine.RunTimeout,
	}, observers...)
	if err != nil {
		a.Close()
		return nil, err
	}

	// A nil *JobQueue must not reach the service as a non-nil interface.
	var enqueuer workflows.JobEnqueuer
	if queue != nil {
		enqueuer = queue
	}
	a.Workflows, err = workflows.NewService(repo, a.Engine, enqueuer, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openRepository(ctx context.Context) (workflows.Repository, error) {
	cfg := a.Config
	if cfg.Database.Backend == "sqlx" {
		db, err := database.OpenSQL(ctx, cfg.Database, cfg.GetDSN())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseConnection, "failed to open database")
		}
		a.closers = append(a.closers, db.Close)
		a.Logger.Info("Connected to database", "driver", cfg.Database.Driver, "backend", "sqlx")
		return workflows.NewSQLRepository(db, a.Logger, a.Metrics), nil
	}

	db, err := database.Open(cfg.Database, cfg.GetDSN(), a.Logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseConnection, "failed to open database")
	}
	a.closers = append(a.closers, db.Close)
	a.Logger.Info("Connected to database", "driver", cfg.Database.Driver, "backend", "gorm")
	return workflows.NewGormRepository(db.DB, a.Logger, a.Metrics), nil
}

// integrations builds the lifecycle observers and the job queue. Both are
// empty when Kafka and archiving are disabled.
func (a *App) integrations() ([]engine.Observer, *messaging.JobQueue, error) {
	cfg := a.Config
	var (
		observers []engine.Observer
		queue     *messaging.JobQueue
	)

	if cfg.Kafka.Enabled {
		jobs, err := messaging.NewProducer(cfg.Kafka, cfg.Kafka.JobsTopic, a.Logger, a.Metrics)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, jobs.Close)
		queue = messaging.NewJobQueue(jobs)
		a.Health.Register("kafka", false, jobs.Health)

		events, err := messaging.NewProducer(cfg.Kafka, cfg.Kafka.EventsTopic, a.Logger, a.Metrics)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, events.Close)
		observers = append(observers, messaging.NewEventPublisher(events))
	}

	if cfg.Storage.Provider == "s3" {
		client, err := s3.New(cfg.Storage.S3Config, a.Logger)
		if err != nil {
			return nil, nil, err
		}
		observers = append(observers, s3.NewArchiver(client, a.Logger, a.Metrics))
		a.Health.Register("s3", false, client.Health)
	}

	return observers, queue, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
