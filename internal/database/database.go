// Package database opens and migrates the relational stores behind the
// workflow and execution repositories.
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/retry"
)

// Database wraps a GORM database instance
type Database struct {
	*gorm.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

// Open connects through GORM using the configured driver (postgres or
// sqlite) and runs migrations when enabled.
func Open(cfg *config.DatabaseConfig, dsn string, log logger.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("gorm backend does not support driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:                 newGormLogger(cfg),
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver == "postgres",
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}

	var db *gorm.DB
	err := retry.New(connectRetry(cfg)).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("Database connection attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
		}).
		Execute(context.Background(), func(context.Context, int) error {
			var openErr error
			db, openErr = gorm.Open(dialector, gormConfig)
			return openErr
		})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
		sqlDB.SetConnMaxLifetime(cfg.ConnectionLifetime)
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{DB: db, config: cfg, logger: log}

	if cfg.EnableMigrations {
		if err := NewMigrationManager(database, log).Run(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return database, nil
}

// connectRetry maps the configured attempts and delay onto a fixed-delay
// retry policy
func connectRetry(cfg *config.DatabaseConfig) *retry.Config {
	return &retry.Config{
		MaxAttempts:  max(cfg.RetryAttempts, 1),
		InitialDelay: cfg.RetryDelay,
		Strategy:     retry.StrategyFixed,
	}
}

func newGormLogger(cfg *config.DatabaseConfig) gormlogger.Interface {
	if !cfg.EnableQueryLogging {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryThreshold,
			LogLevel:                  gormlogger.Info,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Close closes the database connection
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health pings the database
func (db *Database) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns connection pool statistics
func (db *Database) Stats() map[string]interface{} {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"open_connections":   stats.OpenConnections,
		"idle_connections":   stats.Idle,
		"in_use_connections": stats.InUse,
		"wait_count":         stats.WaitCount,
		"wait_duration":      stats.WaitDuration.String(),
	}
}
