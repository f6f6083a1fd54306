package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// Migration is one versioned schema change applied through GORM
type Migration struct {
	Version string
	Name    string
	Up      func(tx *gorm.DB) error
}

// SchemaMigration records an applied migration
type SchemaMigration struct {
	Version       string    `gorm:"primaryKey;size:32"`
	Name          string    `gorm:"size:255;not null"`
	AppliedAt     time.Time `gorm:"not null"`
	ExecutionTime int64     `gorm:"not null"` // milliseconds
}

// TableName sets the table name for SchemaMigration
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// MigrationManager applies pending migrations in version order
type MigrationManager struct {
	db         *Database
	logger     logger.Logger
	migrations []Migration
}

// NewMigrationManager creates a manager with the built-in migrations
func NewMigrationManager(db *Database, log logger.Logger) *MigrationManager {
	return &MigrationManager{
		db:     db,
		logger: log,
		migrations: []Migration{
			{
				Version: "0001",
				Name:    "create_workflows_and_executions",
				Up: func(tx *gorm.DB) error {
					return tx.AutoMigrate(&workflows.Workflow{}, &workflows.Execution{})
				},
			},
		},
	}
}

// Run applies every migration not yet recorded in schema_migrations
func (m *MigrationManager) Run(ctx context.Context) error {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, done := applied[mig.Version]; done {
			continue
		}

		start := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:       mig.Version,
				Name:          mig.Name,
				AppliedAt:     time.Now().UTC(),
				ExecutionTime: time.Since(start).Milliseconds(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s_%s failed: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("Applied migration", "version", mig.Version, "name", mig.Name, "duration", time.Since(start))
	}

	return nil
}

// Applied returns the versions already applied
func (m *MigrationManager) Applied(ctx context.Context) (map[string]SchemaMigration, error) {
	var rows []SchemaMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	out := make(map[string]SchemaMigration, len(rows))
	for _, r := range rows {
		out[r.Version] = r
	}
	return out, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		nodes TEXT NOT NULL,
		edges TEXT NOT NULL,
		schedule VARCHAR(128) NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id VARCHAR(64) PRIMARY KEY,
		workflow_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		trigger_type VARCHAR(16) NOT NULL,
		result TEXT,
		error TEXT NOT NULL DEFAULT '',
		step_count INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions (workflow_id)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		nodes LONGTEXT NOT NULL,
		edges LONGTEXT NOT NULL,
		schedule VARCHAR(128) NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id VARCHAR(64) PRIMARY KEY,
		workflow_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		trigger_type VARCHAR(16) NOT NULL,
		result LONGTEXT,
		error TEXT NOT NULL,
		step_count INT NOT NULL DEFAULT 0,
		started_at DATETIME(6) NOT NULL,
		finished_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_executions_workflow_id (workflow_id),
		INDEX idx_executions_status (status)
	)`,
}

// MigrateSQL creates the schema for the sqlx backend
func MigrateSQL(ctx context.Context, db *sqlx.DB) error {
	statements := postgresSchema
	if db.DriverName() == "mysql" {
		statements = mysqlSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
