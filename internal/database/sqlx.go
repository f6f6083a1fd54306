package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/retry"
)

// SQLDriverName maps a configured driver to its database/sql driver name
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("sqlx backend does not support driver %q", driver)
	}
}

// OpenSQL connects through sqlx using pgx for postgres or the MySQL driver
func OpenSQL(ctx context.Context, cfg *config.DatabaseConfig, dsn string) (*sqlx.DB, error) {
	driverName, err := SQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var db *sqlx.DB
	err = retry.New(connectRetry(cfg)).Execute(ctx, func(ctx context.Context, _ int) error {
		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var connErr error
		db, connErr = sqlx.ConnectContext(connectCtx, driverName, dsn)
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionLifetime)

	if cfg.EnableMigrations {
		if err := MigrateSQL(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}
