package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

func sqliteConfig(t *testing.T, migrate bool) (*config.DatabaseConfig, string) {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:           "sqlite",
		Backend:          "gorm",
		SQLitePath:       filepath.Join(t.TempDir(), "flows.db"),
		EnableMigrations: migrate,
	}
	return cfg, cfg.SQLitePath
}

func TestOpen(t *testing.T) {
	t.Run("sqlite with migrations", func(t *testing.T) {
		cfg, dsn := sqliteConfig(t, true)
		db, err := Open(cfg, dsn, logger.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		assert.NoError(t, db.Health(testContext(t)))
		assert.True(t, db.Migrator().HasTable("workflows"))
		assert.True(t, db.Migrator().HasTable("executions"))
		assert.Contains(t, db.Stats(), "open_connections")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := &config.DatabaseConfig{Driver: "mysql"}
		_, err := Open(cfg, "", logger.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gorm backend does not support driver")
	})
}

func TestMigrationManager(t *testing.T) {
	cfg, dsn := sqliteConfig(t, false)
	db, err := Open(cfg, dsn, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	manager := NewMigrationManager(db, logger.NewNop())
	require.NoError(t, manager.Run(testContext(t)))

	applied, err := manager.Applied(testContext(t))
	require.NoError(t, err)
	require.Contains(t, applied, "0001")
	assert.Equal(t, "create_workflows_and_executions", applied["0001"].Name)

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, manager.Run(testContext(t)))
		again, err := manager.Applied(testContext(t))
		require.NoError(t, err)
		assert.Len(t, again, len(applied))
		assert.Equal(t, applied["0001"].AppliedAt.Unix(), again["0001"].AppliedAt.Unix())
	})
}

func TestSQLDriverName(t *testing.T) {
	tests := []struct {
		driver string
		want   string
		err    bool
	}{
		{driver: "postgres", want: "pgx"},
		{driver: "mysql", want: "mysql"},
		{driver: "sqlite", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := SQLDriverName(tt.driver)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
