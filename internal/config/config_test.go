package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

func TestLoadDefaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3003, cfg.API.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "gorm", cfg.Database.Backend)
	assert.Equal(t, "passthrough", cfg.Engine.UnknownNodePolicy)
	assert.Equal(t, 1000, cfg.Engine.MaxSteps)
	assert.Equal(t, 5*time.Minute, cfg.Engine.RunTimeout)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "none", cfg.Storage.Provider)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("API_PORT", "8088")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/runs.db")
	t.Setenv("ENGINE_UNKNOWN_NODE_POLICY", "strict")
	t.Setenv("ENGINE_RUN_TIMEOUT", "45")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.API.Port)
	assert.Equal(t, "/tmp/runs.db", cfg.GetDSN())
	assert.Equal(t, "strict", cfg.Engine.UnknownNodePolicy)
	assert.Equal(t, 45*time.Second, cfg.Engine.RunTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	chdirForTest(t, t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad policy", map[string]string{"ENGINE_UNKNOWN_NODE_POLICY": "ignore"}, "unknown node policy"},
		{"bad driver", map[string]string{"DB_DRIVER": "oracle"}, "database driver"},
		{"bad backend", map[string]string{"DB_BACKEND": "ent"}, "database backend"},
		{"gorm with mysql", map[string]string{"DB_DRIVER": "mysql"}, "requires the sqlx"},
		{"sqlx with sqlite", map[string]string{"DB_DRIVER": "sqlite", "DB_BACKEND": "sqlx"}, "requires the gorm"},
		{"s3 without bucket", map[string]string{"STORAGE_PROVIDER": "s3"}, "S3 bucket"},
		{"zero steps", map[string]string{"ENGINE_MAX_STEPS": "0"}, "max steps"},
		{"kafka without topic", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_BROKERS": "k:9092", "KAFKA_JOBS_TOPIC": " "}, "topics are required"},
		{"zero concurrency", map[string]string{"WORKER_CONCURRENCY": "0"}, "worker concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var list *errors.ErrorList
			assert.True(t, errors.As(err, &list))
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: &DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432, Database: "flowrun",
		Username: "app", Password: "p@ss", SSLMode: "disable",
	}}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/flowrun?sslmode=disable", cfg.GetDSN())

	cfg.Database.Driver = "mysql"
	cfg.Database.Port = 3306
	assert.Equal(t, "app:p@ss@tcp(db:3306)/flowrun?parseTime=true", cfg.GetDSN())
}

func TestEnvironmentLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nFLOWRUN_TEST_A=one\nexport FLOWRUN_TEST_B=\"two\"\nbroken line\nFLOWRUN_TEST_C=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("FLOWRUN_TEST_C", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("FLOWRUN_TEST_A")
		os.Unsetenv("FLOWRUN_TEST_B")
	})

	loader := NewEnvironmentLoader(logger.NewNop())
	require.NoError(t, loader.LoadEnvFile(path))
	require.NoError(t, loader.LoadEnvFile(filepath.Join(dir, "missing.env")))

	assert.Equal(t, "one", os.Getenv("FLOWRUN_TEST_A"))
	assert.Equal(t, "two", os.Getenv("FLOWRUN_TEST_B"))
	assert.Equal(t, "from-env", os.Getenv("FLOWRUN_TEST_C"))
}
