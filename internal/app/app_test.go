package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/health"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Database: &config.DatabaseConfig{
			Driver:           "sqlite",
			Backend:          "gorm",
			SQLitePath:       filepath.Join(t.TempDir(), "app.db"),
			EnableMigrations: true,
		},
		Kafka:     &config.KafkaConfig{},
		Engine:    &config.EngineConfig{UnknownNodePolicy: "passthrough", MaxSteps: 100},
		Scheduler: &config.SchedulerConfig{},
		Worker:    &config.WorkerConfig{},
		Storage:   &config.StorageConfig{Provider: "none"},
	}
}

func TestNew(t *testing.T) {
	t.Run("requires configuration", func(t *testing.T) {
		_, err := New(testContext(t), nil, nil, nil, Options{})
		require.Error(t, err)
		require.NotNil(t, errors.GetAppError(err))
		assert.Equal(t, errors.ErrorTypeConfiguration, errors.GetAppError(err).Type)
	})

	t.Run("rejects unknown node policy", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Engine.UnknownNodePolicy = "lenient"
		_, err := New(testContext(t), cfg, logger.NewNop(), nil, Options{Service: "test"})
		require.Error(t, err)
	})

	t.Run("wires sqlite without integrations", func(t *testing.T) {
		a, err := New(testContext(t), testConfig(t), logger.NewNop(), metrics.New(metrics.DefaultConfig()),
			Options{Service: "test", Version: "v0.0.1"})
		require.NoError(t, err)
		t.Cleanup(a.Close)

		report := a.Health.Check(testContext(t))
		assert.Equal(t, health.StatusHealthy, report.Status)
		assert.Contains(t, report.Checks, "database")
		assert.NotContains(t, report.Checks, "kafka")

		wf := workflows.NewWorkflow("chain", []workflows.Node{
			{ID: "a", Type: "start", Data: map[string]interface{}{"x": 1}},
			{ID: "b", Type: "end"},
		}, []workflows.Edge{{Source: "a", Target: "b"}})
		created, err := a.Workflows.Create(testContext(t), wf)
		require.NoError(t, err)

		result, err := a.Workflows.Execute(testContext(t), created.ID, workflows.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, workflows.ExecutionStatusSuccess, result.Status)
		assert.Equal(t, 2, result.StepCount)

		exec, err := a.Repo.GetExecution(testContext(t), result.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, workflows.TriggerManual, exec.Trigger)

		_, err = a.Workflows.ExecuteAsync(testContext(t), created.ID, workflows.TriggerAPI)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeResourceUnavailable))
	})
}
