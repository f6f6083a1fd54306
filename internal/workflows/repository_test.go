package workflows

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

func newGormTestRepository(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "flows.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Workflow{}, &Execution{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewGormRepository(db, logger.NewNop(), nil)
}

// repositoryContract runs the same behaviour checks against every backend.
func repositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	wf := NewWorkflow("contract", []Node{
		{ID: "1", Type: "start"},
		{ID: "2", Type: "httpRequest", Data: map[string]interface{}{"url": "http://example.com"}},
	}, []Edge{{Source: "1", Target: "2"}})
	wf.Schedule = "@every 1h"

	t.Run("workflow round trip", func(t *testing.T) {
		require.NoError(t, repo.CreateWorkflow(ctx, wf))

		got, err := repo.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf.Name, got.Name)
		assert.Equal(t, wf.Nodes, got.Nodes)
		assert.Equal(t, wf.Edges, got.Edges)

		_, err = repo.GetWorkflow(ctx, "missing")
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(err))
	})

	t.Run("list and scheduled", func(t *testing.T) {
		plain := NewWorkflow("plain", []Node{{ID: "s", Type: "start"}}, nil)
		require.NoError(t, repo.CreateWorkflow(ctx, plain))

		list, total, err := repo.ListWorkflows(ctx, ListOptions{Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, list, 1)

		scheduled, err := repo.ListScheduled(ctx)
		require.NoError(t, err)
		require.Len(t, scheduled, 1)
		assert.Equal(t, wf.ID, scheduled[0].ID)

		require.NoError(t, repo.DeleteWorkflow(ctx, plain.ID))
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(repo.DeleteWorkflow(ctx, plain.ID)))
	})

	t.Run("execution lifecycle", func(t *testing.T) {
		exec := NewExecution(wf.ID, TriggerAPI)
		require.NoError(t, repo.CreateExecution(ctx, exec))

		pending, err := repo.GetExecution(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, ExecutionStatusPending, pending.Status)
		assert.Nil(t, pending.FinishedAt)

		finished := time.Now().UTC()
		exec.Status = ExecutionStatusSuccess
		exec.Result = map[string]interface{}{"x": float64(1)}
		exec.StepCount = 2
		exec.FinishedAt = &finished
		exec.UpdatedAt = finished
		require.NoError(t, repo.UpdateExecution(ctx, exec))

		got, err := repo.GetExecution(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, ExecutionStatusSuccess, got.Status)
		assert.Equal(t, map[string]interface{}{"x": float64(1)}, got.Result)
		assert.Equal(t, 2, got.StepCount)
		assert.NotNil(t, got.FinishedAt)
		assert.Equal(t, TriggerAPI, got.Trigger)

		failed := NewExecution(wf.ID, TriggerQueue)
		require.NoError(t, repo.CreateExecution(ctx, failed))

		list, total, err := repo.ListExecutions(ctx, ExecutionFilter{WorkflowID: wf.ID, Status: ExecutionStatusSuccess})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, exec.ID, list[0].ID)

		ghost := NewExecution(wf.ID, TriggerAPI)
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(repo.UpdateExecution(ctx, ghost)))
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestMemoryRepository(t *testing.T) {
	repositoryContract(t, NewMemoryRepository())

	t.Run("duplicate ids conflict", func(t *testing.T) {
		repo := NewMemoryRepository()
		wf := NewWorkflow("dup", nil, nil)
		require.NoError(t, repo.CreateWorkflow(context.Background(), wf))
		err := repo.CreateWorkflow(context.Background(), wf)
		assert.Equal(t, errors.CodeResourceExists, errors.CodeOf(err))
	})
}

func TestGormRepository(t *testing.T) {
	repositoryContract(t, newGormTestRepository(t))
}
