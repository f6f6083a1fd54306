package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Run(ctx context.Context, wf *Workflow, trigger Trigger) (*RunResult, error) {
	args := m.Called(ctx, wf, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RunResult), args.Error(1)
}

type MockJobEnqueuer struct {
	mock.Mock
}

func (m *MockJobEnqueuer) Enqueue(ctx context.Context, workflowID string, trigger Trigger) (string, error) {
	args := m.Called(ctx, workflowID, trigger)
	return args.String(0), args.Error(1)
}

func linearWorkflow(name string) *Workflow {
	return &Workflow{
		Name: name,
		Nodes: []Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "end"},
		},
		Edges: []Edge{{Source: "1", Target: "2"}},
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, &MockExecutor{}, nil, nil)
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))

	_, err = NewService(NewMemoryRepository(), nil, nil, nil)
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))

	svc, err := NewService(NewMemoryRepository(), &MockExecutor{}, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, svc.Health(context.Background()))
}

func TestService_WorkflowCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc, err := NewService(repo, &MockExecutor{}, nil, logger.NewNop())
	require.NoError(t, err)

	var created *Workflow

	t.Run("create assigns id and edge ids", func(t *testing.T) {
		wf := linearWorkflow("demo")
		wf.ID = "client-chosen"

		created, err = svc.Create(ctx, wf)
		require.NoError(t, err)
		assert.NotEqual(t, "client-chosen", created.ID)
		assert.Equal(t, "e-1-2", created.Edges[0].ID)
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("create rejects invalid definitions", func(t *testing.T) {
		_, err := svc.Create(ctx, &Workflow{Nodes: []Node{{ID: "1", Type: "start"}}})
		assert.Equal(t, errors.CodeMissingField, errors.CodeOf(err))

		wf := linearWorkflow("dangling")
		wf.Edges = append(wf.Edges, Edge{Source: "2", Target: "ghost"})
		_, err = svc.Create(ctx, wf)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidWorkflow))

		_, err = svc.Create(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("get and list", func(t *testing.T) {
		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "demo", got.Name)

		list, total, err := svc.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, list, 1)

		_, err = svc.Get(ctx, "")
		assert.Equal(t, errors.CodeMissingField, errors.CodeOf(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err := svc.Get(ctx, created.ID)
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(err))
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(svc.Delete(ctx, created.ID)))
	})
}

func TestService_Execute(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	executor := &MockExecutor{}
	svc, err := NewService(repo, executor, nil, nil)
	require.NoError(t, err)

	wf, err := svc.Create(ctx, linearWorkflow("run me"))
	require.NoError(t, err)

	t.Run("runs stored workflow", func(t *testing.T) {
		want := &RunResult{ExecutionID: "exec-1", Status: ExecutionStatusSuccess, StepCount: 2}
		executor.On("Run", ctx, mock.MatchedBy(func(w *Workflow) bool { return w.ID == wf.ID }), TriggerAPI).
			Return(want, nil).Once()

		got, err := svc.Execute(ctx, wf.ID, TriggerAPI)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("unknown workflow never reaches the executor", func(t *testing.T) {
		_, err := svc.Execute(ctx, "missing", TriggerAPI)
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(err))
	})

	t.Run("inline definition gets an id", func(t *testing.T) {
		inline := &Workflow{
			Nodes: []Node{{ID: "a", Type: "start"}},
		}
		executor.On("Run", ctx, inline, TriggerManual).
			Return(&RunResult{ExecutionID: "exec-2", Status: ExecutionStatusSuccess}, nil).Once()

		got, err := svc.ExecuteDefinition(ctx, inline, TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, "exec-2", got.ExecutionID)
		assert.NotEmpty(t, inline.ID)
	})

	t.Run("async requires a queue", func(t *testing.T) {
		_, err := svc.ExecuteAsync(ctx, wf.ID, TriggerAPI)
		assert.Equal(t, errors.CodeResourceUnavailable, errors.CodeOf(err))
	})

	t.Run("dispatch without queue runs inline", func(t *testing.T) {
		executor.On("Run", mock.Anything, mock.Anything, TriggerSchedule).
			Return(&RunResult{ExecutionID: "exec-3", Status: ExecutionStatusSuccess}, nil).Once()
		require.NoError(t, svc.Dispatch(ctx, wf.ID))
	})

	executor.AssertExpectations(t)
}

func TestService_Queue(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	executor := &MockExecutor{}
	queue := &MockJobEnqueuer{}
	svc, err := NewService(repo, executor, queue, nil)
	require.NoError(t, err)

	wf, err := svc.Create(ctx, linearWorkflow("queued"))
	require.NoError(t, err)

	t.Run("enqueue", func(t *testing.T) {
		queue.On("Enqueue", ctx, wf.ID, TriggerAPI).Return("job-1", nil).Once()
		jobID, err := svc.ExecuteAsync(ctx, wf.ID, TriggerAPI)
		require.NoError(t, err)
		assert.Equal(t, "job-1", jobID)
	})

	t.Run("missing workflow is not enqueued", func(t *testing.T) {
		_, err := svc.ExecuteAsync(ctx, "missing", TriggerAPI)
		assert.Equal(t, errors.CodeResourceNotFound, errors.CodeOf(err))
	})

	t.Run("dispatch goes through the queue", func(t *testing.T) {
		queue.On("Enqueue", ctx, wf.ID, TriggerSchedule).
			Return("", errors.New(errors.ErrorTypeExternal, errors.CodeQueue, "broker down")).Once()
		assert.Equal(t, errors.CodeQueue, errors.CodeOf(svc.Dispatch(ctx, wf.ID)))
	})

	queue.AssertExpectations(t)
	executor.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Executions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc, err := NewService(repo, &MockExecutor{}, nil, nil)
	require.NoError(t, err)

	done := NewExecution("wf-1", TriggerAPI)
	done.Status = ExecutionStatusSuccess
	require.NoError(t, repo.CreateExecution(ctx, done))
	require.NoError(t, repo.CreateExecution(ctx, NewExecution("wf-1", TriggerAPI)))
	require.NoError(t, repo.CreateExecution(ctx, NewExecution("wf-2", TriggerAPI)))

	t.Run("get", func(t *testing.T) {
		got, err := svc.GetExecution(ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, ExecutionStatusSuccess, got.Status)

		_, err = svc.GetExecution(ctx, "")
		assert.Error(t, err)
	})

	t.Run("filter by workflow and status", func(t *testing.T) {
		list, total, err := svc.ListExecutions(ctx, ExecutionFilter{WorkflowID: "wf-1"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, list, 2)

		list, _, err = svc.ListExecutions(ctx, ExecutionFilter{WorkflowID: "wf-1", Status: ExecutionStatusSuccess})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, done.ID, list[0].ID)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, _, err := svc.ListExecutions(ctx, ExecutionFilter{Status: "Success"})
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
	})
}
