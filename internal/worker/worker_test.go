package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/internal/messaging"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Execute(ctx context.Context, id string, trigger workflows.Trigger) (*workflows.RunResult, error) {
	args := m.Called(ctx, id, trigger)
	var result *workflows.RunResult
	if r := args.Get(0); r != nil {
		result = r.(*workflows.RunResult)
	}
	return result, args.Error(1)
}

// fakeSource hands its jobs to the handler once, then blocks until ctx is
// done. Handler errors are collected.
type fakeSource struct {
	jobs []*messaging.WorkflowExecutionJob

	mu       sync.Mutex
	handled  int
	failures []error
	closed   atomic.Bool
}

func (s *fakeSource) ConsumeWorkflowJobs(ctx context.Context, handler func(context.Context, *messaging.WorkflowExecutionJob) error) error {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()

	for _, job := range jobs {
		err := handler(ctx, job)
		s.mu.Lock()
		s.handled++
		if err != nil {
			s.failures = append(s.failures, err)
		}
		s.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled, len(s.failures)
}

// flakySource fails its first read, then behaves like fakeSource.
type flakySource struct {
	fakeSource
	calls atomic.Int32
}

func (s *flakySource) ConsumeWorkflowJobs(ctx context.Context, handler func(context.Context, *messaging.WorkflowExecutionJob) error) error {
	if s.calls.Add(1) == 1 {
		return stderrors.New("broker unreachable")
	}
	return s.fakeSource.ConsumeWorkflowJobs(ctx, handler)
}

func TestNew(t *testing.T) {
	_, err := New(nil, &MockRunner{}, nil, 0)
	assert.Error(t, err)

	_, err = New([]JobSource{&fakeSource{}}, nil, nil, 0)
	assert.Error(t, err)

	w, err := New([]JobSource{&fakeSource{}}, &MockRunner{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Second, w.retryDelay)
}

func TestWorker_Process(t *testing.T) {
	job := messaging.NewWorkflowExecutionJob("wf-1", workflows.TriggerQueue)

	t.Run("successful run", func(t *testing.T) {
		runner := &MockRunner{}
		runner.On("Execute", mock.Anything, "wf-1", workflows.TriggerQueue).
			Return(&workflows.RunResult{ExecutionID: "exec-1", Status: workflows.ExecutionStatusSuccess, StepCount: 2}, nil)

		w, err := New([]JobSource{&fakeSource{}}, runner, logger.NewNop(), 0)
		require.NoError(t, err)
		assert.NoError(t, w.Process(testContext(t), job))
		runner.AssertExpectations(t)
	})

	t.Run("failed run is not a job failure", func(t *testing.T) {
		runner := &MockRunner{}
		runner.On("Execute", mock.Anything, "wf-1", workflows.TriggerQueue).
			Return(&workflows.RunResult{ExecutionID: "exec-2", Status: workflows.ExecutionStatusFailed},
				errors.New(errors.ErrorTypeExternal, "external_call_failure", "HTTP request failed"))

		w, err := New([]JobSource{&fakeSource{}}, runner, logger.NewNop(), 0)
		require.NoError(t, err)
		assert.NoError(t, w.Process(testContext(t), job))
	})

	t.Run("run that never started is returned", func(t *testing.T) {
		runner := &MockRunner{}
		runner.On("Execute", mock.Anything, "wf-1", workflows.TriggerQueue).
			Return(nil, errors.NotFoundError("workflow"))

		w, err := New([]JobSource{&fakeSource{}}, runner, logger.NewNop(), 0)
		require.NoError(t, err)
		err = w.Process(testContext(t), job)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeResourceNotFound))
	})
}

func TestWorker_StartStop(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Execute", mock.Anything, "wf-ok", workflows.TriggerQueue).
		Return(&workflows.RunResult{ExecutionID: "e1", Status: workflows.ExecutionStatusSuccess}, nil)
	runner.On("Execute", mock.Anything, "wf-missing", workflows.TriggerQueue).
		Return(nil, errors.NotFoundError("workflow"))

	first := &fakeSource{jobs: []*messaging.WorkflowExecutionJob{
		messaging.NewWorkflowExecutionJob("wf-ok", workflows.TriggerQueue),
		messaging.NewWorkflowExecutionJob("wf-missing", workflows.TriggerQueue),
	}}
	second := &flakySource{fakeSource: fakeSource{jobs: []*messaging.WorkflowExecutionJob{
		messaging.NewWorkflowExecutionJob("wf-ok", workflows.TriggerQueue),
	}}}

	w, err := New([]JobSource{first, second}, runner, logger.NewNop(), 10*time.Millisecond)
	require.NoError(t, err)
	w.Start(testContext(t))

	assert.Eventually(t, func() bool {
		h1, _ := first.counts()
		h2, _ := second.counts()
		return h1 == 2 && h2 == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, failures := first.counts()
	assert.Equal(t, 1, failures)
	assert.GreaterOrEqual(t, second.calls.Load(), int32(2))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.True(t, first.closed.Load())
	assert.True(t, second.closed.Load())
}
