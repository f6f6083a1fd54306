package workflows

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// Executor runs a workflow definition and records the execution
type Executor interface {
	Run(ctx context.Context, wf *Workflow, trigger Trigger) (*RunResult, error)
}

// JobEnqueuer hands a run off to the worker pool and returns the job id
type JobEnqueuer interface {
	Enqueue(ctx context.Context, workflowID string, trigger Trigger) (string, error)
}

// Service is the workflow application service used by the HTTP API, the
// scheduler and the worker.
type Service struct {
	repo     Repository
	executor Executor
	queue    JobEnqueuer
	logger   logger.Logger
}

// NewService creates a workflow service. queue may be nil, in which case
// asynchronous execution is unavailable and scheduled runs execute inline.
func NewService(repo Repository, executor Executor, queue JobEnqueuer, log logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.ConfigurationError("workflow repository is required")
	}
	if executor == nil {
		return nil, errors.ConfigurationError("workflow executor is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{repo: repo, executor: executor, queue: queue, logger: log}, nil
}

// Create validates and stores a new workflow. The identifier and timestamps
// are always assigned by the service.
func (s *Service) Create(ctx context.Context, wf *Workflow) (*Workflow, error) {
	if wf == nil {
		return nil, errors.NewValidationError("workflow cannot be nil")
	}

	now := time.Now().UTC()
	wf.ID = uuid.NewString()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.EnsureEdgeIDs()
	if wf.Nodes == nil {
		wf.Nodes = []Node{}
	}
	if wf.Edges == nil {
		wf.Edges = []Edge{}
	}

	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	if err := s.repo.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.Info("Workflow created", "workflow_id", wf.ID, "name", wf.Name, "nodes", len(wf.Nodes))
	return wf, nil
}

// Get returns a stored workflow
func (s *Service) Get(ctx context.Context, id string) (*Workflow, error) {
	if id == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "workflow id is required")
	}
	return s.repo.GetWorkflow(ctx, id)
}

// List returns a page of workflows and the total count
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Workflow, int64, error) {
	return s.repo.ListWorkflows(ctx, opts.Normalize())
}

// Delete removes a workflow. Its execution records are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.ValidationError(errors.CodeMissingField, "workflow id is required")
	}
	if err := s.repo.DeleteWorkflow(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Workflow deleted", "workflow_id", id)
	return nil
}

// Execute runs a stored workflow synchronously
func (s *Service) Execute(ctx context.Context, id string, trigger Trigger) (*RunResult, error) {
	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.executor.Run(ctx, wf, trigger)
}

// ExecuteAsync enqueues a run of a stored workflow and returns the job id
func (s *Service) ExecuteAsync(ctx context.Context, id string, trigger Trigger) (string, error) {
	if s.queue == nil {
		return "", errors.New(errors.ErrorTypeConfiguration, errors.CodeResourceUnavailable,
			"asynchronous execution is not configured")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}

	jobID, err := s.queue.Enqueue(ctx, id, trigger)
	if err != nil {
		return "", err
	}
	s.logger.Info("Workflow execution enqueued", "workflow_id", id, "job_id", jobID, "trigger", trigger)
	return jobID, nil
}

// ExecuteDefinition runs a definition that was submitted inline and never
// stored. A definition without an id gets a fresh one so the execution
// record can reference it.
func (s *Service) ExecuteDefinition(ctx context.Context, wf *Workflow, trigger Trigger) (*RunResult, error) {
	if wf == nil {
		return nil, errors.NewValidationError("workflow cannot be nil")
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	wf.EnsureEdgeIDs()
	return s.executor.Run(ctx, wf, trigger)
}

// GetExecution returns an execution record
func (s *Service) GetExecution(ctx context.Context, id string) (*Execution, error) {
	if id == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "execution id is required")
	}
	return s.repo.GetExecution(ctx, id)
}

// ListExecutions returns a filtered page of execution records
func (s *Service) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, int64, error) {
	if filter.Status != "" && filter.Status != ExecutionStatusPending && !filter.Status.IsTerminal() {
		return nil, 0, errors.ValidationError(errors.CodeInvalidInput, "unknown execution status").
			WithContext("status", filter.Status)
	}
	filter.ListOptions = filter.ListOptions.Normalize()
	return s.repo.ListExecutions(ctx, filter)
}

// Dispatch starts a scheduled run: through the queue when one is configured,
// otherwise inline.
func (s *Service) Dispatch(ctx context.Context, workflowID string) error {
	if s.queue != nil {
		_, err := s.ExecuteAsync(ctx, workflowID, TriggerSchedule)
		return err
	}
	_, err := s.Execute(ctx, workflowID, TriggerSchedule)
	return err
}

// Health checks the backing store
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}
