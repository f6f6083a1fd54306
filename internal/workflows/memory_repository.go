package workflows

import (
	"context"
	"sort"
	"sync"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
)

// MemoryRepository keeps workflows and executions in process memory. It backs
// the local runner and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	workflows  map[string]Workflow
	executions map[string]Execution
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		workflows:  make(map[string]Workflow),
		executions: make(map[string]Execution),
	}
}

func (r *MemoryRepository) CreateWorkflow(_ context.Context, wf *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[wf.ID]; exists {
		return errors.ConflictError("workflow").WithContext("workflow_id", wf.ID)
	}
	r.workflows[wf.ID] = *wf
	return nil
}

func (r *MemoryRepository) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	return &wf, nil
}

func (r *MemoryRepository) ListWorkflows(_ context.Context, opts ListOptions) ([]*Workflow, int64, error) {
	r.mu.RLock()
	all := make([]*Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		wf := wf
		all = append(all, &wf)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, opts), int64(len(all)), nil
}

func (r *MemoryRepository) DeleteWorkflow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[id]; !ok {
		return errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	delete(r.workflows, id)
	return nil
}

func (r *MemoryRepository) ListScheduled(_ context.Context) ([]*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Workflow
	for _, wf := range r.workflows {
		if wf.Schedule != "" && wf.Active {
			wf := wf
			out = append(out, &wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CreateExecution(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executions[exec.ID]; exists {
		return errors.ConflictError("execution").WithContext("execution_id", exec.ID)
	}
	r.executions[exec.ID] = *exec
	return nil
}

func (r *MemoryRepository) UpdateExecution(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.executions[exec.ID]
	if !ok {
		return errors.NotFoundError("execution").WithContext("execution_id", exec.ID)
	}
	stored.Status = exec.Status
	stored.Result = exec.Result
	stored.Error = exec.Error
	stored.StepCount = exec.StepCount
	stored.FinishedAt = exec.FinishedAt
	stored.UpdatedAt = exec.UpdatedAt
	r.executions[exec.ID] = stored
	return nil
}

func (r *MemoryRepository) GetExecution(_ context.Context, id string) (*Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executions[id]
	if !ok {
		return nil, errors.NotFoundError("execution").WithContext("execution_id", id)
	}
	return &exec, nil
}

func (r *MemoryRepository) ListExecutions(_ context.Context, filter ExecutionFilter) ([]*Execution, int64, error) {
	r.mu.RLock()
	var all []*Execution
	for _, exec := range r.executions {
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		exec := exec
		all = append(all, &exec)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, filter.ListOptions), int64(len(all)), nil
}

func (r *MemoryRepository) Health(context.Context) error {
	return nil
}

func page[T any](items []T, opts ListOptions) []T {
	opts = opts.Normalize()
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := min(opts.Offset+opts.Limit, len(items))
	return items[opts.Offset:end]
}
