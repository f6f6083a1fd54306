package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// ExecutionStore is the persistence the recorder needs.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *workflows.Execution) error
	UpdateExecution(ctx context.Context, exec *workflows.Execution) error
}

// Observer is told about execution lifecycle transitions. Observer errors are
// logged and never change the outcome of a run.
type Observer interface {
	ExecutionStarted(ctx context.Context, exec *workflows.Execution) error
	ExecutionFinished(ctx context.Context, exec *workflows.Execution) error
}

// ErrAlreadyFinalized is returned when a run is finalized a second time.
var ErrAlreadyFinalized = errors.New(errors.ErrorTypeExecution, errors.CodeAlreadyFinalized, "execution already finalized")

// Recorder owns the execution record of each run: it creates the pending
// record and writes the single terminal update.
type Recorder struct {
	store     ExecutionStore
	observers []Observer
	logger    logger.Logger
}

// NewRecorder creates a recorder over store
func NewRecorder(store ExecutionStore, log logger.Logger, observers ...Observer) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Recorder{store: store, observers: observers, logger: log}
}

// Begin persists a pending execution for workflowID and returns its handle.
func (r *Recorder) Begin(ctx context.Context, workflowID string, trigger workflows.Trigger) (*Run, error) {
	exec := workflows.NewExecution(workflowID, trigger)
	if err := r.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	snapshot := *exec
	for _, obs := range r.observers {
		if err := obs.ExecutionStarted(ctx, &snapshot); err != nil {
			r.logger.Warn("Execution observer failed", "execution_id", exec.ID, "event", "started", "error", err)
		}
	}

	return &Run{recorder: r, exec: exec}, nil
}

// Run is the handle of one in-flight execution record.
type Run struct {
	recorder  *Recorder
	exec      *workflows.Execution
	finalized atomic.Bool
}

// ID is the execution identifier.
func (r *Run) ID() string {
	return r.exec.ID
}

// Execution returns a copy of the record as last written.
func (r *Run) Execution() workflows.Execution {
	return *r.exec
}

// Succeed marks the execution successful with result as its payload.
func (r *Run) Succeed(ctx context.Context, result interface{}, steps int) error {
	return r.finalize(ctx, workflows.ExecutionStatusSuccess, result, "", steps)
}

// Fail marks the execution failed. The payload is {"error": message}.
func (r *Run) Fail(ctx context.Context, cause error, steps int) error {
	msg := failureMessage(cause)
	return r.finalize(ctx, workflows.ExecutionStatusFailed, map[string]interface{}{"error": msg}, msg, steps)
}

func (r *Run) finalize(ctx context.Context, status workflows.ExecutionStatus, result interface{}, errMsg string, steps int) error {
	if !r.finalized.CompareAndSwap(false, true) {
		return errors.New(errors.ErrorTypeExecution, errors.CodeAlreadyFinalized, ErrAlreadyFinalized.Message).
			WithContext("execution_id", r.exec.ID).
			WithCause(ErrAlreadyFinalized)
	}

	now := time.Now().UTC()
	r.exec.Status = status
	r.exec.Result = result
	r.exec.Error = errMsg
	r.exec.StepCount = steps
	r.exec.FinishedAt = &now
	r.exec.UpdatedAt = now

	if err := r.recorder.store.UpdateExecution(ctx, r.exec); err != nil {
		return err
	}

	snapshot := *r.exec
	for _, obs := range r.recorder.observers {
		if err := obs.ExecutionFinished(ctx, &snapshot); err != nil {
			r.recorder.logger.Warn("Execution observer failed", "execution_id", r.exec.ID, "event", "finished", "error", err)
		}
	}
	return nil
}
