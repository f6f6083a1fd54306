// Package worker runs queued workflow executions pulled from Kafka.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/messaging"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// JobSource delivers execution jobs to a handler until ctx is done
type JobSource interface {
	ConsumeWorkflowJobs(ctx context.Context, handler func(context.Context, *messaging.WorkflowExecutionJob) error) error
	Close() error
}

// Runner executes a stored workflow
type Runner interface {
	Execute(ctx context.Context, id string, trigger workflows.Trigger) (*workflows.RunResult, error)
}

// Worker runs one consume loop per source. Sources in the same consumer
// group share the partitions of the jobs topic.
type Worker struct {
	sources    []JobSource
	runner     Runner
	logger     logger.Logger
	retryDelay time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a worker. retryDelay is the pause before a loop reconnects
// after a read failure; zero means one second.
func New(sources []JobSource, runner Runner, log logger.Logger, retryDelay time.Duration) (*Worker, error) {
	if len(sources) == 0 {
		return nil, errors.ConfigurationError("worker needs at least one job source")
	}
	if runner == nil {
		return nil, errors.ConfigurationError("worker needs a runner")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Worker{sources: sources, runner: runner, logger: log, retryDelay: retryDelay}, nil
}

// Start launches the consume loops. They run until Stop is called or ctx
// is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i, src := range w.sources {
		w.wg.Add(1)
		go w.loop(ctx, i, src)
	}
	w.logger.Info("Worker started", "concurrency", len(w.sources))
}

// Stop cancels the loops, waits for in-flight jobs within ctx and closes
// the sources.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker")
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var stopErr error
	select {
	case <-done:
	case <-ctx.Done():
		stopErr = errors.TimeoutError("worker shutdown")
	}

	for _, src := range w.sources {
		if err := src.Close(); err != nil {
			w.logger.Error("Error closing job source", "error", err)
		}
	}
	w.logger.Info("Worker stopped")
	return stopErr
}

func (w *Worker) loop(ctx context.Context, id int, src JobSource) {
	defer w.wg.Done()
	log := w.logger.With("worker_id", id)
	log.Info("Starting worker loop")

	for {
		err := src.ConsumeWorkflowJobs(ctx, w.Process)
		if ctx.Err() != nil {
			log.Info("Worker loop stopping")
			return
		}
		log.Error("Job consumption failed", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

// Process runs one job. A run that fails is already recorded as a failed
// execution, so only failures to start a run are returned.
func (w *Worker) Process(ctx context.Context, job *messaging.WorkflowExecutionJob) error {
	start := time.Now()
	log := w.logger.WithContext(ctx).With("job_id", job.ID, "workflow_id", job.WorkflowID)
	log.Info("Processing workflow job", "trigger", job.Trigger)

	result, err := w.runner.Execute(ctx, job.WorkflowID, job.Trigger)
	if err != nil {
		if result == nil {
			return err
		}
		log.Warn("Workflow run failed",
			"execution_id", result.ExecutionID,
			"error", err,
			"duration", time.Since(start),
		)
		return nil
	}

	log.Info("Workflow job completed",
		"execution_id", result.ExecutionID,
		"steps", result.StepCount,
		"duration", time.Since(start),
	)
	return nil
}
