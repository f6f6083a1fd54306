package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"dario.cat/mergo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
	"github.com/PratikKhaire/100x-n8n/pkg/tracing"
)

// finalizeTimeout bounds the terminal record update, which runs detached from
// the caller's context so a cancelled run still gets recorded.
const finalizeTimeout = 10 * time.Second

// Options tunes traversal. Zero fields take the values of DefaultOptions.
type Options struct {
	UnknownNodePolicy UnknownNodePolicy
	MaxSteps          int
	RunTimeout        time.Duration
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		UnknownNodePolicy: PolicyPassthrough,
		MaxSteps:          1000,
		RunTimeout:        5 * time.Minute,
	}
}

// Result is what a finished run hands back.
type Result = workflows.RunResult

// RunOption customises a single Execute call.
type RunOption func(*runConfig)

type runConfig struct {
	trigger workflows.Trigger
}

// WithTrigger records how the run was started.
func WithTrigger(trigger workflows.Trigger) RunOption {
	return func(c *runConfig) {
		c.trigger = trigger
	}
}

// Engine walks workflow graphs and records each run.
type Engine struct {
	registry *Registry
	recorder *Recorder
	logger   logger.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// New creates an engine. The registry is copied, so later registrations on
// it do not affect the engine. m may be nil.
func New(registry *Registry, store ExecutionStore, log logger.Logger, m *metrics.Metrics, opts Options, observers ...Observer) (*Engine, error) {
	if store == nil {
		return nil, errors.ConfigurationError("execution store is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := mergo.Merge(&opts, DefaultOptions()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, errors.CodeConfiguration, "failed to apply engine defaults")
	}
	if _, err := ParseUnknownNodePolicy(string(opts.UnknownNodePolicy)); err != nil {
		return nil, err
	}
	if opts.MaxSteps < 0 || opts.RunTimeout < 0 {
		return nil, errors.ConfigurationError("engine limits must not be negative")
	}

	return &Engine{
		registry: registry.snapshot(),
		recorder: NewRecorder(store, log, observers...),
		logger:   log,
		metrics:  m,
		opts:     opts,
	}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Registry returns the engine's executor registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Execute runs wf from its start node and records the outcome. Exactly one
// execution record is created per call and it is finalized exactly once,
// even when ctx is cancelled mid-run. On failure the returned Result still
// carries the execution ID, unless the record could not be created.
func (e *Engine) Execute(ctx context.Context, wf *workflows.Workflow, opts ...RunOption) (*Result, error) {
	cfg := runConfig{trigger: workflows.TriggerManual}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := tracing.StartSpan(ctx, "workflow.execute",
		attribute.String("workflow.id", wf.ID),
		attribute.String("workflow.trigger", string(cfg.trigger)),
	)

	run, err := e.recorder.Begin(ctx, wf.ID, cfg.trigger)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("execution.id", run.ID()))

	log := e.logger.WithContext(ctx).With("workflow_id", wf.ID, "execution_id", run.ID())
	log.Info("Workflow execution started", "trigger", cfg.trigger, "nodes", len(wf.Nodes))

	done := e.metrics.TrackRunning()
	defer done()
	started := time.Now()

	value, steps, runErr := e.traverse(ctx, wf, log)

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	result := &Result{ExecutionID: run.ID(), StepCount: steps}
	if runErr != nil {
		result.Status = workflows.ExecutionStatusFailed
		e.metrics.RecordWorkflowExecution(wf.ID, string(result.Status), time.Since(started))
		log.Error("Workflow execution failed", "steps", steps, "error", runErr, "code", KindOf(runErr))

		if err := run.Fail(finalCtx, runErr, steps); err != nil {
			log.Error("Failed to record execution failure", "error", err)
			err = fmt.Errorf("%w (while recording: %w)", err, runErr)
			tracing.EndSpan(span, err)
			return result, err
		}
		tracing.EndSpan(span, runErr)
		return result, runErr
	}

	if err := run.Succeed(finalCtx, value, steps); err != nil {
		log.Error("Failed to record execution result", "error", err)
		result.Status = workflows.ExecutionStatusFailed
		e.metrics.RecordWorkflowExecution(wf.ID, string(result.Status), time.Since(started))
		tracing.EndSpan(span, err)
		return result, err
	}

	result.Status = workflows.ExecutionStatusSuccess
	result.FinalResult = value
	e.metrics.RecordWorkflowExecution(wf.ID, string(result.Status), time.Since(started))
	log.Info("Workflow execution completed", "steps", steps, "duration", time.Since(started))
	tracing.EndSpan(span, nil)
	return result, nil
}

// Run executes wf under trigger. It lets the engine serve as the executor
// of the workflow service.
func (e *Engine) Run(ctx context.Context, wf *workflows.Workflow, trigger workflows.Trigger) (*Result, error) {
	return e.Execute(ctx, wf, WithTrigger(trigger))
}

// traverse follows the single path from the start node and returns the last
// produced value together with the number of nodes that ran.
func (e *Engine) traverse(ctx context.Context, wf *workflows.Workflow, log logger.Logger) (interface{}, int, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.opts.RunTimeout)
	defer cancel()

	graph, err := BuildGraph(wf)
	if err != nil {
		return nil, 0, err
	}
	current, err := graph.Start()
	if err != nil {
		return nil, 0, err
	}

	var value interface{} = map[string]interface{}{}
	visited := make([]bool, graph.Len())
	steps := 0

	for current != noSuccessor {
		if err := runCtx.Err(); err != nil {
			return value, steps, errDeadline(ctx, err)
		}

		node := graph.Node(current)
		if visited[current] {
			return value, steps, errCycleDetected(node)
		}
		visited[current] = true

		if steps >= e.opts.MaxSteps {
			return value, steps, errStepBudget(e.opts.MaxSteps)
		}
		steps++

		value, err = e.dispatch(runCtx, node, value, log)
		if err != nil {
			if runCtx.Err() != nil && !errors.HasCode(err, errors.CodeExecutionTimeout) {
				return nil, steps, errDeadline(ctx, err)
			}
			return nil, steps, err
		}

		if graph.OutDegree(current) > 1 {
			log.Debug("Node has several outgoing edges, following the first",
				"node_id", node.ID, "edges", graph.OutDegree(current))
		}
		current = graph.Successor(current)
	}

	return value, steps, nil
}

// dispatch runs one node through its executor, or applies the unknown node
// policy when none is registered.
func (e *Engine) dispatch(ctx context.Context, node *workflows.Node, input interface{}, log logger.Logger) (interface{}, error) {
	exec, ok := e.registry.Lookup(node.Type)
	if !ok {
		if e.opts.UnknownNodePolicy == PolicyStrict {
			return nil, errUnregisteredExecutor(node)
		}
		log.Warn("No executor registered for node type, passing input through",
			"node_id", node.ID, "node_type", node.Type)
		e.metrics.RecordNodeExecution(node.Type, "skipped", 0)
		return input, nil
	}

	ctx, span := tracing.StartSpan(ctx, "node.execute",
		attribute.String("node.id", node.ID),
		attribute.String("node.type", node.Type),
	)
	started := time.Now()
	out, err := exec.Execute(ctx, node, input)
	tracing.EndSpan(span, err)

	if err != nil {
		e.metrics.RecordNodeExecution(node.Type, "failed", time.Since(started))
		if appErr := errors.GetAppError(err); appErr != nil {
			// Executors may return shared error values; annotate a copy.
			tagged := *appErr
			tagged.Context = maps.Clone(appErr.Context)
			return nil, tagged.WithContext("node_id", node.ID)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeNode, errors.CodeNodeExecution, "node execution failed").
			WithContext("node_id", node.ID).
			WithContext("node_type", node.Type)
	}

	e.metrics.RecordNodeExecution(node.Type, "success", time.Since(started))
	log.Debug("Node executed", "node_id", node.ID, "node_type", node.Type, "duration", time.Since(started))
	return out, nil
}
