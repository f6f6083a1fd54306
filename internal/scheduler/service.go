package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/validator"
)

// WorkflowSource lists the workflows that carry a schedule
type WorkflowSource interface {
	ListScheduled(ctx context.Context) ([]*workflows.Workflow, error)
}

// Dispatcher starts a run of the workflow with the given id
type Dispatcher func(ctx context.Context, workflowID string) error

// ScheduledWorkflow describes one active cron entry
type ScheduledWorkflow struct {
	WorkflowID string    `json:"workflowId"`
	Schedule   string    `json:"schedule"`
	NextRun    time.Time `json:"nextRun"`
}

type entry struct {
	schedule string
	id       cron.EntryID
}

// Service keeps one cron entry per scheduled workflow and refreshes the set
// from the source periodically.
type Service struct {
	config   *config.SchedulerConfig
	source   WorkflowSource
	dispatch Dispatcher
	logger   logger.Logger
	cron     *cron.Cron

	mutex   sync.Mutex
	entries map[string]entry
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// NewService creates a new scheduler service
func NewService(cfg *config.SchedulerConfig, source WorkflowSource, dispatch Dispatcher, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.ConfigurationError("scheduler config is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	location := time.UTC
	if cfg.Location != "" {
		loc, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, errors.CodeConfiguration,
				"invalid scheduler location")
		}
		location = loc
	}

	cronLog := &cronLogger{logger: log}
	c := cron.New(
		cron.WithParser(validator.CronParser),
		cron.WithLocation(location),
		cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   cfg,
		source:   source,
		dispatch: dispatch,
		logger:   log,
		cron:     c,
		entries:  make(map[string]entry),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start loads the schedules, starts the cron loop and the refresher
func (s *Service) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return errors.New(errors.ErrorTypeValidation, errors.CodeInvalidInput, "scheduler is already running")
	}
	s.running = true
	done := make(chan struct{})
	s.done = done
	s.mutex.Unlock()

	if err := s.Sync(ctx); err != nil {
		s.mutex.Lock()
		s.running = false
		s.done = nil
		s.mutex.Unlock()
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal,
			"failed to load scheduled workflows")
	}

	s.cron.Start()
	go s.refreshLoop(done)

	s.logger.Info("Scheduler service started",
		"workflows", len(s.Scheduled()),
		"refresh_interval", s.config.RefreshInterval,
	)
	return nil
}

// Stop stops scheduling and waits for in-flight dispatches or ctx
func (s *Service) Stop(ctx context.Context) error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	s.running = false
	done := s.done
	s.mutex.Unlock()

	s.logger.Info("Stopping scheduler service")
	s.cancel()
	<-done

	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		s.logger.Info("All scheduled runs completed")
	case <-ctx.Done():
		s.logger.Warn("Timeout waiting for scheduled runs to complete")
		return ctx.Err()
	}
	return nil
}

// Sync reconciles cron entries with the source: new schedules are added,
// changed ones replaced and vanished ones removed.
func (s *Service) Sync(ctx context.Context) error {
	scheduled, err := s.source.ListScheduled(ctx)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	seen := make(map[string]struct{}, len(scheduled))
	for _, wf := range scheduled {
		seen[wf.ID] = struct{}{}

		current, exists := s.entries[wf.ID]
		if exists && current.schedule == wf.Schedule {
			continue
		}
		if exists {
			s.cron.Remove(current.id)
			delete(s.entries, wf.ID)
		}

		workflowID := wf.ID
		id, err := s.cron.AddFunc(wf.Schedule, func() { s.fire(workflowID) })
		if err != nil {
			s.logger.Warn("Skipping workflow with invalid schedule",
				"workflow_id", wf.ID, "schedule", wf.Schedule, "error", err)
			continue
		}
		s.entries[wf.ID] = entry{schedule: wf.Schedule, id: id}
		s.logger.Info("Workflow scheduled", "workflow_id", wf.ID, "schedule", wf.Schedule)
	}

	for workflowID, current := range s.entries {
		if _, ok := seen[workflowID]; !ok {
			s.cron.Remove(current.id)
			delete(s.entries, workflowID)
			s.logger.Info("Workflow unscheduled", "workflow_id", workflowID)
		}
	}
	return nil
}

// Scheduled lists the active entries ordered by workflow id
func (s *Service) Scheduled() []ScheduledWorkflow {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]ScheduledWorkflow, 0, len(s.entries))
	for workflowID, current := range s.entries {
		out = append(out, ScheduledWorkflow{
			WorkflowID: workflowID,
			Schedule:   current.schedule,
			NextRun:    s.cron.Entry(current.id).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out
}

// Health reports whether the scheduler loop is running
func (s *Service) Health(context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.config.Enabled && !s.running {
		return errors.New(errors.ErrorTypeInternal, errors.CodeResourceUnavailable, "scheduler is not running")
	}
	return nil
}

func (s *Service) fire(workflowID string) {
	started := time.Now()
	if err := s.dispatch(s.ctx, workflowID); err != nil {
		s.logger.Error("Scheduled run failed",
			"workflow_id", workflowID,
			"error", err,
			"duration", time.Since(started),
		)
		return
	}
	s.logger.Info("Scheduled run dispatched", "workflow_id", workflowID, "duration", time.Since(started))
}

func (s *Service) refreshLoop(done chan struct{}) {
	defer close(done)

	interval := s.config.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(s.ctx); err != nil {
				s.logger.Error("Failed to refresh schedules", "error", err)
			}
		}
	}
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	logger logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
