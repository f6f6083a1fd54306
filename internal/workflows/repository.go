package workflows

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// WorkflowRepository persists workflow definitions
type WorkflowRepository interface {
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, opts ListOptions) ([]*Workflow, int64, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ListScheduled(ctx context.Context) ([]*Workflow, error)
}

// ExecutionRepository persists execution records
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	UpdateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, int64, error)
}

// Repository is the full persistence surface
type Repository interface {
	WorkflowRepository
	ExecutionRepository
	Health(ctx context.Context) error
}

// terminalColumns are the columns written by the single terminal update
var terminalColumns = []string{"status", "result", "error", "step_count", "finished_at", "updated_at"}

// GormRepository implements Repository on GORM (postgres or sqlite)
type GormRepository struct {
	db      *gorm.DB
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewGormRepository creates a GORM-backed repository
func NewGormRepository(db *gorm.DB, log logger.Logger, m *metrics.Metrics) *GormRepository {
	return &GormRepository{db: db, logger: log, metrics: m}
}

func (r *GormRepository) observe(op, table string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		status = "error"
	}
	r.metrics.RecordDBQuery(op, table, status, time.Since(start))
}

// CreateWorkflow inserts a workflow
func (r *GormRepository) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(wf).Error
	r.observe("create", "workflows", start, err)
	if err != nil {
		return errors.DatabaseError("create workflow", err)
	}
	return nil
}

// GetWorkflow loads a workflow by ID
func (r *GormRepository) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	start := time.Now()
	var wf Workflow
	err := r.db.WithContext(ctx).First(&wf, "id = ?", id).Error
	r.observe("get", "workflows", start, err)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError("get workflow", err)
	}
	return &wf, nil
}

// ListWorkflows returns a page of workflows, newest first, and the total count
func (r *GormRepository) ListWorkflows(ctx context.Context, opts ListOptions) ([]*Workflow, int64, error) {
	opts = opts.Normalize()
	start := time.Now()

	var total int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&Workflow{}).Count(&total).Error; err != nil {
		r.observe("count", "workflows", start, err)
		return nil, 0, errors.DatabaseError("count workflows", err)
	}

	var out []*Workflow
	err := db.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&out).Error
	r.observe("list", "workflows", start, err)
	if err != nil {
		return nil, 0, errors.DatabaseError("list workflows", err)
	}
	return out, total, nil
}

// DeleteWorkflow removes a workflow
func (r *GormRepository) DeleteWorkflow(ctx context.Context, id string) error {
	start := time.Now()
	res := r.db.WithContext(ctx).Delete(&Workflow{}, "id = ?", id)
	r.observe("delete", "workflows", start, res.Error)
	if res.Error != nil {
		return errors.DatabaseError("delete workflow", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	return nil
}

// ListScheduled returns active workflows that carry a schedule
func (r *GormRepository) ListScheduled(ctx context.Context) ([]*Workflow, error) {
	start := time.Now()
	var out []*Workflow
	err := r.db.WithContext(ctx).Where("schedule <> ? AND active = ?", "", true).Find(&out).Error
	r.observe("list_scheduled", "workflows", start, err)
	if err != nil {
		return nil, errors.DatabaseError("list scheduled workflows", err)
	}
	return out, nil
}

// CreateExecution inserts a pending execution record
func (r *GormRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(exec).Error
	r.observe("create", "executions", start, err)
	if err != nil {
		return errors.DatabaseError("create execution", err)
	}
	return nil
}

// UpdateExecution writes the terminal columns of an execution
func (r *GormRepository) UpdateExecution(ctx context.Context, exec *Execution) error {
	start := time.Now()
	res := r.db.WithContext(ctx).Model(exec).Select(terminalColumns).Updates(exec)
	r.observe("update", "executions", start, res.Error)
	if res.Error != nil {
		return errors.DatabaseError("update execution", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundError("execution").WithContext("execution_id", exec.ID)
	}
	return nil
}

// GetExecution loads an execution by ID
func (r *GormRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	start := time.Now()
	var exec Execution
	err := r.db.WithContext(ctx).First(&exec, "id = ?", id).Error
	r.observe("get", "executions", start, err)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundError("execution").WithContext("execution_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError("get execution", err)
	}
	return &exec, nil
}

// ListExecutions returns a filtered page of executions, newest first
func (r *GormRepository) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, int64, error) {
	opts := filter.ListOptions.Normalize()
	start := time.Now()

	query := r.db.WithContext(ctx).Model(&Execution{})
	if filter.WorkflowID != "" {
		query = query.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.observe("count", "executions", start, err)
		return nil, 0, errors.DatabaseError("count executions", err)
	}

	var out []*Execution
	err := query.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&out).Error
	r.observe("list", "executions", start, err)
	if err != nil {
		return nil, 0, errors.DatabaseError("list executions", err)
	}
	return out, total, nil
}

// Health pings the database
func (r *GormRepository) Health(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
