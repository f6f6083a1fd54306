package workflows

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// SQLRepository implements Repository with hand-written SQL over sqlx. Queries
// are written with ? placeholders and rebound for the connected driver.
type SQLRepository struct {
	db      *sqlx.DB
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewSQLRepository creates a sqlx-backed repository
func NewSQLRepository(db *sqlx.DB, log logger.Logger, m *metrics.Metrics) *SQLRepository {
	return &SQLRepository{db: db, logger: log, metrics: m}
}

type workflowRow struct {
	Workflow
	NodesJSON string `db:"nodes"`
	EdgesJSON string `db:"edges"`
}

func (row *workflowRow) decode() (*Workflow, error) {
	wf := row.Workflow
	if err := jsonx.Unmarshal([]byte(row.NodesJSON), &wf.Nodes); err != nil {
		return nil, err
	}
	if err := jsonx.Unmarshal([]byte(row.EdgesJSON), &wf.Edges); err != nil {
		return nil, err
	}
	return &wf, nil
}

type executionRow struct {
	Execution
	ResultJSON sql.NullString `db:"result"`
}

func (row *executionRow) decode() (*Execution, error) {
	exec := row.Execution
	if row.ResultJSON.Valid && row.ResultJSON.String != "" {
		if err := jsonx.Unmarshal([]byte(row.ResultJSON.String), &exec.Result); err != nil {
			return nil, err
		}
	}
	return &exec, nil
}

const (
	workflowColumns  = "id, name, description, nodes, edges, schedule, active, created_at, updated_at"
	executionColumns = "id, workflow_id, status, trigger_type, result, error, step_count, started_at, finished_at, created_at, updated_at"
)

func (r *SQLRepository) observe(op, table string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	r.metrics.RecordDBQuery(op, table, status, time.Since(start))
}

// CreateWorkflow inserts a workflow
func (r *SQLRepository) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	nodes, err := jsonx.Marshal(wf.Nodes)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal, "failed to serialize nodes")
	}
	edges, err := jsonx.Marshal(wf.Edges)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal, "failed to serialize edges")
	}

	start := time.Now()
	query := r.db.Rebind(`INSERT INTO workflows (` + workflowColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		wf.ID, wf.Name, wf.Description, string(nodes), string(edges),
		wf.Schedule, wf.Active, wf.CreatedAt, wf.UpdatedAt,
	)
	r.observe("create", "workflows", start, err)
	if err != nil {
		return errors.DatabaseError("create workflow", err)
	}
	return nil
}

// GetWorkflow loads a workflow by ID
func (r *SQLRepository) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	start := time.Now()
	var row workflowRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`), id)
	r.observe("get", "workflows", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError("get workflow", err)
	}
	wf, err := row.decode()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseQuery, "stored workflow is corrupt")
	}
	return wf, nil
}

func (r *SQLRepository) selectWorkflows(ctx context.Context, op, query string, args ...interface{}) ([]*Workflow, error) {
	start := time.Now()
	var rows []workflowRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	r.observe(op, "workflows", start, err)
	if err != nil {
		return nil, errors.DatabaseError(op+" workflows", err)
	}

	out := make([]*Workflow, 0, len(rows))
	for i := range rows {
		wf, err := rows[i].decode()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseQuery, "stored workflow is corrupt")
		}
		out = append(out, wf)
	}
	return out, nil
}

// ListWorkflows returns a page of workflows, newest first, and the total count
func (r *SQLRepository) ListWorkflows(ctx context.Context, opts ListOptions) ([]*Workflow, int64, error) {
	opts = opts.Normalize()

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM workflows`); err != nil {
		return nil, 0, errors.DatabaseError("count workflows", err)
	}

	out, err := r.selectWorkflows(ctx, "list",
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DeleteWorkflow removes a workflow
func (r *SQLRepository) DeleteWorkflow(ctx context.Context, id string) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM workflows WHERE id = ?`), id)
	r.observe("delete", "workflows", start, err)
	if err != nil {
		return errors.DatabaseError("delete workflow", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError("workflow").WithContext("workflow_id", id)
	}
	return nil
}

// ListScheduled returns active workflows that carry a schedule
func (r *SQLRepository) ListScheduled(ctx context.Context) ([]*Workflow, error) {
	return r.selectWorkflows(ctx, "list_scheduled",
		`SELECT `+workflowColumns+` FROM workflows WHERE schedule <> '' AND active = ?`, true)
}

// CreateExecution inserts a pending execution record
func (r *SQLRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	result, err := encodeResult(exec.Result)
	if err != nil {
		return err
	}

	start := time.Now()
	query := r.db.Rebind(`INSERT INTO executions (` + executionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		exec.ID, exec.WorkflowID, string(exec.Status), string(exec.Trigger), result, exec.Error,
		exec.StepCount, exec.StartedAt, exec.FinishedAt, exec.CreatedAt, exec.UpdatedAt,
	)
	r.observe("create", "executions", start, err)
	if err != nil {
		return errors.DatabaseError("create execution", err)
	}
	return nil
}

// UpdateExecution writes the terminal columns of an execution
func (r *SQLRepository) UpdateExecution(ctx context.Context, exec *Execution) error {
	result, err := encodeResult(exec.Result)
	if err != nil {
		return err
	}

	start := time.Now()
	query := r.db.Rebind(`UPDATE executions SET status = ?, result = ?, error = ?, step_count = ?, finished_at = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		string(exec.Status), result, exec.Error, exec.StepCount, exec.FinishedAt, exec.UpdatedAt, exec.ID,
	)
	r.observe("update", "executions", start, err)
	if err != nil {
		return errors.DatabaseError("update execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError("execution").WithContext("execution_id", exec.ID)
	}
	return nil
}

func encodeResult(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := jsonx.Marshal(v)
	if err != nil {
		return sql.NullString{}, errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal, "failed to serialize execution result")
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// GetExecution loads an execution by ID
func (r *SQLRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	start := time.Now()
	var row executionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+executionColumns+` FROM executions WHERE id = ?`), id)
	r.observe("get", "executions", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("execution").WithContext("execution_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError("get execution", err)
	}
	exec, err := row.decode()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseQuery, "stored execution is corrupt")
	}
	return exec, nil
}

// ListExecutions returns a filtered page of executions, newest first
func (r *SQLRepository) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, int64, error) {
	opts := filter.ListOptions.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	start := time.Now()
	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM executions`+clause), args...); err != nil {
		r.observe("count", "executions", start, err)
		return nil, 0, errors.DatabaseError("count executions", err)
	}

	var rows []executionRow
	query := r.db.Rebind(`SELECT ` + executionColumns + ` FROM executions` + clause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	err := r.db.SelectContext(ctx, &rows, query, append(args, opts.Limit, opts.Offset)...)
	r.observe("list", "executions", start, err)
	if err != nil {
		return nil, 0, errors.DatabaseError("list executions", err)
	}

	out := make([]*Execution, 0, len(rows))
	for i := range rows {
		exec, err := rows[i].decode()
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrorTypeDatabase, errors.CodeDatabaseQuery, "stored execution is corrupt")
		}
		out = append(out, exec)
	}
	return out, total, nil
}

// Health pings the database
func (r *SQLRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
