package workflows

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
)

// ExecutionStatus is the lifecycle state of an Execution
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// Trigger identifies what started an execution
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
	TriggerQueue    Trigger = "queue"
	TriggerSchedule Trigger = "schedule"
)

// Position is the editor canvas position of a node. Stored, never interpreted.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a typed unit of work in a workflow graph
type Node struct {
	ID       string                 `json:"id" yaml:"id" validate:"required"`
	Type     string                 `json:"type" yaml:"type" validate:"required,node_type"`
	Data     map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Position *Position              `json:"position,omitempty" yaml:"position,omitempty"`
}

// StringParam returns Data[key] as a string, or def when absent or not a string
func (n *Node) StringParam(key, def string) string {
	if v, ok := n.Data[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Edge is a directed link between two nodes. SourceHandle is kept for
// editor round-trips and plays no part in traversal.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source" validate:"required"`
	Target       string `json:"target" yaml:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
}

// Workflow is a persisted workflow definition
type Workflow struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id" yaml:"id" db:"id"`
	Name        string    `gorm:"size:255;not null" json:"name" yaml:"name" db:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	Nodes       []Node    `gorm:"serializer:json;type:text" json:"nodes" yaml:"nodes" db:"-"`
	Edges       []Edge    `gorm:"serializer:json;type:text" json:"edges" yaml:"edges" db:"-"`
	Schedule    string    `gorm:"size:128" json:"schedule,omitempty" yaml:"schedule,omitempty" db:"schedule"`
	Active      bool      `gorm:"not null" json:"active" yaml:"active" db:"active"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-" db:"updated_at"`
}

// TableName pins the table name
func (Workflow) TableName() string { return "workflows" }

// NewWorkflow creates a workflow with a fresh identifier
func NewWorkflow(name string, nodes []Node, edges []Edge) *Workflow {
	now := time.Now().UTC()
	wf := &Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		Nodes:     nodes,
		Edges:     edges,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	wf.EnsureEdgeIDs()
	return wf
}

// EnsureEdgeIDs assigns an identifier to every edge that lacks one
func (w *Workflow) EnsureEdgeIDs() {
	for i := range w.Edges {
		if w.Edges[i].ID == "" {
			w.Edges[i].ID = fmt.Sprintf("e-%s-%s", w.Edges[i].Source, w.Edges[i].Target)
		}
	}
}

// Execution is the persisted record of one run of a workflow
type Execution struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id" db:"id"`
	WorkflowID string          `gorm:"size:64;not null;index" json:"workflowId" db:"workflow_id"`
	Status     ExecutionStatus `gorm:"size:16;not null;default:pending;index" json:"status" db:"status"`
	Trigger    Trigger         `gorm:"column:trigger_type;size:16;not null" json:"trigger" db:"trigger_type"`
	Result     interface{}     `gorm:"serializer:json;type:text" json:"result,omitempty" db:"-"`
	Error      string          `gorm:"type:text" json:"error,omitempty" db:"error"`
	StepCount  int             `gorm:"not null;default:0" json:"stepCount" db:"step_count"`
	StartedAt  time.Time       `gorm:"not null" json:"startedAt" db:"started_at"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty" db:"finished_at"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// TableName pins the table name
func (Execution) TableName() string { return "executions" }

// NewExecution creates a pending execution for workflowID
func NewExecution(workflowID string, trigger Trigger) *Execution {
	now := time.Now().UTC()
	if trigger == "" {
		trigger = TriggerManual
	}
	return &Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     ExecutionStatusPending,
		Trigger:    trigger,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Duration returns the wall time of a finished execution
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// RunResult is what a finished run hands back. On failure it still carries
// the execution ID so callers can look the record up.
type RunResult struct {
	ExecutionID string          `json:"executionId"`
	Status      ExecutionStatus `json:"status"`
	FinalResult interface{}     `json:"finalResult,omitempty"`
	StepCount   int             `json:"stepCount"`
}

// ListOptions pages a listing
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 || o.Limit > 100 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ExecutionFilter narrows an execution listing
type ExecutionFilter struct {
	ListOptions
	WorkflowID string
	Status     ExecutionStatus
}

// DecodeGraphField accepts either a JSON array or a JSON string holding an
// encoded array, which is how the editor submits nodes and edges.
func DecodeGraphField[T any](raw jsonx.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := jsonx.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		raw = []byte(encoded)
	}
	var out []T
	if err := jsonx.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDefinitionFile reads a workflow definition from a .json, .yaml or .yml file
func LoadDefinitionFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "cannot read workflow file")
	}

	wf := &Workflow{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, wf)
	default:
		err = jsonx.Unmarshal(data, wf)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "cannot parse workflow file")
	}

	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	wf.EnsureEdgeIDs()
	return wf, nil
}
