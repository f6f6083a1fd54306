package s3

import (
	"context"
	"path"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// Archiver writes a JSON snapshot of every finished execution to S3, keyed
// by workflow and execution id. It is registered as an execution observer.
type Archiver struct {
	client  *Client
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewArchiver creates an archiver over client
func NewArchiver(client *Client, log logger.Logger, m *metrics.Metrics) *Archiver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Archiver{client: client, logger: log, metrics: m}
}

// ArchiveKey is the object key of an execution snapshot, before the prefix.
func ArchiveKey(workflowID, executionID string) string {
	return path.Join(workflowID, executionID+".json")
}

// ExecutionStarted is a no-op; only terminal records are archived.
func (a *Archiver) ExecutionStarted(context.Context, *workflows.Execution) error {
	return nil
}

// ExecutionFinished uploads the terminal execution record.
func (a *Archiver) ExecutionFinished(ctx context.Context, exec *workflows.Execution) error {
	payload, err := jsonx.Marshal(exec)
	if err != nil {
		a.metrics.RecordArchiveUpload("error")
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeStorage, "failed to encode execution archive")
	}

	key := ArchiveKey(exec.WorkflowID, exec.ID)
	if err := a.client.Upload(ctx, key, payload, "application/json"); err != nil {
		a.metrics.RecordArchiveUpload("error")
		return err
	}

	a.metrics.RecordArchiveUpload("success")
	a.logger.Debug("Execution archived", "execution_id", exec.ID, "key", key)
	return nil
}

// Fetch reads an archived execution back.
func (a *Archiver) Fetch(ctx context.Context, workflowID, executionID string) (*workflows.Execution, error) {
	data, err := a.client.Get(ctx, ArchiveKey(workflowID, executionID))
	if err != nil {
		return nil, err
	}

	var exec workflows.Execution
	if err := jsonx.Unmarshal(data, &exec); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeStorage, "failed to decode execution archive")
	}
	return &exec, nil
}
