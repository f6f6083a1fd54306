package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
)

// WorkflowExecutionJob asks a worker to run a stored workflow
type WorkflowExecutionJob struct {
	ID          string            `json:"id"`
	WorkflowID  string            `json:"workflowId"`
	Trigger     workflows.Trigger `json:"trigger"`
	RequestedAt time.Time         `json:"requestedAt"`
}

// NewWorkflowExecutionJob creates a job for workflowID
func NewWorkflowExecutionJob(workflowID string, trigger workflows.Trigger) *WorkflowExecutionJob {
	return &WorkflowExecutionJob{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		Trigger:     trigger,
		RequestedAt: time.Now().UTC(),
	}
}

// JobQueue publishes execution jobs to the jobs topic
type JobQueue struct {
	producer *Producer
}

// NewJobQueue wraps producer
func NewJobQueue(producer *Producer) *JobQueue {
	return &JobQueue{producer: producer}
}

// Enqueue publishes a job for workflowID and returns its identifier. Jobs are
// keyed by workflow so runs of one workflow stay on one partition.
func (q *JobQueue) Enqueue(ctx context.Context, workflowID string, trigger workflows.Trigger) (string, error) {
	job := NewWorkflowExecutionJob(workflowID, trigger)
	if err := q.producer.Publish(ctx, job.WorkflowID, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// ConsumeWorkflowJobs decodes jobs from the consumer and hands them to
// handler. Undecodable messages are logged and skipped.
func (c *Consumer) ConsumeWorkflowJobs(ctx context.Context, handler func(context.Context, *WorkflowExecutionJob) error) error {
	return c.Consume(ctx, func(ctx context.Context, message *Message) error {
		var job WorkflowExecutionJob
		if err := jsonx.Unmarshal(message.Value, &job); err != nil {
			c.logger.Error("Failed to unmarshal workflow job",
				"error", err,
				"offset", message.Offset,
			)
			return nil
		}
		if job.WorkflowID == "" {
			c.logger.Warn("Dropping workflow job without workflow id", "job_id", job.ID)
			return nil
		}
		if job.Trigger == "" {
			job.Trigger = workflows.TriggerQueue
		}
		if err := handler(ctx, &job); err != nil {
			return errors.Wrap(err, errors.ErrorTypeExecution, errors.CodeQueue, "workflow job failed").
				WithContext("job_id", job.ID).
				WithContext("workflow_id", job.WorkflowID)
		}
		return nil
	})
}
