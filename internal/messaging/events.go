package messaging

import (
	"context"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
)

// EventType names an execution lifecycle transition
type EventType string

const (
	EventExecutionStarted  EventType = "execution.started"
	EventExecutionFinished EventType = "execution.finished"
)

// ExecutionEvent is published on every execution lifecycle transition
type ExecutionEvent struct {
	Type        EventType                 `json:"type"`
	ExecutionID string                    `json:"executionId"`
	WorkflowID  string                    `json:"workflowId"`
	Status      workflows.ExecutionStatus `json:"status"`
	Trigger     workflows.Trigger         `json:"trigger"`
	Error       string                    `json:"error,omitempty"`
	StepCount   int                       `json:"stepCount"`
	DurationMS  int64                     `json:"durationMs,omitempty"`
	Timestamp   time.Time                 `json:"timestamp"`
}

// EventPublisher forwards execution lifecycle transitions to the events
// topic. It is registered with the engine as an execution observer.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher wraps producer
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) ExecutionStarted(ctx context.Context, exec *workflows.Execution) error {
	return p.publish(ctx, EventExecutionStarted, exec)
}

func (p *EventPublisher) ExecutionFinished(ctx context.Context, exec *workflows.Execution) error {
	return p.publish(ctx, EventExecutionFinished, exec)
}

func (p *EventPublisher) publish(ctx context.Context, eventType EventType, exec *workflows.Execution) error {
	event := ExecutionEvent{
		Type:        eventType,
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Status:      exec.Status,
		Trigger:     exec.Trigger,
		Error:       exec.Error,
		StepCount:   exec.StepCount,
		DurationMS:  exec.Duration().Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
	return p.producer.Publish(ctx, exec.ID, event)
}
