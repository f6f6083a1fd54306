package nodes

import (
	"context"

	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

const (
	StartNodeType = engine.StartNodeType
	EndNodeType   = "end"
)

// StartExecutor marks the beginning of a run. It returns its input.
type StartExecutor struct {
	logger logger.Logger
}

func NewStartExecutor(log logger.Logger) *StartExecutor {
	return &StartExecutor{logger: log}
}

func (e *StartExecutor) Execute(ctx context.Context, node *workflows.Node, input interface{}) (interface{}, error) {
	e.logger.InfoContext(ctx, "Starting workflow execution", "node_id", node.ID)
	return input, nil
}

// EndExecutor closes a run. It returns its input, which becomes the result.
type EndExecutor struct {
	logger logger.Logger
}

func NewEndExecutor(log logger.Logger) *EndExecutor {
	return &EndExecutor{logger: log}
}

func (e *EndExecutor) Execute(ctx context.Context, node *workflows.Node, input interface{}) (interface{}, error) {
	e.logger.InfoContext(ctx, "Workflow reached end node", "node_id", node.ID, "result", input)
	return input, nil
}
