package engine

import (
	"context"
	"fmt"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
)

// StartNodeMessage is the message recorded when a workflow has no start node.
const StartNodeMessage = "Start node not found"

// ExternalCallMessage is the message carried by every outbound call failure.
const ExternalCallMessage = "HTTP request failed"

func errStartNodeNotFound(workflowID string) *errors.AppError {
	return errors.New(errors.ErrorTypeWorkflow, errors.CodeStartNodeNotFound, StartNodeMessage).
		WithContext("workflow_id", workflowID)
}

func errInvalidWorkflow(format string, args ...interface{}) *errors.AppError {
	return errors.Newf(errors.ErrorTypeWorkflow, errors.CodeInvalidWorkflow, format, args...)
}

func errUnregisteredExecutor(node *workflows.Node) *errors.AppError {
	return errors.NodeError(node.ID, node.Type, errors.CodeUnregisteredExecutor,
		fmt.Sprintf("no executor registered for node type %q", node.Type))
}

func errCycleDetected(node *workflows.Node) *errors.AppError {
	return errors.NodeError(node.ID, node.Type, errors.CodeCycleDetected,
		fmt.Sprintf("cycle detected at node %q", node.ID))
}

func errStepBudget(limit int) *errors.AppError {
	return errors.New(errors.ErrorTypeTimeout, errors.CodeExecutionTimeout, "workflow execution timed out").
		WithDetails(fmt.Sprintf("step budget of %d exhausted", limit))
}

// errDeadline classifies a context failure seen during traversal. parent is
// the caller's context, so a cancelled parent is reported as a cancellation
// rather than as the run deadline firing.
func errDeadline(parent context.Context, cause error) *errors.AppError {
	detail := "run deadline exceeded"
	if parent.Err() != nil {
		detail = "execution cancelled"
	}
	return errors.New(errors.ErrorTypeTimeout, errors.CodeExecutionTimeout, "workflow execution timed out").
		WithDetails(detail).
		WithCause(cause)
}

// ExternalCallFailure wraps the cause of a failed outbound call. Executors
// use it so callers see one uniform failure kind.
func ExternalCallFailure(cause error) *errors.AppError {
	return errors.Wrap(cause, errors.ErrorTypeExternal, errors.CodeExternalCallFailure, ExternalCallMessage)
}

// InvalidNodeConfig reports a node whose data cannot drive its executor.
func InvalidNodeConfig(node *workflows.Node, message string) *errors.AppError {
	return errors.NodeError(node.ID, node.Type, errors.CodeInvalidNodeConfig, message)
}

// KindOf returns the error code that classifies err, or an empty code for
// errors that did not originate in this module.
func KindOf(err error) errors.ErrorCode {
	return errors.CodeOf(err)
}

// failureMessage is the text stored on a failed execution record.
func failureMessage(err error) string {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Message + ": " + appErr.Details
	}
	return appErr.Message
}
