// Package errors defines AppError, the typed error carried across package
// boundaries, and the helpers that build and inspect it.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType is the broad category of an error. It decides the HTTP status.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeWorkflow      ErrorType = "workflow"
	ErrorTypeNode          ErrorType = "node"
	ErrorTypeExecution     ErrorType = "execution"
	ErrorTypeDatabase      ErrorType = "database"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ErrorCode is the machine readable reason within a type
type ErrorCode string

// input
const (
	CodeInvalidInput  ErrorCode = "invalid_input"
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidFormat ErrorCode = "invalid_format"
)

// resources
const (
	CodeResourceNotFound    ErrorCode = "resource_not_found"
	CodeResourceExists      ErrorCode = "resource_exists"
	CodeResourceUnavailable ErrorCode = "resource_unavailable"
)

// engine
const (
	CodeInvalidWorkflow      ErrorCode = "invalid_workflow"
	CodeStartNodeNotFound    ErrorCode = "start_node_not_found"
	CodeUnregisteredExecutor ErrorCode = "unregistered_executor"
	CodeCycleDetected        ErrorCode = "cycle_detected"
	CodeExecutionTimeout     ErrorCode = "execution_timeout"
	CodeExternalCallFailure  ErrorCode = "external_call_failure"
	CodeInvalidNodeConfig    ErrorCode = "invalid_node_config"
	CodeAlreadyFinalized     ErrorCode = "already_finalized"
	CodeNodeExecution        ErrorCode = "node_execution"
)

// infrastructure
const (
	CodeDatabaseConnection ErrorCode = "database_connection"
	CodeDatabaseQuery      ErrorCode = "database_query"
	CodeQueue              ErrorCode = "queue"
	CodeStorage            ErrorCode = "storage"
	CodeConfiguration      ErrorCode = "configuration"
	CodeRateLimit          ErrorCode = "rate_limit"
	CodeInternal           ErrorCode = "internal_error"
)

// AppError is a categorised error with an optional cause. Details holds the
// cause's message so it survives JSON encoding.
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Cause      error          `json:"-"`
	Context    map[string]any `json:"context,omitempty"`
	StackTrace string         `json:"-"`
}

func (e *AppError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Details != "" {
		msg += " - " + e.Details
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext records key on the error and returns the same error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

var statusByType = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeWorkflow:   http.StatusBadRequest,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusGatewayTimeout,
	ErrorTypeRateLimit:  http.StatusTooManyRequests,
	ErrorTypeExternal:   http.StatusBadGateway,
	ErrorTypeNode:       http.StatusUnprocessableEntity,
	ErrorTypeExecution:  http.StatusUnprocessableEntity,
}

// HTTPStatus maps the error to a response status. An unavailable resource
// is 503 whatever its type.
func (e *AppError) HTTPStatus() int {
	if e.Code == CodeResourceUnavailable {
		return http.StatusServiceUnavailable
	}
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func build(errorType ErrorType, code ErrorCode, message string, cause error) *AppError {
	e := &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Cause:      cause,
		Context:    map[string]any{},
		StackTrace: stack(4),
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func New(errorType ErrorType, code ErrorCode, message string) *AppError {
	return build(errorType, code, message, nil)
}

func Newf(errorType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	return build(errorType, code, fmt.Sprintf(format, args...), nil)
}

// Wrap returns nil for a nil err
func Wrap(err error, errorType ErrorType, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return build(errorType, code, message, err)
}

func Wrapf(err error, errorType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return build(errorType, code, fmt.Sprintf(format, args...), err)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// GetAppError returns the outermost AppError in err's chain, or nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the code of the outermost AppError, or ""
func CodeOf(err error) ErrorCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}

// HasCode searches the whole error tree, joined errors included, for an
// AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code || HasCode(appErr.Cause, code)
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
		return false
	}
	return HasCode(errors.Unwrap(err), code)
}

func ValidationError(code ErrorCode, message string) *AppError {
	return build(ErrorTypeValidation, code, message, nil)
}

// NewValidationError is ValidationError with CodeInvalidInput
func NewValidationError(message string) *AppError {
	return build(ErrorTypeValidation, CodeInvalidInput, message, nil)
}

func NotFoundError(resource string) *AppError {
	return build(ErrorTypeNotFound, CodeResourceNotFound, resource+" not found", nil)
}

func ConflictError(resource string) *AppError {
	return build(ErrorTypeConflict, CodeResourceExists, resource+" already exists", nil)
}

func InternalError(message string) *AppError {
	return build(ErrorTypeInternal, CodeInternal, message, nil)
}

func TimeoutError(operation string) *AppError {
	return build(ErrorTypeTimeout, CodeExecutionTimeout, "operation "+operation+" timed out", nil)
}

// DatabaseError wraps a failed query. A nil err yields nil.
func DatabaseError(operation string, err error) *AppError {
	if err == nil {
		return nil
	}
	return build(ErrorTypeDatabase, CodeDatabaseQuery, "database operation "+operation+" failed", err)
}

func ConfigurationError(message string) *AppError {
	return build(ErrorTypeConfiguration, CodeConfiguration, message, nil)
}

// NodeError tags an executor failure with the node it came from
func NodeError(nodeID, nodeType string, code ErrorCode, message string) *AppError {
	return build(ErrorTypeNode, code, message, nil).
		WithContext("node_id", nodeID).
		WithContext("node_type", nodeType)
}

var ErrTooManyRequests = New(ErrorTypeRateLimit, CodeRateLimit, "too many requests")

func stack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", f.File, f.Line, f.Function)
		if !more {
			return b.String()
		}
	}
}

// ErrorList collects validation failures so they can be reported together
type ErrorList struct {
	Errors []*AppError `json:"errors"`
}

func NewErrorList() *ErrorList {
	return &ErrorList{Errors: []*AppError{}}
}

func (el *ErrorList) Error() string {
	switch len(el.Errors) {
	case 0:
		return "no errors"
	case 1:
		return el.Errors[0].Error()
	}
	msgs := make([]string, len(el.Errors))
	for i, err := range el.Errors {
		msgs[i] = err.Error()
	}
	return "multiple errors: [" + strings.Join(msgs, "; ") + "]"
}

// Add ignores nil
func (el *ErrorList) Add(err *AppError) {
	if err != nil {
		el.Errors = append(el.Errors, err)
	}
}

func (el *ErrorList) HasErrors() bool { return len(el.Errors) > 0 }

// ErrorOrNil returns nil for an empty list so callers avoid a typed nil
func (el *ErrorList) ErrorOrNil() error {
	if el.HasErrors() {
		return el
	}
	return nil
}
