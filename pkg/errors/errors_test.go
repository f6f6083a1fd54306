package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error with correct fields", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message")

		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, CodeInvalidInput, err.Code)
		assert.Equal(t, "test message", err.Message)
		assert.NotEmpty(t, err.StackTrace)
		assert.NotNil(t, err.Context)
	})

	t.Run("Newf creates error with formatted message", func(t *testing.T) {
		err := Newf(ErrorTypeWorkflow, CodeCycleDetected, "cycle detected at node %q", "b")

		assert.Equal(t, `cycle detected at node "b"`, err.Message)
	})

	t.Run("Error method returns formatted string", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message")

		assert.Equal(t, fmt.Sprintf("%s: %s", CodeInvalidInput, "test message"), err.Error())
	})

	t.Run("Error method with details", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message").WithDetails("extra details")

		assert.Equal(t, "invalid_input: test message - extra details", err.Error())
	})

	t.Run("WithContext adds context", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message")
		err.WithContext("node_id", "n1")

		assert.Equal(t, "n1", err.Context["node_id"])
	})

	t.Run("WithCause sets underlying cause", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrorTypeExternal, CodeExternalCallFailure, "HTTP request failed").WithCause(cause)

		assert.Equal(t, cause, err.Cause)
		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})
}

func TestWrapError(t *testing.T) {
	t.Run("Wrap nil error returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeInternal, CodeInternal, "test"))
	})

	t.Run("Wrap keeps cause and copies its message into details", func(t *testing.T) {
		original := errors.New("connection refused")
		wrapped := Wrap(original, ErrorTypeExternal, CodeExternalCallFailure, "HTTP request failed")

		assert.Equal(t, ErrorTypeExternal, wrapped.Type)
		assert.Equal(t, CodeExternalCallFailure, wrapped.Code)
		assert.Equal(t, "HTTP request failed", wrapped.Message)
		assert.Equal(t, "connection refused", wrapped.Details)
		assert.Equal(t, original, wrapped.Cause)
	})

	t.Run("Wrapf with formatted message", func(t *testing.T) {
		original := errors.New("original")
		wrapped := Wrapf(original, ErrorTypeDatabase, CodeDatabaseQuery, "query %s failed", "insert")

		assert.Equal(t, "query insert failed", wrapped.Message)
	})
}

func TestGetAppError(t *testing.T) {
	t.Run("returns nil for nil and plain errors", func(t *testing.T) {
		assert.Nil(t, GetAppError(nil))
		assert.Nil(t, GetAppError(errors.New("plain")))
	})

	t.Run("finds AppError through fmt wrapping", func(t *testing.T) {
		appErr := NotFoundError("workflow")
		wrapped := fmt.Errorf("loading: %w", appErr)

		got := GetAppError(wrapped)
		require.NotNil(t, got)
		assert.Equal(t, CodeResourceNotFound, got.Code)
		assert.Equal(t, CodeResourceNotFound, CodeOf(wrapped))
	})
}

func TestHasCode(t *testing.T) {
	inner := New(ErrorTypeExternal, CodeExternalCallFailure, "HTTP request failed")
	outer := Wrap(inner, ErrorTypeDatabase, CodeDatabaseQuery, "update failed")

	assert.True(t, HasCode(outer, CodeDatabaseQuery))
	assert.True(t, HasCode(outer, CodeExternalCallFailure))
	assert.False(t, HasCode(outer, CodeCycleDetected))
	assert.Equal(t, CodeDatabaseQuery, CodeOf(outer))

	joined := fmt.Errorf("%w (while recording: %w)", outer, New(ErrorTypeWorkflow, CodeCycleDetected, "cycle"))
	assert.True(t, HasCode(joined, CodeCycleDetected))
	assert.True(t, HasCode(joined, CodeExternalCallFailure))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"not found", NotFoundError("execution"), http.StatusNotFound},
		{"conflict", ConflictError("workflow"), http.StatusConflict},
		{"timeout", TimeoutError("run"), http.StatusGatewayTimeout},
		{"rate limit", ErrTooManyRequests, http.StatusTooManyRequests},
		{"external", New(ErrorTypeExternal, CodeExternalCallFailure, "x"), http.StatusBadGateway},
		{"workflow", New(ErrorTypeWorkflow, CodeStartNodeNotFound, "x"), http.StatusBadRequest},
		{"node", NodeError("n", "t", CodeInvalidNodeConfig, "x"), http.StatusUnprocessableEntity},
		{"database", DatabaseError("insert", errors.New("x")), http.StatusInternalServerError},
		{"internal", InternalError("x"), http.StatusInternalServerError},
		{"unavailable", New(ErrorTypeConfiguration, CodeResourceUnavailable, "x"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.HTTPStatus())
		})
	}
}

func TestErrorList(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		list := NewErrorList()

		assert.False(t, list.HasErrors())
		assert.Equal(t, "no errors", list.Error())
		assert.NoError(t, list.ErrorOrNil())
	})

	t.Run("single error", func(t *testing.T) {
		list := NewErrorList()
		list.Add(NewValidationError("name is required"))
		list.Add(nil)

		assert.Len(t, list.Errors, 1)
		assert.Equal(t, "invalid_input: name is required", list.Error())
	})

	t.Run("multiple errors", func(t *testing.T) {
		list := NewErrorList()
		list.Add(NewValidationError("a"))
		list.Add(NewValidationError("b"))

		assert.Error(t, list.ErrorOrNil())
		assert.Equal(t, "multiple errors: [invalid_input: a; invalid_input: b]", list.Error())
	})
}

func TestNodeError(t *testing.T) {
	err := NodeError("fetch", "httpRequest", CodeInvalidNodeConfig, "url is required")

	assert.Equal(t, ErrorTypeNode, err.Type)
	assert.Equal(t, "fetch", err.Context["node_id"])
	assert.Equal(t, "httpRequest", err.Context["node_type"])
}
