// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
)

// Envelope is the standard API response
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *Error      `json:"error,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Error is the error part of an envelope
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Page describes a paged listing
type Page struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonx.NewEncoder(w).Encode(v)
}

// Success writes a successful envelope around data
func Success(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	JSON(w, status, &Envelope{
		Success:   true,
		Data:      data,
		RequestID: chimw.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// Paged writes a successful envelope with paging metadata
func Paged(w http.ResponseWriter, r *http.Request, data interface{}, page Page) {
	JSON(w, http.StatusOK, &Envelope{
		Success:   true,
		Data:      data,
		Meta:      page,
		RequestID: chimw.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// Fail writes an error envelope. AppErrors keep their code and status;
// anything else is reported as an opaque internal error. data, when not nil,
// is attached so callers still learn e.g. the id of a failed execution.
func Fail(w http.ResponseWriter, r *http.Request, err error, data interface{}) {
	status := http.StatusInternalServerError
	body := &Error{Code: string(errors.CodeInternal), Message: "Internal server error"}

	if appErr := errors.GetAppError(err); appErr != nil {
		status = appErr.HTTPStatus()
		body = &Error{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
			Context: appErr.Context,
		}
	}

	JSON(w, status, &Envelope{
		Success:   false,
		Data:      data,
		Error:     body,
		RequestID: chimw.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}
