package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PratikKhaire/100x-n8n/internal/api/response"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
)

// ExecutionHandler serves execution record queries
type ExecutionHandler struct {
	service *workflows.Service
}

// NewExecutionHandler creates an execution handler
func NewExecutionHandler(service *workflows.Service) *ExecutionHandler {
	return &ExecutionHandler{service: service}
}

// ListExecutions handles GET /api/v1/executions and
// GET /api/v1/workflows/{id}/executions
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}

	filter := workflows.ExecutionFilter{
		ListOptions: opts,
		WorkflowID:  r.URL.Query().Get("workflow_id"),
		Status:      workflows.ExecutionStatus(r.URL.Query().Get("status")),
	}
	if id := chi.URLParam(r, "id"); id != "" {
		filter.WorkflowID = id
	}

	list, total, err := h.service.ListExecutions(r.Context(), filter)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	response.Paged(w, r, list, response.Page{Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// GetExecution handles GET /api/v1/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.service.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	response.Success(w, r, http.StatusOK, exec)
}
