package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/PratikKhaire/100x-n8n/internal/api/response"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// WorkflowHandler serves workflow CRUD and execution endpoints
type WorkflowHandler struct {
	service        *workflows.Service
	logger         logger.Logger
	maxRequestSize int64
}

// NewWorkflowHandler creates a workflow handler. maxRequestSize caps request
// bodies; zero means 10MB.
func NewWorkflowHandler(service *workflows.Service, log logger.Logger, maxRequestSize int64) *WorkflowHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if maxRequestSize <= 0 {
		maxRequestSize = 10 << 20
	}
	return &WorkflowHandler{service: service, logger: log, maxRequestSize: maxRequestSize}
}

// WorkflowRequest is the body of create and inline-execute calls. Nodes and
// edges may be arrays or JSON-encoded strings holding arrays.
type WorkflowRequest struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Nodes       jsonx.RawMessage `json:"nodes"`
	Edges       jsonx.RawMessage `json:"edges"`
	Schedule    string           `json:"schedule"`
	Active      *bool            `json:"active"`
}

func (req *WorkflowRequest) toWorkflow() (*workflows.Workflow, error) {
	nodes, err := workflows.DecodeGraphField[workflows.Node](req.Nodes)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidFormat, "nodes must be an array of nodes").
			WithDetails(err.Error())
	}
	edges, err := workflows.DecodeGraphField[workflows.Edge](req.Edges)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidFormat, "edges must be an array of edges").
			WithDetails(err.Error())
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &workflows.Workflow{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       nodes,
		Edges:       edges,
		Schedule:    req.Schedule,
		Active:      active,
	}, nil
}

// AsyncExecution is returned when a run was queued
type AsyncExecution struct {
	JobID      string `json:"jobId"`
	WorkflowID string `json:"workflowId"`
}

// CreateWorkflow handles POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.decodeWorkflow(w, r)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}

	created, err := h.service.Create(r.Context(), wf)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	response.Success(w, r, http.StatusCreated, created)
}

// ListWorkflows handles GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}

	list, total, err := h.service.List(r.Context(), opts)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	response.Paged(w, r, list, response.Page{Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// GetWorkflow handles GET /api/v1/workflows/{id}
func (h *WorkflowHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	response.Success(w, r, http.StatusOK, wf)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/{id}
func (h *WorkflowHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteWorkflow handles POST /api/v1/workflows/{id}/execute. With
// ?async=true the run is queued and 202 is returned with the job id.
func (h *WorkflowHandler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		jobID, err := h.service.ExecuteAsync(r.Context(), id, workflows.TriggerAPI)
		if err != nil {
			response.Fail(w, r, err, nil)
			return
		}
		response.Success(w, r, http.StatusAccepted, &AsyncExecution{JobID: jobID, WorkflowID: id})
		return
	}

	result, err := h.service.Execute(r.Context(), id, workflows.TriggerAPI)
	h.writeRun(w, r, result, err)
}

// ExecuteInline handles POST /workflow/execute: the body is a complete
// definition that is run synchronously without being stored.
func (h *WorkflowHandler) ExecuteInline(w http.ResponseWriter, r *http.Request) {
	wf, err := h.decodeWorkflow(w, r)
	if err != nil {
		response.Fail(w, r, err, nil)
		return
	}

	result, err := h.service.ExecuteDefinition(r.Context(), wf, workflows.TriggerManual)
	h.writeRun(w, r, result, err)
}

// writeRun reports a finished run. A failed run still carries its result so
// the client learns the execution id.
func (h *WorkflowHandler) writeRun(w http.ResponseWriter, r *http.Request, result *workflows.RunResult, err error) {
	if err != nil {
		if result != nil {
			h.logger.WithContext(r.Context()).Info("Workflow run failed",
				"execution_id", result.ExecutionID, "error", err)
			response.Fail(w, r, err, result)
			return
		}
		response.Fail(w, r, err, nil)
		return
	}
	response.Success(w, r, http.StatusOK, result)
}

func (h *WorkflowHandler) decodeWorkflow(w http.ResponseWriter, r *http.Request) (*workflows.Workflow, error) {
	var req WorkflowRequest
	if err := jsonx.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxRequestSize)).Decode(&req); err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidFormat, "invalid request body").WithDetails(err.Error())
	}
	return req.toWorkflow()
}

func listOptions(r *http.Request) (workflows.ListOptions, error) {
	var opts workflows.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.ValidationError(errors.CodeInvalidInput, "limit must be an integer")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.ValidationError(errors.CodeInvalidInput, "offset must be an integer")
		}
		opts.Offset = n
	}
	return opts.Normalize(), nil
}
