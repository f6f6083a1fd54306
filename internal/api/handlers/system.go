// Package handlers implements the HTTP endpoints of the API server.
package handlers

import (
	"net/http"
	"runtime"

	"github.com/PratikKhaire/100x-n8n/internal/api/response"
	"github.com/PratikKhaire/100x-n8n/internal/nodes"
)

// Banner is the body of GET /
const Banner = "flowrun backend is running"

// VersionInfo is the body of GET /version
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
}

// SystemHandler serves the banner, version and node catalog endpoints
type SystemHandler struct {
	catalog *nodes.Catalog
	version string
}

// NewSystemHandler creates a system handler
func NewSystemHandler(catalog *nodes.Catalog, version string) *SystemHandler {
	return &SystemHandler{catalog: catalog, version: version}
}

// Root handles GET /
func (h *SystemHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Banner))
}

// Version handles GET /version
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, http.StatusOK, &VersionInfo{Version: h.version, GoVersion: runtime.Version()})
}

// ListNodeTypes handles GET /api/v1/nodes
func (h *SystemHandler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, http.StatusOK, h.catalog.Definitions())
}
