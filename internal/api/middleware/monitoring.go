// Package middleware holds the HTTP middleware of the API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// MonitoringConfig holds monitoring middleware configuration
type MonitoringConfig struct {
	SlowRequestThreshold time.Duration
	SkipPaths            []string
}

// DefaultMonitoringConfig returns default monitoring configuration
func DefaultMonitoringConfig() *MonitoringConfig {
	return &MonitoringConfig{
		SlowRequestThreshold: time.Second,
		SkipPaths:            []string{"/health", "/metrics"},
	}
}

// Monitoring logs each request and records HTTP metrics
type Monitoring struct {
	config  *MonitoringConfig
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewMonitoring creates the monitoring middleware. m may be nil.
func NewMonitoring(config *MonitoringConfig, log logger.Logger, m *metrics.Metrics) *Monitoring {
	if config == nil {
		config = DefaultMonitoringConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Monitoring{config: config, logger: log, metrics: m}
}

// Handler wraps next with request logging and metrics
func (m *Monitoring) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		m.metrics.IncHTTPRequestsInFlight()
		defer m.metrics.DecHTTPRequestsInFlight()

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.metrics.RecordHTTPRequest(r.Method, routePattern(r), status, duration)

		log := m.logger.WithContext(r.Context()).With(
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration,
			"bytes", ww.BytesWritten(),
			"request_id", chimw.GetReqID(r.Context()),
		)
		switch {
		case status >= 500:
			log.Error("Request completed with error")
		case status >= 400:
			log.Warn("Request completed with client error")
		case duration > m.config.SlowRequestThreshold:
			log.Warn("Slow request detected")
		default:
			log.Info("Request completed")
		}
	})
}

func (m *Monitoring) skip(path string) bool {
	for _, p := range m.config.SkipPaths {
		if p == path {
			return true
		}
	}
	return false
}

// routePattern labels metrics with the matched chi route so ids in paths do
// not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
