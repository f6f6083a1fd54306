package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Path        string `json:"path" yaml:"path"`
	Namespace   string `json:"namespace" yaml:"namespace"`
	Subsystem   string `json:"subsystem" yaml:"subsystem"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		Path:        "/metrics",
		Namespace:   "flowrun",
		ServiceName: "api",
	}
}

// Metrics holds all application metrics
type Metrics struct {
	config *Config

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Workflow metrics
	WorkflowExecutionsTotal   *prometheus.CounterVec
	WorkflowExecutionDuration *prometheus.HistogramVec
	WorkflowsRunning          prometheus.Gauge

	// Node metrics
	NodeExecutionsTotal   *prometheus.CounterVec
	NodeExecutionDuration *prometheus.HistogramVec

	// Database metrics
	DBQueriesTotal  *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec

	// Queue metrics
	QueueMessagesTotal *prometheus.CounterVec

	// Storage metrics
	ArchiveUploadsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new metrics instance backed by its own registry
func New(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	m.initHTTPMetrics()
	m.initWorkflowMetrics()
	m.initNodeMetrics()
	m.initDatabaseMetrics()
	m.initQueueMetrics()

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WorkflowExecutionsTotal,
		m.WorkflowExecutionDuration,
		m.WorkflowsRunning,
		m.NodeExecutionsTotal,
		m.NodeExecutionDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.QueueMessagesTotal,
		m.ArchiveUploadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// counterVec, histogramVec and gauge build collectors in the configured
// namespace and subsystem.
func (m *Metrics) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Metrics) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func (m *Metrics) gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Metrics) initHTTPMetrics() {
	labels := []string{"method", "path", "status", "service"}
	m.HTTPRequestsTotal = m.counterVec("http_requests_total",
		"Total number of HTTP requests", labels...)
	m.HTTPRequestDuration = m.histogramVec("http_request_duration_seconds",
		"HTTP request duration in seconds",
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, labels...)
	m.HTTPRequestsInFlight = m.gauge("http_requests_in_flight",
		"Number of HTTP requests currently being processed")
}

func (m *Metrics) initWorkflowMetrics() {
	m.WorkflowExecutionsTotal = m.counterVec("workflow_executions_total",
		"Total number of workflow executions by terminal status", "workflow_id", "status")
	m.WorkflowExecutionDuration = m.histogramVec("workflow_execution_duration_seconds",
		"Workflow execution duration in seconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}, "workflow_id", "status")
	m.WorkflowsRunning = m.gauge("workflows_running",
		"Number of workflow executions currently traversing")
}

func (m *Metrics) initNodeMetrics() {
	m.NodeExecutionsTotal = m.counterVec("node_executions_total",
		"Total number of node executor invocations", "node_type", "status")
	m.NodeExecutionDuration = m.histogramVec("node_execution_duration_seconds",
		"Node executor duration in seconds", prometheus.DefBuckets, "node_type", "status")
}

func (m *Metrics) initDatabaseMetrics() {
	m.DBQueriesTotal = m.counterVec("db_queries_total",
		"Total number of database queries", "operation", "table", "status")
	m.DBQueryDuration = m.histogramVec("db_query_duration_seconds",
		"Database query duration in seconds",
		[]float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, "operation", "table", "status")
}

func (m *Metrics) initQueueMetrics() {
	m.QueueMessagesTotal = m.counterVec("queue_messages_total",
		"Total number of queue messages by topic and outcome", "queue", "status")
	m.ArchiveUploadsTotal = m.counterVec("archive_uploads_total",
		"Total number of execution archive uploads", "status")
}

// The recorders below are no-ops on a nil *Metrics so optional wiring stays
// simple for callers.

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status, m.config.ServiceName).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status, m.config.ServiceName).Observe(duration.Seconds())
}

func (m *Metrics) IncHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

func (m *Metrics) DecHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordWorkflowExecution records a finished workflow execution
func (m *Metrics) RecordWorkflowExecution(workflowID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowExecutionsTotal.WithLabelValues(workflowID, status).Inc()
	m.WorkflowExecutionDuration.WithLabelValues(workflowID, status).Observe(duration.Seconds())
}

// TrackRunning bumps the running gauge and returns the matching decrement.
func (m *Metrics) TrackRunning() func() {
	if m == nil {
		return func() {}
	}
	m.WorkflowsRunning.Inc()
	return m.WorkflowsRunning.Dec
}

// RecordNodeExecution records one executor invocation
func (m *Metrics) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.NodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	m.NodeExecutionDuration.WithLabelValues(nodeType, status).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table, status).Observe(duration.Seconds())
}

// RecordQueueMessage records a produced or consumed queue message
func (m *Metrics) RecordQueueMessage(queueName, status string) {
	if m == nil {
		return
	}
	m.QueueMessagesTotal.WithLabelValues(queueName, status).Inc()
}

// RecordArchiveUpload records an execution archive upload
func (m *Metrics) RecordArchiveUpload(status string) {
	if m == nil {
		return
	}
	m.ArchiveUploadsTotal.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Initialize sets up the global metrics instance
func Initialize(config *Config) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = New(config)
	return globalMetrics
}

// GetGlobal returns the global metrics instance
func GetGlobal() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(DefaultConfig())
	}
	return globalMetrics
}
