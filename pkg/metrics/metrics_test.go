package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(&Config{Namespace: "test", ServiceName: "api"})

	t.Run("workflow executions", func(t *testing.T) {
		m.RecordWorkflowExecution("wf-1", "success", 10*time.Millisecond)
		m.RecordWorkflowExecution("wf-1", "success", 20*time.Millisecond)
		m.RecordWorkflowExecution("wf-1", "failed", time.Millisecond)

		assert.Equal(t, float64(2), testutil.ToFloat64(m.WorkflowExecutionsTotal.WithLabelValues("wf-1", "success")))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkflowExecutionsTotal.WithLabelValues("wf-1", "failed")))
	})

	t.Run("running gauge", func(t *testing.T) {
		done := m.TrackRunning()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkflowsRunning))
		done()
		assert.Equal(t, float64(0), testutil.ToFloat64(m.WorkflowsRunning))
	})

	t.Run("node executions", func(t *testing.T) {
		m.RecordNodeExecution("httpRequest", "failed", time.Millisecond)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.NodeExecutionsTotal.WithLabelValues("httpRequest", "failed")))
	})

	t.Run("http requests", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200", "api")))
	})
}

func TestHandler(t *testing.T) {
	m := New(&Config{Namespace: "test"})
	m.RecordQueueMessage("workflow-jobs", "produced")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_queue_messages_total")
}

func TestGetGlobal(t *testing.T) {
	m := Initialize(&Config{Namespace: "global_test"})
	assert.Same(t, m, GetGlobal())
}
