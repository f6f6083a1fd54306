package nodes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

func newTestEngine(t *testing.T, repo *workflows.MemoryRepository) *engine.Engine {
	t.Helper()
	catalog, err := NewCatalog(logger.NewNop(), Config{})
	require.NoError(t, err)
	eng, err := engine.New(catalog.Registry(), repo, logger.NewNop(), nil, engine.Options{})
	require.NoError(t, err)
	return eng
}

func httpPipeline(url string) *workflows.Workflow {
	return workflows.NewWorkflow("http pipeline",
		[]workflows.Node{
			{ID: "s", Type: "start"},
			{ID: "h", Type: "httpRequest", Data: map[string]interface{}{"url": url}},
			{ID: "e", Type: "end"},
		},
		[]workflows.Edge{{Source: "s", Target: "h"}, {Source: "h", Target: "e"}},
	)
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog(nil, Config{})
	require.NoError(t, err)

	t.Run("registers the built-in types", func(t *testing.T) {
		assert.Equal(t, []string{"end", "httpRequest", "start"}, catalog.Registry().Types())
	})

	t.Run("definitions are sorted and complete", func(t *testing.T) {
		defs := catalog.Definitions()
		require.Len(t, defs, 3)
		assert.Equal(t, "end", defs[0].Type)
		assert.Equal(t, "httpRequest", defs[1].Type)

		httpDef, ok := catalog.Definition("httpRequest")
		require.True(t, ok)
		assert.Len(t, httpDef.Parameters, 3)
	})

	t.Run("condition is not a built-in", func(t *testing.T) {
		_, ok := catalog.Registry().Lookup("condition")
		assert.False(t, ok)
	})

	t.Run("duplicate registration is rejected", func(t *testing.T) {
		err := catalog.Register(&NodeDefinition{Type: "start"}, NewStartExecutor(logger.NewNop()))
		assert.Error(t, err)
	})
}

func TestCoreExecutors_Identity(t *testing.T) {
	values := []interface{}{
		map[string]interface{}{},
		map[string]interface{}{"a": 1},
		"text",
		nil,
	}
	n := &workflows.Node{ID: "n"}

	for i, v := range values {
		t.Run(fmt.Sprintf("value_%d", i), func(t *testing.T) {
			out, err := NewStartExecutor(logger.NewNop()).Execute(context.Background(), n, v)
			require.NoError(t, err)
			assert.Equal(t, v, out)

			out, err = NewEndExecutor(logger.NewNop()).Execute(context.Background(), n, v)
			require.NoError(t, err)
			assert.Equal(t, v, out)
		})
	}
}

func TestPipeline(t *testing.T) {
	t.Run("start to httpRequest to end returns the response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"x":1}`))
		}))
		defer srv.Close()

		repo := workflows.NewMemoryRepository()
		res, err := newTestEngine(t, repo).Execute(context.Background(), httpPipeline(srv.URL))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"x": float64(1)}, res.FinalResult)

		exec, err := repo.GetExecution(context.Background(), res.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, workflows.ExecutionStatusSuccess, exec.Status)
		assert.Equal(t, 3, exec.StepCount)
	})

	t.Run("unreachable URL fails the run with an error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		repo := workflows.NewMemoryRepository()
		res, err := newTestEngine(t, repo).Execute(context.Background(), httpPipeline(url))
		require.Error(t, err)
		assert.Equal(t, errors.CodeExternalCallFailure, engine.KindOf(err))

		exec, err := repo.GetExecution(context.Background(), res.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, workflows.ExecutionStatusFailed, exec.Status)
		assert.Contains(t, exec.Error, engine.ExternalCallMessage)
		payload, ok := exec.Result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, exec.Error, payload["error"])
	})

	t.Run("concurrent runs are independent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
		}))
		defer srv.Close()

		repo := workflows.NewMemoryRepository()
		eng := newTestEngine(t, repo)

		const runs = 16
		var wg sync.WaitGroup
		results := make([]*engine.Result, runs)
		errs := make([]error, runs)
		for i := 0; i < runs; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = eng.Execute(context.Background(), httpPipeline(fmt.Sprintf("%s/run/%d", srv.URL, i)))
			}(i)
		}
		wg.Wait()

		ids := make(map[string]struct{}, runs)
		for i := 0; i < runs; i++ {
			require.NoError(t, errs[i])
			ids[results[i].ExecutionID] = struct{}{}
			assert.Equal(t, map[string]interface{}{"path": fmt.Sprintf("/run/%d", i)}, results[i].FinalResult)
		}
		assert.Len(t, ids, runs)

		_, total, err := repo.ListExecutions(context.Background(), workflows.ExecutionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(runs), total)
	})
}
