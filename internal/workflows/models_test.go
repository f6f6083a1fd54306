package workflows

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
)

func TestWorkflowModel(t *testing.T) {
	t.Run("NewWorkflow assigns identifiers", func(t *testing.T) {
		wf := NewWorkflow("demo", []Node{{ID: "a", Type: "start"}}, []Edge{{Source: "a", Target: "b"}, {ID: "kept", Source: "b", Target: "c"}})

		assert.NotEmpty(t, wf.ID)
		assert.True(t, wf.Active)
		assert.Equal(t, "e-a-b", wf.Edges[0].ID)
		assert.Equal(t, "kept", wf.Edges[1].ID)
	})

	t.Run("StringParam", func(t *testing.T) {
		n := Node{Data: map[string]interface{}{"method": "post", "empty": "", "num": 3}}
		assert.Equal(t, "post", n.StringParam("method", "GET"))
		assert.Equal(t, "GET", n.StringParam("empty", "GET"))
		assert.Equal(t, "GET", n.StringParam("num", "GET"))
		assert.Equal(t, "GET", (&Node{}).StringParam("method", "GET"))
	})
}

func TestExecutionModel(t *testing.T) {
	exec := NewExecution("wf-1", "")
	assert.Equal(t, TriggerManual, exec.Trigger)
	assert.Equal(t, ExecutionStatusPending, exec.Status)
	assert.False(t, exec.Status.IsTerminal())
	assert.Zero(t, exec.Duration())

	finished := exec.StartedAt.Add(2 * time.Second)
	exec.FinishedAt = &finished
	assert.Equal(t, 2*time.Second, exec.Duration())

	assert.True(t, ExecutionStatusSuccess.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{}.Normalize())
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{Limit: 500, Offset: -1}.Normalize())
	assert.Equal(t, ListOptions{Limit: 5, Offset: 10}, ListOptions{Limit: 5, Offset: 10}.Normalize())
}

func TestDecodeGraphField(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []Node
		wantErr bool
	}{
		{name: "array", raw: `[{"id":"1","type":"start"}]`, want: []Node{{ID: "1", Type: "start"}}},
		{name: "encoded string", raw: `"[{\"id\":\"1\",\"type\":\"start\"}]"`, want: []Node{{ID: "1", Type: "start"}}},
		{name: "null", raw: `null`, want: []Node{}},
		{name: "empty", raw: ``, want: []Node{}},
		{name: "garbage", raw: `"not json"`, wantErr: true},
		{name: "wrong shape", raw: `{"id":"1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGraphField[Node](jsonx.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateWorkflow(t *testing.T) {
	valid := func() *Workflow {
		return NewWorkflow("ok", []Node{{ID: "1", Type: "start"}, {ID: "2", Type: "end"}}, []Edge{{Source: "1", Target: "2"}})
	}

	tests := []struct {
		name   string
		mutate func(*Workflow)
		code   errors.ErrorCode
	}{
		{name: "valid", mutate: func(*Workflow) {}},
		{name: "missing name", mutate: func(w *Workflow) { w.Name = "" }, code: errors.CodeMissingField},
		{name: "no nodes", mutate: func(w *Workflow) { w.Nodes = nil; w.Edges = nil }, code: errors.CodeInvalidInput},
		{name: "bad node type", mutate: func(w *Workflow) { w.Nodes[1].Type = "http request" }, code: errors.CodeInvalidInput},
		{name: "duplicate node", mutate: func(w *Workflow) { w.Nodes[1].ID = "1" }, code: errors.CodeInvalidWorkflow},
		{name: "dangling edge", mutate: func(w *Workflow) { w.Edges[0].Target = "9" }, code: errors.CodeInvalidWorkflow},
		{name: "bad schedule", mutate: func(w *Workflow) { w.Schedule = "every tuesday" }, code: errors.CodeInvalidFormat},
		{name: "good schedule", mutate: func(w *Workflow) { w.Schedule = "0 9 * * 1-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := valid()
			tt.mutate(wf)
			err := ValidateWorkflow(wf)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}

	assert.Error(t, ValidateWorkflow(nil))
}

func TestLoadDefinitionFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "flow.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
name: yaml flow
nodes:
  - id: "1"
    type: start
  - id: "2"
    type: httpRequest
    data:
      url: http://example.com
edges:
  - source: "1"
    target: "2"
`), 0o600))

		wf, err := LoadDefinitionFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, wf.ID)
		assert.Equal(t, "yaml flow", wf.Name)
		require.Len(t, wf.Nodes, 2)
		assert.Equal(t, "http://example.com", wf.Nodes[1].StringParam("url", ""))
		assert.Equal(t, "e-1-2", wf.Edges[0].ID)
	})

	t.Run("json keeps id", func(t *testing.T) {
		path := filepath.Join(dir, "flow.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"wf-9","name":"j","nodes":[{"id":"1","type":"start"}],"edges":[]}`), 0o600))

		wf, err := LoadDefinitionFile(path)
		require.NoError(t, err)
		assert.Equal(t, "wf-9", wf.ID)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := LoadDefinitionFile(filepath.Join(dir, "missing.json"))
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		_, err = LoadDefinitionFile(path)
		assert.Equal(t, errors.CodeInvalidFormat, errors.CodeOf(err))
	})
}
