package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
)

// NodeExecutor runs one node. It receives the value produced by the previous
// node and returns the value handed to the next one.
type NodeExecutor interface {
	Execute(ctx context.Context, node *workflows.Node, input interface{}) (interface{}, error)
}

// ExecutorFunc adapts a plain function to NodeExecutor.
type ExecutorFunc func(ctx context.Context, node *workflows.Node, input interface{}) (interface{}, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, node *workflows.Node, input interface{}) (interface{}, error) {
	return f(ctx, node, input)
}

// UnknownNodePolicy decides what happens to nodes whose type has no executor.
type UnknownNodePolicy string

const (
	// PolicyPassthrough forwards the input unchanged and logs a warning.
	PolicyPassthrough UnknownNodePolicy = "passthrough"
	// PolicyStrict fails the run with an unregistered executor error.
	PolicyStrict UnknownNodePolicy = "strict"
)

// ParseUnknownNodePolicy parses a policy name, case-insensitively.
func ParseUnknownNodePolicy(s string) (UnknownNodePolicy, error) {
	switch UnknownNodePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyPassthrough, "":
		return PolicyPassthrough, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", errors.ValidationError(errors.CodeInvalidInput,
		fmt.Sprintf("unknown node policy %q (want passthrough or strict)", s))
}

// Registry maps node type tags to executors. It is populated once at startup
// and is not safe for concurrent registration; the engine takes its own
// snapshot, so a registry handed to New is never mutated underneath a run.
type Registry struct {
	executors map[string]NodeExecutor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]NodeExecutor)}
}

// Register binds nodeType to exec. Empty tags, nil executors and duplicate
// registrations are rejected.
func (r *Registry) Register(nodeType string, exec NodeExecutor) error {
	if strings.TrimSpace(nodeType) == "" {
		return errors.ValidationError(errors.CodeMissingField, "node type is required")
	}
	if exec == nil {
		return errors.ValidationError(errors.CodeMissingField,
			fmt.Sprintf("executor for node type %q is nil", nodeType))
	}
	if _, exists := r.executors[nodeType]; exists {
		return errors.ConflictError(fmt.Sprintf("executor for node type %q", nodeType))
	}
	r.executors[nodeType] = exec
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(nodeType string, exec NodeExecutor) {
	if err := r.Register(nodeType, exec); err != nil {
		panic(err)
	}
}

// Lookup returns the executor bound to nodeType.
func (r *Registry) Lookup(nodeType string) (NodeExecutor, bool) {
	exec, ok := r.executors[nodeType]
	return exec, ok
}

// Types lists the registered type tags in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) snapshot() *Registry {
	clone := NewRegistry()
	if r == nil {
		return clone
	}
	for t, exec := range r.executors {
		clone.executors[t] = exec
	}
	return clone
}
