// Package router maps an operation name to the concrete executor for its
// capability group. Dispatch is by the group tag declared on the tool
// definition, never by matching substrings of the name.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsgate/opsgate/internal/catalog"
)

// ErrExecutorNotAvailable is returned when a capability group is registered
// but its executor is unusable.
var ErrExecutorNotAvailable = errors.New("executor not available")

// Executor is the per-capability-group collaborator contract. Implementations
// must tolerate partially-validated parameters; schema validation is the
// catalog's job, not theirs.
type Executor interface {
	Invoke(ctx context.Context, op string, params map[string]any) (string, error)
}

// Router dispatches operations to registered executors.
type Router struct {
	catalog   *catalog.Catalog
	executors map[string]Executor
}

// New creates a router over the given catalog.
func New(cat *catalog.Catalog) *Router {
	return &Router{
		catalog:   cat,
		executors: make(map[string]Executor),
	}
}

// Register binds an executor to a capability group. Registering again for
// the same group replaces the previous executor.
func (r *Router) Register(group string, ex Executor) {
	r.executors[group] = ex
}

// Route invokes the executor for the named tool's capability group. An
// unknown tool fails with catalog.ErrToolNotFound; a group without a
// registered executor yields a tagged placeholder result rather than an
// error, so the agent loop can continue gracefully.
func (r *Router) Route(ctx context.Context, toolName string, params map[string]any) (string, error) {
	tool, err := r.catalog.Get(toolName)
	if err != nil {
		return "", err
	}
	ex, registered := r.executors[tool.Group]
	if !registered {
		return fmt.Sprintf("[not implemented] no executor registered for capability group %q", tool.Group), nil
	}
	if ex == nil {
		return "", fmt.Errorf("%w: capability group %q", ErrExecutorNotAvailable, tool.Group)
	}
	return ex.Invoke(ctx, toolName, params)
}
