package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opsgate/opsgate/internal/catalog"
)

type recordingExecutor struct {
	lastOp     string
	lastParams map[string]any
	result     string
	err        error
}

func (e *recordingExecutor) Invoke(_ context.Context, op string, params map[string]any) (string, error) {
	e.lastOp = op
	e.lastParams = params
	return e.result, e.err
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	for _, tool := range []catalog.Tool{
		{Name: "kubectl_get_pods", Group: catalog.GroupKubernetes},
		{Name: "docker_ps", Group: catalog.GroupSystem},
		{Name: "run_security_scan", Group: catalog.GroupSecurity},
	} {
		if err := c.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name, err)
		}
	}
	return c
}

func TestDispatchByGroup(t *testing.T) {
	k8s := &recordingExecutor{result: "pods"}
	sys := &recordingExecutor{result: "containers"}
	r := New(testCatalog(t))
	r.Register(catalog.GroupKubernetes, k8s)
	r.Register(catalog.GroupSystem, sys)

	out, err := r.Route(context.Background(), "kubectl_get_pods", map[string]any{"namespace": "prod"})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if out != "pods" || k8s.lastOp != "kubectl_get_pods" {
		t.Fatalf("kubernetes executor not invoked: out=%q op=%q", out, k8s.lastOp)
	}
	if k8s.lastParams["namespace"] != "prod" {
		t.Fatalf("params not forwarded: %v", k8s.lastParams)
	}
	if sys.lastOp != "" {
		t.Fatal("system executor should not have been invoked")
	}
}

func TestUnknownToolFails(t *testing.T) {
	r := New(testCatalog(t))
	_, err := r.Route(context.Background(), "no_such_tool", nil)
	if !errors.Is(err, catalog.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got: %v", err)
	}
}

func TestUnregisteredGroupReturnsPlaceholder(t *testing.T) {
	r := New(testCatalog(t))
	out, err := r.Route(context.Background(), "run_security_scan", nil)
	if err != nil {
		t.Fatalf("unregistered group should not error: %v", err)
	}
	if !strings.HasPrefix(out, "[not implemented]") {
		t.Fatalf("placeholder result not tagged: %q", out)
	}
}

func TestNilExecutorNotAvailable(t *testing.T) {
	r := New(testCatalog(t))
	r.Register(catalog.GroupSystem, nil)
	_, err := r.Route(context.Background(), "docker_ps", nil)
	if !errors.Is(err, ErrExecutorNotAvailable) {
		t.Fatalf("expected ErrExecutorNotAvailable, got: %v", err)
	}
}
