package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opsgate/opsgate/internal/catalog"
	"github.com/opsgate/opsgate/internal/ledger"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/opsgate/opsgate/internal/provider"
	"github.com/opsgate/opsgate/internal/router"
	"github.com/opsgate/opsgate/internal/store"
)

// scriptedProvider replays a fixed sequence of responses and records every
// request it was given.
type scriptedProvider struct {
	responses []*provider.ChatResponse
	requests  []*provider.ChatRequest
	err       error
}

func (p *scriptedProvider) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &provider.ChatResponse{Content: "done"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

type echoExecutor struct {
	calls []string
}

func (e *echoExecutor) Invoke(_ context.Context, op string, _ map[string]any) (string, error) {
	e.calls = append(e.calls, op)
	return "output of " + op, nil
}

func newLoop(t *testing.T, p *scriptedProvider) (*Loop, *echoExecutor) {
	t.Helper()
	cat := catalog.New()
	for _, tool := range []catalog.Tool{
		{Name: "kubectl_get_pods", Group: catalog.GroupKubernetes},
		{Name: "kubectl_get_events", Group: catalog.GroupKubernetes},
		{Name: "kubectl_delete_pod", Group: catalog.GroupKubernetes, Dangerous: true},
	} {
		if err := cat.Register(tool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	ex := &echoExecutor{}
	rt := router.New(cat)
	rt.Register(catalog.GroupKubernetes, ex)
	led := ledger.New(store.NewMemory(), rt, ledger.Options{})
	return New(p, cat, led, Options{MaxIterations: 3}), ex
}

func call(id, name string, args map[string]any) provider.ToolCall {
	return provider.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestRunPlainAnswer(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		{Content: "All pods are healthy.", Usage: provider.Usage{TotalTokens: 10}},
	}}
	loop, ex := newLoop(t, p)

	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "how are my pods?",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusCompleted || res.Response != "All pods are healthy." {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(ex.calls) != 0 {
		t.Fatalf("no tools should have run, got %v", ex.calls)
	}
	if res.Usage.TotalTokens != 10 {
		t.Fatalf("usage = %+v", res.Usage)
	}
	// System prompt first, user message second.
	if p.requests[0].Messages[0].Role != "system" || p.requests[0].Messages[1].Role != "user" {
		t.Fatalf("message order wrong: %+v", p.requests[0].Messages)
	}
	if len(p.requests[0].Tools) == 0 {
		t.Fatal("catalog definitions not passed to the model")
	}
}

func TestRunExecutesToolsAndFeedsResultsBack(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{
			call("c1", "kubectl_get_pods", map[string]any{"namespace": "prod"}),
			call("c2", "kubectl_get_events", nil),
		}},
		{Content: "Two pods running, no warning events."},
	}}
	loop, ex := newLoop(t, p)

	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "check prod",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if len(ex.calls) != 2 || ex.calls[0] != "kubectl_get_pods" || ex.calls[1] != "kubectl_get_events" {
		t.Fatalf("execution order wrong: %v", ex.calls)
	}
	if len(res.Executions) != 2 {
		t.Fatalf("executions = %d, want 2", len(res.Executions))
	}

	// Second model call must see the assistant tool calls and both results.
	second := p.requests[1].Messages
	var toolMsgs []provider.Message
	for _, m := range second {
		if m.Role == "tool" {
			toolMsgs = append(toolMsgs, m)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("tool messages = %d, want 2", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "c1" || !strings.Contains(toolMsgs[0].Content, "output of kubectl_get_pods") {
		t.Fatalf("first tool message wrong: %+v", toolMsgs[0])
	}
}

func TestRunStopsAtApprovalGate(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{
			call("c1", "kubectl_delete_pod", map[string]any{"pod_name": "web-1"}),
			call("c2", "kubectl_get_pods", nil),
		}},
	}}
	loop, ex := newLoop(t, p)

	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "delete web-1",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusApprovalRequired || res.Pending == nil {
		t.Fatalf("expected approval gate, got %+v", res)
	}
	if len(ex.calls) != 0 {
		t.Fatalf("nothing should have executed, got %v", ex.calls)
	}
	// Only one model call; the turn ends at the gate.
	if len(p.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(p.requests))
	}

	// The transcript carries placeholders for both the gated call and the
	// call that never ran, so a resumed conversation stays well formed.
	var gated, skipped bool
	for _, m := range res.Transcript {
		if m.Role != "tool" {
			continue
		}
		switch m.ToolCallID {
		case "c1":
			gated = strings.Contains(m.Content, "Pending human approval")
		case "c2":
			skipped = strings.Contains(m.Content, "awaiting approval")
		}
	}
	if !gated || !skipped {
		t.Fatalf("placeholder tool messages missing: %+v", res.Transcript)
	}
}

func TestRunUnknownToolFeedsErrorBack(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{call("c1", "kubectl_get_podz", nil)}},
		{Content: "Sorry, I mistyped that tool."},
	}}
	loop, _ := newLoop(t, p)

	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "check pods",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	second := p.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || !strings.Contains(last.Content, "kubectl_get_podz") {
		t.Fatalf("error tool message missing: %+v", last)
	}
}

func TestRunIterationBudget(t *testing.T) {
	// Every response asks for another tool; the loop must stop on its own.
	resp := func() *provider.ChatResponse {
		return &provider.ChatResponse{ToolCalls: []provider.ToolCall{
			call("c", "kubectl_get_pods", nil),
		}}
	}
	p := &scriptedProvider{responses: []*provider.ChatResponse{resp(), resp(), resp(), resp()}}
	loop, ex := newLoop(t, p)

	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "loop forever",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusMaxIterations {
		t.Fatalf("status = %s, want max_iterations", res.Status)
	}
	if res.Iterations != 3 || len(ex.calls) != 3 {
		t.Fatalf("iterations = %d, executor calls = %d", res.Iterations, len(ex.calls))
	}
}

func TestRunProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("upstream 503")}
	loop, _ := newLoop(t, p)

	_, err := loop.Run(context.Background(), TurnRequest{UserMessage: "hi", Mode: policy.ModeNormal})
	if err == nil || !strings.Contains(err.Error(), "upstream 503") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func resumeFixture(t *testing.T, p *scriptedProvider) (*Loop, *ledger.Outcome, []provider.Message) {
	t.Helper()
	gate := &scriptedProvider{responses: []*provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{call("c1", "kubectl_delete_pod", map[string]any{"pod_name": "web-1"})}},
	}}
	loop, _ := newLoop(t, gate)
	res, err := loop.Run(context.Background(), TurnRequest{
		UserMessage: "delete web-1",
		Requester:   "alice",
		Mode:        policy.ModeNormal,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("fixture did not gate")
	}
	// Reuse the same ledger with a fresh scripted provider for the resume.
	loop.provider = p
	return loop, res.Pending, res.Transcript
}

func TestResumeAfterRejection(t *testing.T) {
	p := &scriptedProvider{}
	loop, pending, transcript := resumeFixture(t, p)

	res, err := loop.ResumeAfterApproval(context.Background(), ResumeRequest{
		ExecutionID: pending.ExecutionID,
		Approved:    false,
		Approver:    "bob",
		Transcript:  transcript,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !strings.Contains(res.Response, "cancelled") {
		t.Fatalf("response = %q", res.Response)
	}
	if len(p.requests) != 0 {
		t.Fatal("rejection must not call the model")
	}
	if len(res.Executions) != 1 || res.Executions[0].Status != ledger.StatusRejected {
		t.Fatalf("executions = %+v", res.Executions)
	}
}

func TestResumeAfterApprovalSummarizes(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		{Content: "Deleted web-1; the deployment will reschedule it."},
	}}
	loop, pending, transcript := resumeFixture(t, p)

	res, err := loop.ResumeAfterApproval(context.Background(), ResumeRequest{
		ExecutionID: pending.ExecutionID,
		Approved:    true,
		Approver:    "bob",
		Transcript:  transcript,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Response != "Deleted web-1; the deployment will reschedule it." {
		t.Fatalf("response = %q", res.Response)
	}
	if res.Executions[0].Status != ledger.StatusSuccess {
		t.Fatalf("execution status = %s", res.Executions[0].Status)
	}
	// The summary call must carry the execution result.
	req := p.requests[0]
	lastUser := req.Messages[len(req.Messages)-1]
	if lastUser.Role != "user" || !strings.Contains(lastUser.Content, "output of kubectl_delete_pod") {
		t.Fatalf("result not fed to the model: %+v", lastUser)
	}
}

func TestResumeUnknownExecution(t *testing.T) {
	p := &scriptedProvider{}
	loop, _ := newLoop(t, p)

	_, err := loop.ResumeAfterApproval(context.Background(), ResumeRequest{
		ExecutionID: "exec_missing",
		Approved:    true,
		Approver:    "bob",
	})
	if !errors.Is(err, ledger.ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
}
