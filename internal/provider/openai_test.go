package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatRoundTrip(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "kubectl_get_pods", "arguments": "{\"namespace\":\"prod\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "gpt-4o")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "you are an ops agent"},
			{Role: "user", Content: "list pods in prod"},
		},
		Tools:     []map[string]any{{"type": "function", "function": map[string]any{"name": "kubectl_get_pods"}}},
		MaxTokens: 1024,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "kubectl_get_pods" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	if tc.Arguments["namespace"] != "prod" {
		t.Fatalf("arguments not decoded: %v", tc.Arguments)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage not parsed: %+v", resp.Usage)
	}
	if captured["tool_choice"] != "auto" {
		t.Fatalf("tool_choice not set: %v", captured["tool_choice"])
	}
}

func TestChatToolResultMessageWireFormat(t *testing.T) {
	msgs := encodeMessages([]Message{
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{{ID: "call_1", Name: "docker_ps", Arguments: map[string]any{"all": true}}}},
		{Role: "tool", Content: "CONTAINER ID ...", ToolCallID: "call_1"},
	})
	if msgs[1].ToolCallID != "call_1" {
		t.Fatalf("tool message not keyed to its call: %+v", msgs[1])
	}
	if len(msgs[0].ToolCalls) != 1 {
		t.Fatalf("assistant tool calls not converted: %+v", msgs[0])
	}
	tc := msgs[0].ToolCalls[0]
	if tc.Type != "function" || tc.Function.Name != "docker_ps" {
		t.Fatalf("function block wrong: %+v", tc)
	}
	if tc.Function.Arguments != `{"all":true}` {
		t.Fatalf("arguments not serialized as a JSON string: %q", tc.Function.Arguments)
	}
}

func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "")
	if _, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("non-200 status should surface as an error")
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	if u.PromptTokens != 11 || u.CompletionTokens != 22 || u.TotalTokens != 33 {
		t.Fatalf("usage not accumulated: %+v", u)
	}
}
