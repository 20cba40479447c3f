package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("unexpected api key header: %s", r.Header.Get("X-Api-Key"))
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		system, _ := body["system"].([]any)
		if len(system) != 1 {
			t.Errorf("system = %v, want one block", body["system"])
		}
		if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
			t.Errorf("messages = %v, want only the user message", body["messages"])
		}
		if body["max_tokens"] != float64(defaultAnthropicMaxTokens) {
			t.Errorf("max_tokens = %v, want default", body["max_tokens"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "[]"},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	}))
	defer server.Close()

	provider := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "Return JSON."},
			{Role: RoleUser, Content: "Generate questions."},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q, want []", resp.Content)
	}
	if resp.InputTokens != 50 || resp.OutputTokens != 30 {
		t.Errorf("tokens = %d/%d, want 50/30", resp.InputTokens, resp.OutputTokens)
	}
}

func TestAnthropicProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}); err == nil {
		t.Fatal("Complete() should return error on 400")
	}
}
