package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.Write([]byte(completionBody("hello there")))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("local", "sk-x", srv.URL, "test-model", time.Second)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hello there" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if gotAuth != "Bearer sk-x" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q, want default applied", gotModel)
	}
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("local", "", srv.URL, "m", time.Second)
	p.retryConfig = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}

	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "recovered" || calls.Load() != 3 {
		t.Errorf("content=%q calls=%d", resp.Content, calls.Load())
	}
}

func TestOpenAIProvider_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("local", "", srv.URL, "m", time.Second)
	p.retryConfig = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}

	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (400 is not retryable)", calls.Load())
	}
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("local", "", srv.URL, "m", time.Second)
	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected empty-choices error")
	}
}

func TestRetryDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryDo(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Second}, func() (int, error) {
		return 0, Retryable(errors.New("flaky"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBlocked(t *testing.T) {
	if !(&ChatResponse{FinishReason: "content_filter"}).Blocked() {
		t.Error("content_filter should report blocked")
	}
	if (&ChatResponse{FinishReason: "stop"}).Blocked() {
		t.Error("stop should not report blocked")
	}
}
