package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPipelineGenerate(t *testing.T) {
	var got pipelineChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		tokens := 7
		_ = json.NewEncoder(w).Encode(pipelineChatResp{Response: "hello back", TokensUsed: &tokens})
	}))
	defer srv.Close()

	p := NewPipelineProvider(srv.URL, time.Second)
	res, err := p.Generate(context.Background(), "openai/gpt-5-chat", "sess-1", []Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "earlier reply"},
		{Role: "user", Content: "now"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "hello back" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Tokens == nil || *res.Tokens != 7 {
		t.Fatalf("tokens = %v", res.Tokens)
	}

	if got.Query != "now" {
		t.Fatalf("query = %q", got.Query)
	}
	if len(got.History) != 2 || got.History[1].Message != "earlier reply" {
		t.Fatalf("history = %+v", got.History)
	}
	if got.Pipeline != "openai/gpt-5-chat" || got.SessionID != "sess-1" {
		t.Fatalf("routing fields: %+v", got)
	}
}

func TestPipelineGenerate_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pipelineChatResp{Error: "model overloaded"})
	}))
	defer srv.Close()

	p := NewPipelineProvider(srv.URL, time.Second)
	_, err := p.Generate(context.Background(), "m", "s", []Message{{Role: "user", Content: "hi"}})
	if err == nil || err.Error() != "model overloaded" {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestPipelineGenerate_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPipelineProvider(srv.URL, time.Second)
	if _, err := p.Generate(context.Background(), "m", "s", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestPipelineHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	p := NewPipelineProvider(srv.URL, time.Second)
	if !p.Health(context.Background()) {
		t.Fatalf("healthy backend reported unhealthy")
	}
	healthy = false
	if p.Health(context.Background()) {
		t.Fatalf("unhealthy backend reported healthy")
	}

	p.BaseURL = "http://127.0.0.1:1"
	if p.Health(context.Background()) {
		t.Fatalf("unreachable backend reported healthy")
	}
}

func TestPipelineGenerate_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewPipelineProvider(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.Generate(ctx, "m", "s", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
