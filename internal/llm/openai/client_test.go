package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/chat/completions")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o-mini")
		}
		if req.Temperature != 0.3 {
			t.Errorf("temperature = %v, want 0.3", req.Temperature)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v, want one user message", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"risk_score\": 7}"}}]}`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL)
	got, err := c.Generate(context.Background(), "gpt-4o-mini", "analyze this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"risk_score": 7}` {
		t.Errorf("response = %q, want %q", got, `{"risk_score": 7}`)
	}
}

func TestGenerate_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("test-key", srv.URL)
	_, err := c.Generate(context.Background(), "gpt-4o-mini", "prompt")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %q, want mention of 429", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL)
	_, err := c.Generate(context.Background(), "gpt-4o-mini", "prompt")
	if err == nil {
		t.Fatal("expected error for empty choices, got nil")
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	t.Parallel()

	c := New("k", "")
	if c.baseURL != "https://api.openai.com" {
		t.Errorf("baseURL = %q, want public endpoint", c.baseURL)
	}
}
