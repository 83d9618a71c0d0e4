package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestCompleteAgainstCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if _, ok := req["response_format"]; !ok {
			t.Errorf("expected response_format in JSON mode")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  {\"ValidResolution\":true}  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "test-model", JSONMode: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Complete(t.Context(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"ValidResolution":true}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCompleteRejectsEmptyPrompts(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Complete(t.Context(), "", "user"); err == nil {
		t.Fatalf("expected error for empty system prompt")
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = time.Second })

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Complete(t.Context(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "ok" || calls.Load() != 3 {
		t.Fatalf("out=%q calls=%d", out, calls.Load())
	}
}

func TestCompleteDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Complete(t.Context(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
