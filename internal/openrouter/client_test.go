package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGenerateSendsAttributionHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Title") == "" || r.Header.Get("HTTP-Referer") == "" {
			t.Errorf("attribution headers missing: %v", r.Header)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"7"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	got, err := c.Generate(context.Background(), "Rate this answer")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "7" {
		t.Errorf("got %q, want 7", got)
	}
}

func TestGenerateWrapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"auth","code":"401"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateDoesNotRetryRejectedKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single request, got %d", calls)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":{"message":"upstream"}}`))
			return
		}
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := c.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}
