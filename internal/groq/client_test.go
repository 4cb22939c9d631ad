package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestGenerateReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req groqRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "What is a mutex?" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"A lock."}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := c.Generate(context.Background(), "What is a mutex?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "A lock." {
		t.Errorf("got %q", got)
	}
}

func TestGenerateReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Generate(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status 429 in error, got %v", err)
	}
}
