package openai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, quietLogger())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, quietLogger())
	if c.cfg.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("base url = %q", c.cfg.BaseURL)
	}
	if c.cfg.Model == "" {
		t.Fatal("expected a default model")
	}
	if c.cfg.Timeout <= 0 {
		t.Fatalf("timeout = %v", c.cfg.Timeout)
	}
	if c.cfg.Strict {
		t.Fatal("strict mode must be off by default")
	}

	t.Run("strict survives construction", func(t *testing.T) {
		c := NewClient(Config{APIKey: "k", Strict: true}, quietLogger())
		if !c.cfg.Strict {
			t.Fatal("Strict: true was reset by NewClient")
		}
	})
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	raw, err := c.post(context.Background(), srv.URL, map[string]any{"model": "m"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("body = %q", raw)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (two 5xx retries then success)", got)
	}
}

func TestPostGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.post(context.Background(), srv.URL, map[string]any{"model": "m"}); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if got := calls.Load(); got != maxPostAttempts {
		t.Fatalf("calls = %d, want %d", got, maxPostAttempts)
	}
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.post(context.Background(), srv.URL, map[string]any{"model": "m"}); err == nil {
		t.Fatal("expected an error on 400")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (4xx is not retryable)", got)
	}
}
