package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/offlinekit/resilience"
)

func TestAskClient_Replay(t *testing.T) {
	var gotKey, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ask" {
			http.Error(w, "unexpected", http.StatusMethodNotAllowed)
			return
		}
		gotKey = r.Header.Get("Idempotency-Key")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "Sow wheat in November."})
	}))
	defer srv.Close()

	c, err := NewAskClient(srv.URL + "/api/ask")
	if err != nil {
		t.Fatalf("NewAskClient() error = %v", err)
	}
	answer, err := c.Replay(context.Background(), Item{ID: "item-7", Payload: json.RawMessage(`{"question":"When to sow wheat?"}`)})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if answer != "Sow wheat in November." {
		t.Errorf("answer = %q", answer)
	}
	if gotKey != "item-7" || gotType != "application/json" || gotBody != `{"question":"When to sow wheat?"}` {
		t.Errorf("request key=%q type=%q body=%q", gotKey, gotType, gotBody)
	}
}

func TestAskClient_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     error
		wantOffline bool
		wantRetry   bool
	}{
		{
			name:    "client error",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "bad", http.StatusBadRequest) },
			wantErr: ErrRejected,
		},
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, r *http.Request) { http.Error(w, "down", http.StatusBadGateway) },
			wantErr:   ErrRejected,
			wantRetry: true,
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "<html>") },
			wantErr: ErrBadReply,
		},
		{
			name:    "missing answer",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"result":"x"}`) },
			wantErr: ErrBadReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, _ := NewAskClient(srv.URL)
			_, err := c.Replay(context.Background(), Item{ID: "x", Payload: json.RawMessage(`{}`)})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Replay() error = %v, want %v", err, tt.wantErr)
			}
			if Offline(err) != tt.wantOffline {
				t.Errorf("Offline() = %v, want %v", Offline(err), tt.wantOffline)
			}
			if Retryable(err) != tt.wantRetry {
				t.Errorf("Retryable() = %v, want %v", Retryable(err), tt.wantRetry)
			}
		})
	}
}

func TestAskClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, _ := NewAskClient(addr + "/api/ask")
	_, err := c.Replay(context.Background(), Item{ID: "x", Payload: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrUnreachable) || !Offline(err) || !Retryable(err) {
		t.Errorf("Replay() error = %v, want unreachable", err)
	}
}

func TestAskClient_RetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"answer":"ok"}`)
	}))
	defer srv.Close()

	exec := resilience.NewExecutor(resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf:      Retryable,
	})))
	c, _ := NewAskClient(srv.URL, WithExecutor(exec))

	answer, err := c.Replay(context.Background(), Item{ID: "x", Payload: json.RawMessage(`{}`)})
	if err != nil || answer != "ok" {
		t.Fatalf("Replay() = %q, %v", answer, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNewAskClient_RejectsRelative(t *testing.T) {
	if _, err := NewAskClient("/api/ask"); err == nil {
		t.Error("NewAskClient(relative) error = nil")
	}
}
