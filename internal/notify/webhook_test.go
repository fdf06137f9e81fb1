package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"termsense/internal/config"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received atomic.Int32
	var lastEvent Event

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if err := json.NewDecoder(r.Body).Decode(&lastEvent); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: server.URL}})

	event := NewEvent(EventAssistantDetected).WithSession("tab").WithAssistant("claude")
	if err := notifier.Send(context.Background(), event); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if received.Load() != 1 {
		t.Errorf("Received %d requests, want 1", received.Load())
	}
	if lastEvent.Event != EventAssistantDetected {
		t.Errorf("Event type = %q, want %q", lastEvent.Event, EventAssistantDetected)
	}
	if lastEvent.Assistant != "claude" {
		t.Errorf("Assistant = %q, want claude", lastEvent.Assistant)
	}
}

func TestWebhookNotifier_CustomHeaders(t *testing.T) {
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	}})

	if err := notifier.Send(context.Background(), NewEvent(EventSessionStart)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if authHeader != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", authHeader, "Bearer test-token")
	}
}

func TestWebhookNotifier_EventFiltering(t *testing.T) {
	var received atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{
		URL:    server.URL,
		Events: []string{"assistant_state"},
	}})

	notifier.Send(context.Background(), NewEvent(EventCwdChanged))
	if received.Load() != 0 {
		t.Errorf("cwd_changed should have been filtered, but received %d requests", received.Load())
	}

	notifier.Send(context.Background(), NewEvent(EventAssistantState))
	if received.Load() != 1 {
		t.Errorf("assistant_state should have been sent, received %d requests", received.Load())
	}
}

func TestWebhookNotifier_MultipleEndpoints(t *testing.T) {
	var received1, received2 atomic.Int32

	server1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received1.Add(1)
	}))
	defer server1.Close()

	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received2.Add(1)
	}))
	defer server2.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{
		{URL: server1.URL},
		{URL: server2.URL},
	})

	if err := notifier.Send(context.Background(), NewEvent(EventGitInfo)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if received1.Load() != 1 || received2.Load() != 1 {
		t.Errorf("received %d/%d, want 1/1", received1.Load(), received2.Load())
	}
}

func TestWebhookNotifier_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: server.URL, Timeout: 1}})
	notifier.backoff = 10 * time.Millisecond

	if err := notifier.Send(context.Background(), NewEvent(EventAssistantState)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestWebhookNotifier_GivesUp(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: server.URL}})
	notifier.backoff = time.Millisecond

	if err := notifier.Send(context.Background(), NewEvent(EventAssistantState)); err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if attempts.Load() != webhookRetries {
		t.Errorf("Expected %d attempts, got %d", webhookRetries, attempts.Load())
	}
}

func TestWebhookNotifier_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: server.URL}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := notifier.Send(ctx, NewEvent(EventAssistantState)); err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancelled send should not wait for backoff")
	}
}

func TestWebhookNotifier_EmptyConfig(t *testing.T) {
	notifier := NewWebhookNotifier(nil)
	if err := notifier.Send(context.Background(), NewEvent(EventSessionEnd)); err != nil {
		t.Fatalf("Send with no endpoints should not error: %v", err)
	}
}

func TestWebhookNotifier_EndpointCount(t *testing.T) {
	notifier := NewWebhookNotifier([]config.WebhookConfig{
		{URL: "http://example.com/1"},
		{URL: "http://example.com/2"},
		{URL: ""},
	})
	if notifier.EndpointCount() != 2 {
		t.Errorf("EndpointCount = %d, want 2", notifier.EndpointCount())
	}
}

func TestTestWebhook(t *testing.T) {
	var eventType, custom string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		json.NewDecoder(r.Body).Decode(&event)
		eventType = string(event.Event)
		custom = r.Header.Get("X-Custom-Header")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := TestWebhook(context.Background(), server.URL, map[string]string{"X-Custom-Header": "v"}, 5*time.Second)
	if err != nil {
		t.Fatalf("TestWebhook failed: %v", err)
	}
	if eventType != "test" {
		t.Errorf("Event type = %q, want 'test'", eventType)
	}
	if custom != "v" {
		t.Errorf("Custom header = %q, want 'v'", custom)
	}
}

func TestTestWebhook_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := TestWebhook(context.Background(), server.URL, nil, time.Second); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: server.URL}})
	notifier.backoff = time.Millisecond

	err := notifier.Send(context.Background(), NewEvent(EventSessionStart))
	if err == nil {
		t.Fatal("Expected an error for 401")
	}
	if attempts.Load() != 1 {
		t.Errorf("4xx responses should not be retried, got %d attempts", attempts.Load())
	}
}

func TestWebhookNotifier_ReportsEveryFailure(t *testing.T) {
	bad := func(code int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
	}
	s1, s2 := bad(http.StatusNotFound), bad(http.StatusForbidden)
	defer s1.Close()
	defer s2.Close()

	notifier := NewWebhookNotifier([]config.WebhookConfig{{URL: s1.URL}, {URL: s2.URL}})
	err := notifier.Send(context.Background(), NewEvent(EventSessionEnd))
	if err == nil {
		t.Fatal("Expected an error")
	}
	for _, want := range []string{"status 404", "status 403"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&statusError{code: 500}, true},
		{&statusError{code: 502}, true},
		{&statusError{code: 429}, true},
		{&statusError{code: 408}, true},
		{&statusError{code: 400}, false},
		{&statusError{code: 404}, false},
		{errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
