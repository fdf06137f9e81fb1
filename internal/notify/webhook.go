package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"termsense/internal/config"
	"termsense/internal/logging"
)

const (
	userAgent      = "termsense/1.0"
	webhookTimeout = 10 * time.Second
	webhookRetries = 3
)

// WebhookNotifier POSTs events to HTTP endpoints.
type WebhookNotifier struct {
	webhooks []webhookEndpoint
	client   *http.Client
	backoff  time.Duration
}

type webhookEndpoint struct {
	url     string
	events  eventSet
	headers map[string]string
	timeout time.Duration
}

// NewWebhookNotifier creates a notifier for the configured endpoints. Entries without a URL
// are skipped.
func NewWebhookNotifier(configs []config.WebhookConfig) *WebhookNotifier {
	endpoints := make([]webhookEndpoint, 0, len(configs))

	for _, cfg := range configs {
		if cfg.URL == "" {
			continue
		}

		endpoint := webhookEndpoint{
			url:     cfg.URL,
			events:  newEventSet(cfg.Events),
			headers: cfg.Headers,
			timeout: webhookTimeout,
		}
		if cfg.Timeout > 0 {
			endpoint.timeout = time.Duration(cfg.Timeout) * time.Second
		}

		endpoints = append(endpoints, endpoint)
	}

	return &WebhookNotifier{
		webhooks: endpoints,
		client:   &http.Client{Timeout: 30 * time.Second},
		backoff:  time.Second,
	}
}

// Name returns the notifier type.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// EndpointCount returns the number of configured webhook endpoints.
func (w *WebhookNotifier) EndpointCount() int {
	return len(w.webhooks)
}

// Send delivers the event to every endpoint whose filter accepts it. A failing endpoint
// doesn't prevent delivery to the rest; their errors are joined.
func (w *WebhookNotifier) Send(ctx context.Context, event *Event) error {
	if len(w.webhooks) == 0 {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var errs []error
	for _, endpoint := range w.webhooks {
		if !endpoint.events.allows(event.Event) {
			continue
		}
		if err := w.sendToEndpoint(ctx, endpoint, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// statusError is a non-2xx/3xx webhook response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.code)
}

// retryable reports whether a failed delivery is worth repeating. Client errors other than
// 408 and 429 will fail the same way again.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.code == http.StatusRequestTimeout, se.code == http.StatusTooManyRequests:
		return true
	case se.code < 500:
		return false
	}
	return true
}

// sendToEndpoint retries with exponential backoff: backoff, 2*backoff.
func (w *WebhookNotifier) sendToEndpoint(ctx context.Context, endpoint webhookEndpoint, data []byte) error {
	var err error
	for attempt := 1; attempt <= webhookRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff << (attempt - 2)):
			}
		}

		err = post(ctx, w.client, endpoint.url, endpoint.headers, endpoint.timeout, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return fmt.Errorf("webhook %s: %w", endpoint.url, err)
		}
		logging.NewLogger("notify").WithFields(logrus.Fields{"url": endpoint.url, "attempt": attempt}).WithError(err).Debug("webhook delivery failed")
	}

	return fmt.Errorf("webhook %s failed after %d attempts: %w", endpoint.url, webhookRetries, err)
}

// post performs a single JSON POST.
func post(ctx context.Context, client *http.Client, url string, headers map[string]string, timeout time.Duration, data []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// TestWebhook sends a single test event to url without retrying.
func TestWebhook(ctx context.Context, url string, headers map[string]string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = webhookTimeout
	}

	event := NewEvent(EventTest).
		WithTitle("Test Notification").
		WithMessage("Webhook configuration is working!")

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return post(ctx, &http.Client{Timeout: timeout}, url, headers, timeout, data)
}
