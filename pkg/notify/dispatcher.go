package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	maxAttempts    = 3
	baseBackoff    = 2 * time.Second
	maxBackoff     = 10 * time.Second
	requestTimeout = 10 * time.Second
)

// Dispatcher delivers events to a webhook URL through a configured
// renderer, retrying transient failures with exponential backoff.
type Dispatcher struct {
	url      string
	secret   string
	renderer Renderer
	dryRun   bool
	client   *http.Client
	logger   *slog.Logger

	// sleep is swappable so retry timing is testable.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. If secret is non-empty, request
// bodies are signed with HMAC-SHA256. In dry-run mode the full render
// path executes but nothing is sent.
func NewDispatcher(url, secret string, renderer Renderer, dryRun bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		url:      url,
		secret:   secret,
		renderer: renderer,
		dryRun:   dryRun,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Send delivers one event. Every outcome, including exhausted retries
// and dry-run suppression, is returned as a NotificationEvent record.
func (d *Dispatcher) Send(ctx context.Context, event Event) NotificationEvent {
	record := NotificationEvent{
		ID:      uuid.New().String(),
		Kind:    event.Kind,
		Subject: event.Subject,
		Message: event.Text(),
		SentAt:  time.Now().UTC(),
	}

	body, err := d.renderer.Render(event)
	if err != nil {
		record.Status = StatusFailed
		record.Error = fmt.Sprintf("render payload: %v", err)
		return record
	}

	if d.dryRun {
		d.logger.Info("dry run, skipping notification",
			"kind", event.Kind, "subject", event.Subject)
		record.Status = StatusSuppressed
		return record
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record.Attempts = attempt

		retryable, err := d.post(ctx, body)
		if err == nil {
			record.Status = StatusSent
			d.logger.Info("notification sent",
				"kind", event.Kind, "subject", event.Subject,
				"renderer", d.renderer.Name(), "attempts", attempt)
			return record
		}
		lastErr = err

		if !retryable || attempt == maxAttempts {
			break
		}

		backoff := baseBackoff << (attempt - 1)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		d.logger.Warn("notification send failed, retrying",
			"kind", event.Kind, "subject", event.Subject,
			"attempt", attempt, "backoff", backoff, "error", err)
		if err := d.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	record.Status = StatusFailed
	record.Error = lastErr.Error()
	d.logger.Error("notification delivery failed",
		"kind", event.Kind, "subject", event.Subject,
		"attempts", record.Attempts, "error", lastErr)
	return record
}

// post performs one delivery attempt. The bool reports whether the
// failure is transient: transport errors and 5xx retry, 4xx does not.
func (d *Dispatcher) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "balance-alert/1.0")

	if d.secret != "" {
		mac := hmac.New(sha256.New, []byte(d.secret))
		mac.Write(body)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
