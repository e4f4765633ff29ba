package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Pixelanime-Signature"
	HeaderTimestamp = "X-Pixelanime-Timestamp"
	HeaderEvent     = "X-Pixelanime-Event"
	HeaderEventID   = "X-Pixelanime-Event-Id"
)

// RetryPolicy doubles the wait after every failed attempt, capped at Max.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	p.Attempts = max(p.Attempts, 1)
	if p.Initial <= 0 {
		p.Initial = time.Second
	}
	p.Max = max(p.Max, p.Initial)
	return p
}

// wait returns the pause after the given failed attempt (1-based).
func (p RetryPolicy) wait(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	return min(d, p.Max)
}

type WebhookConfig struct {
	Endpoint      string
	SigningSecret string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	Retry   RetryPolicy
}

// WebhookPublisher POSTs each event as signed JSON to one endpoint.
type WebhookPublisher struct {
	endpoint string
	secret   []byte
	retry    RetryPolicy
	client   *http.Client
	now      func() time.Time
}

func NewWebhookPublisher(cfg WebhookConfig) (*WebhookPublisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPublisher{
		endpoint: endpoint,
		secret:   []byte(cfg.SigningSecret),
		retry:    cfg.Retry.withDefaults(),
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}, nil
}

// deliveryError is a failed attempt. Only transport failures, 408, 429 and
// 5xx responses are worth another attempt.
type deliveryError struct {
	status int
	err    error
}

func (e *deliveryError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("webhook returned status=%d", e.status)
}

func (e *deliveryError) Unwrap() error { return e.err }

func (e *deliveryError) retryable() bool {
	switch {
	case e.err != nil:
		return true
	case e.status == http.StatusRequestTimeout, e.status == http.StatusTooManyRequests:
		return true
	default:
		return e.status >= 500
	}
}

func (w *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	timestamp := strconv.FormatInt(w.now().UTC().Unix(), 10)
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(HeaderTimestamp, timestamp)
	header.Set(HeaderSignature, signWith(w.secret, timestamp, body))
	header.Set(HeaderEvent, event.Type)
	header.Set(HeaderEventID, event.ID)

	for attempt := 1; ; attempt++ {
		derr := w.post(ctx, header, body)
		if derr == nil {
			return nil
		}
		if !derr.retryable() {
			return fmt.Errorf("webhook rejected event %s: %w", event.ID, derr)
		}
		if attempt >= w.retry.Attempts {
			return fmt.Errorf("webhook delivery failed after %d attempts: %w", attempt, derr)
		}

		pause := time.NewTimer(w.retry.wait(attempt))
		select {
		case <-ctx.Done():
			pause.Stop()
			return fmt.Errorf("webhook delivery abandoned: %w", ctx.Err())
		case <-pause.C:
		}
	}
}

func (w *WebhookPublisher) post(ctx context.Context, header http.Header, body []byte) *deliveryError {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return &deliveryError{err: err}
	}
	req.Header = header.Clone()

	resp, err := w.client.Do(req)
	if err != nil {
		return &deliveryError{err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	return &deliveryError{status: resp.StatusCode}
}

func (w *WebhookPublisher) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// Sign returns the signature header value receivers recompute to verify a
// delivery: "sha256=" + hex(HMAC-SHA256(secret, timestamp + "." + body)).
func Sign(secret, timestamp string, body []byte) string {
	return signWith([]byte(secret), timestamp, body)
}

func signWith(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
