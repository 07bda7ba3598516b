package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/ironsheep/screenwatch/internal/change"
)

// analysisPayload is the data of an "analysis" envelope.
type analysisPayload struct {
	Event change.Event `json:"event"`
	Text  string       `json:"text"`
}

// Webhook POSTs accepted changes to an analysis endpoint as
// {"type":"analysis","data":{"event":...,"text":...}}. It implements
// Trigger.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	minChars   int
	maxChars   int
	logger     *slog.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries on failure.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookTimeout sets the per-request timeout.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.client.Timeout = d }
}

// WithWebhookBackoff sets the base retry delay. Attempt n waits base<<(n-1).
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookTextLimits sets the minimum text length that triggers analysis
// and the length the forwarded text is truncated to, both in runes. Zero
// disables the respective limit.
func WithWebhookTextLimits(minChars, maxChars int) WebhookOption {
	return func(w *Webhook) {
		w.minChars = minChars
		w.maxChars = maxChars
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a webhook trigger.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Trigger(ctx context.Context, ev change.Event) error {
	n := utf8.RuneCountInString(ev.Text)
	if n < w.minChars {
		w.logger.Debug("sink: webhook skipped, text too short", "region", ev.RegionID, "chars", n)
		return nil
	}
	text := ev.Text
	if w.maxChars > 0 && n > w.maxChars {
		text = string([]rune(text)[:w.maxChars])
	}
	ev.Text = ""

	body, err := json.Marshal(envelope{Type: "analysis", Data: analysisPayload{Event: ev, Text: text}})
	if err != nil {
		return fmt.Errorf("sink: webhook marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			delay := w.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		w.logger.Debug("sink: webhook attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("sink: webhook failed after %d attempts: %w", w.maxRetries+1, lastErr)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
