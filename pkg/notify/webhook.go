package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsgrove/stockwatch/pkg/model"
)

// WebhookTransport delivers alerts to a generic HTTP webhook, typically an
// admin channel integration. Recipients travel inside the payload so one
// endpoint can fan out to multiple targets.
type WebhookTransport struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookTransport creates a webhook transport.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookTransport(url, secret string) *WebhookTransport {
	return &WebhookTransport{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookTransport) Name() string { return "webhook" }

func (w *WebhookTransport) SendText(ctx context.Context, recipient, text string) error {
	return w.post(ctx, webhookPayload{
		Event:     "low_stock_alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Recipient: recipient,
		Text:      text,
	})
}

func (w *WebhookTransport) SendMedia(ctx context.Context, recipient string, media []model.BulkStockMedia) error {
	if len(media) == 0 {
		return nil
	}
	return w.post(ctx, webhookPayload{
		Event:     "low_stock_alert_media",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Recipient: recipient,
		Media:     media,
	})
}

func (w *WebhookTransport) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stockwatch/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Recipient string                 `json:"recipient"`
	Text      string                 `json:"text,omitempty"`
	Media     []model.BulkStockMedia `json:"media,omitempty"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
