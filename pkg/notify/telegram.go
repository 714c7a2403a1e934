package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opsgrove/stockwatch/pkg/model"
)

// DefaultTelegramAPI is the production Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// mediaGroupLimit is the Bot API cap on attachments per sendMediaGroup call.
const mediaGroupLimit = 10

// TelegramTransport delivers messages through the Telegram Bot API.
// Recipients are chat IDs.
type TelegramTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegramTransport creates a Telegram transport. baseURL is normally
// DefaultTelegramAPI; tests point it at a local server.
func NewTelegramTransport(baseURL, token string) *TelegramTransport {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramTransport{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) SendText(ctx context.Context, recipient, text string) error {
	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id": recipient,
		"text":    text,
	})
}

func (t *TelegramTransport) SendMedia(ctx context.Context, recipient string, media []model.BulkStockMedia) error {
	if len(media) == 0 {
		return nil
	}
	if len(media) > mediaGroupLimit {
		media = media[:mediaGroupLimit]
	}

	group := make([]map[string]string, 0, len(media))
	for _, m := range media {
		group = append(group, map[string]string{
			"type":  string(m.Kind),
			"media": m.FileID,
		})
	}

	return t.call(ctx, "sendMediaGroup", map[string]any{
		"chat_id": recipient,
		"media":   group,
	})
}

func (t *TelegramTransport) call(ctx context.Context, method string, params map[string]any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Description string `json:"description"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Description != "" {
			return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, apiErr.Description)
		}
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	return nil
}
