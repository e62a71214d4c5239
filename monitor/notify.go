package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultDiscordAPI    = "https://discord.com/api/v10"
	defaultNotifyTimeout = 10 * time.Second
)

type discordMessage struct {
	Content string `json:"content"`
}

// Notifier delivers a new-filing announcement to a channel.
type Notifier interface {
	Notify(ctx context.Context, f Filing) error
}

// WebhookNotifier posts announcements to a Discord webhook.
type WebhookNotifier struct {
	URL    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &WebhookNotifier{URL: url, client: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) Notify(ctx context.Context, f Filing) error {
	return postMessage(ctx, n.client, n.URL, "", f)
}

// BotNotifier posts announcements to a channel through the Discord bot API.
type BotNotifier struct {
	BaseURL   string
	token     string
	channelID string
	client    *http.Client
}

func NewBotNotifier(token, channelID string, timeout time.Duration) *BotNotifier {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &BotNotifier{
		BaseURL:   defaultDiscordAPI,
		token:     token,
		channelID: channelID,
		client:    &http.Client{Timeout: timeout},
	}
}

func (n *BotNotifier) Notify(ctx context.Context, f Filing) error {
	url := fmt.Sprintf("%s/channels/%s/messages", n.BaseURL, n.channelID)
	return postMessage(ctx, n.client, url, "Bot "+n.token, f)
}

func postMessage(ctx context.Context, client *http.Client, url, auth string, f Filing) error {
	payload, err := json.Marshal(discordMessage{Content: formatMessage(f, time.Now())})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, body)
	}
	return nil
}

func formatMessage(f Filing, ts time.Time) string {
	return fmt.Sprintf("🆕 **%s**\n> %s\nDetected: `%s`", f.ID, f.Description, ts.UTC().Format(time.RFC3339))
}
