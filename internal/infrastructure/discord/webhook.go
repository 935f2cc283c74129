package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const (
	defaultUsername = "Content Publisher"
	// Discord rejects message content above 2000 characters.
	maxContent = 2000
)

// Webhook posts operator alerts to a Discord channel webhook.
type Webhook struct {
	url        string
	username   string
	httpClient *http.Client
}

var _ ports.Alerter = (*Webhook)(nil)

// NewWebhook registers the webhook URL. An empty username falls back to the default.
func NewWebhook(url, username string) *Webhook {
	if username == "" {
		username = defaultUsername
	}
	return &Webhook{
		url:        url,
		username:   username,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type payload struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

// Alert sends a plain-text rendering of the alert.
func (w *Webhook) Alert(ctx context.Context, alert domain.Alert) error {
	if w.url == "" {
		return fmt.Errorf("discord webhook misconfigured")
	}

	body, err := json.Marshal(payload{Content: render(alert), Username: w.username})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func render(a domain.Alert) string {
	var b strings.Builder
	b.WriteString("🚨 **Content Publisher Alert**\n\n")
	if a.Title != "" {
		fmt.Fprintf(&b, "**%s**\n", a.Title)
	}
	fmt.Fprintf(&b, "**Error:** %s\n", a.Kind)
	fmt.Fprintf(&b, "**Message:** %s\n", a.Message)
	if a.URL != "" {
		fmt.Fprintf(&b, "**URL:** %s\n", a.URL)
	}
	if a.Screenshot != "" {
		fmt.Fprintf(&b, "**Screenshot:** `%s`\n", a.Screenshot)
	}
	fmt.Fprintf(&b, "**Time:** %s", a.At.UTC().Format("2006-01-02 15:04:05"))

	out := b.String()
	if r := []rune(out); len(r) > maxContent {
		out = string(r[:maxContent-1]) + "…"
	}
	return out
}
