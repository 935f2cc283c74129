package telegram

import (
	"context"
	"fmt"
	"os"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// Notifier sends operator alerts to a Telegram chat via bot API.
type Notifier struct {
	api    *client
	chatID string
}

var _ ports.Alerter = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. apiBase may be empty.
func NewNotifier(apiBase, botToken, chatID string) *Notifier {
	return &Notifier{
		api:    newClient(apiBase, botToken, 5*time.Second),
		chatID: chatID,
	}
}

// Alert posts the alert text and, when the screenshot exists, the screenshot.
func (n *Notifier) Alert(ctx context.Context, alert domain.Alert) error {
	if n.api.token == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	if err := n.api.sendMessage(ctx, n.chatID, RenderAlert(alert)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	if alert.Screenshot == "" {
		return nil
	}
	if _, err := os.Stat(alert.Screenshot); err != nil {
		return nil
	}
	if err := n.api.sendPhoto(ctx, n.chatID, alert.Screenshot, escape(alert.Title)); err != nil {
		return fmt.Errorf("send screenshot: %w", err)
	}
	return nil
}
