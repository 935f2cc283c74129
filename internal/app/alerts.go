package app

import (
	"context"
	"log/slog"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/usecase"
)

// alertOrLog writes every alert to the service log, then fans it out.
type alertOrLog struct {
	alerts usecase.Alerts
	logger *slog.Logger
}

func (a alertOrLog) Alert(ctx context.Context, alert domain.Alert) error {
	a.logger.Warn("alert", "kind", alert.Kind, "title", alert.Title, "message", alert.Message, "url", alert.URL, "screenshot", alert.Screenshot)
	if len(a.alerts) == 0 {
		return nil
	}
	return a.alerts.Alert(ctx, alert)
}
