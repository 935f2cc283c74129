package usecase

import (
	"context"
	"errors"
	"fmt"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// Alerts fans an alert out to every channel. One failing channel does not
// stop the others.
type Alerts []ports.Alerter

var _ ports.Alerter = Alerts(nil)

// Alert delivers to all channels and joins their errors.
func (a Alerts) Alert(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for i, ch := range a {
		if ch == nil {
			continue
		}
		if err := ch.Alert(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("alert channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
