package review

import (
	"context"
	"log/slog"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// Fallback prefers the AI reviewer and drops to local rules when it is
// missing or fails. Falling back is policy, so Review never returns an error
// while the local reviewer is set.
type Fallback struct {
	primary ports.Reviewer
	local   ports.Reviewer
	logger  *slog.Logger
}

var _ ports.Reviewer = (*Fallback)(nil)

// NewFallback wires the two reviewers. primary may be nil.
func NewFallback(primary, local ports.Reviewer, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, local: local, logger: logger.With("component", "review")}
}

func (f *Fallback) Review(ctx context.Context, text, title string) (domain.ReviewReport, error) {
	if f.primary != nil {
		report, err := f.primary.Review(ctx, text, title)
		if err == nil {
			report.Normalize()
			return report, nil
		}
		if ctx.Err() != nil {
			return domain.ReviewReport{}, ctx.Err()
		}
		f.logger.Warn("ai review unavailable, using local rules", "error", err)
	}
	return f.local.Review(ctx, text, title)
}
