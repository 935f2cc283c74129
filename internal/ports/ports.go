package ports

import (
	"context"
	"errors"
	"time"

	"ContentPublisher/internal/domain"
)

// Store errors shared by adapters and use cases.
var (
	ErrNotFound       = errors.New("item not found")
	ErrStatusConflict = errors.New("item status conflict")
	ErrCorruptPair    = errors.New("content and record files are out of sync")
)

// Extractor turns an uploaded file into plain text plus metadata.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, domain.Metadata, error)
}

// Rewriter asks an AI provider to rewrite extracted text into a post.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, meta domain.Metadata) (string, error)
}

// Reviewer produces a structured verdict for a rewritten post.
type Reviewer interface {
	Review(ctx context.Context, text, title string) (domain.ReviewReport, error)
}

// ItemStore is the durable queue of content items.
type ItemStore interface {
	// Enqueue persists a new item together with a copy of its source content.
	Enqueue(ctx context.Context, item domain.ContentItem, content []byte) (domain.ContentItem, error)
	Get(ctx context.Context, id string) (domain.ContentItem, error)
	// Transition moves id from -> to, applying mutate under the item lock.
	// It fails with ErrStatusConflict when the stored status is not from.
	Transition(ctx context.Context, id string, from, to domain.Status, mutate func(*domain.ContentItem)) (domain.ContentItem, error)
	AppendAudit(ctx context.Context, id string, entries ...domain.AuditEntry) error
	// Archive moves a Publishing item to the archive as Published in one logical step.
	Archive(ctx context.Context, id string, mutate func(*domain.ContentItem)) (domain.ContentItem, error)
	List(ctx context.Context, status *domain.Status) ([]domain.ContentItem, error)
	// ContentPath is where the queued copy of the item's content lives.
	ContentPath(item domain.ContentItem) string
}

// Publisher runs one publish attempt on an exclusive automation session.
type Publisher interface {
	Publish(ctx context.Context, executionID, text string) (domain.PublishResult, []domain.AuditEntry, error)
}

// AuditSink records append-only execution events.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// Alerter dispatches out-of-band alerts (Telegram, Discord, etc.).
type Alerter interface {
	Alert(ctx context.Context, alert domain.Alert) error
}

// RequesterNotifier delivers asynchronous pipeline updates back to a requester.
type RequesterNotifier interface {
	NotifyReview(ctx context.Context, requester string, item domain.ContentItem) error
	NotifyOutcome(ctx context.Context, requester string, outcome domain.PublishOutcome) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
