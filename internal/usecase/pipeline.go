package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// Command errors surfaced to requesters.
var (
	ErrRequesterBusy     = errors.New("an item is already in progress for this requester")
	ErrNoPendingApproval = errors.New("no item is awaiting approval")
	ErrPublishInFlight   = errors.New("a publish attempt is already running")
	ErrNotRetryable      = errors.New("item cannot be retried")
)

// Limits bounds content sizes and publish attempts.
type Limits struct {
	MinExtractedChars int
	MaxPostChars      int
	Ellipsis          string
	PublishTimeout    time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.MinExtractedChars <= 0 {
		l.MinExtractedChars = 20
	}
	if l.MaxPostChars <= 0 {
		l.MaxPostChars = 1300
	}
	if l.Ellipsis == "" {
		l.Ellipsis = DefaultEllipsis
	}
	if l.PublishTimeout <= 0 {
		l.PublishTimeout = 5 * time.Minute
	}
	return l
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store     ports.ItemStore
	Extractor ports.Extractor
	Rewriter  ports.Rewriter
	Reviewer  ports.Reviewer
	Publisher ports.Publisher
	Alerter   ports.Alerter
	Notifier  ports.RequesterNotifier
	Limits    Limits
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Pipeline moves content items from upload to publication. Publishing runs on
// worker goroutines; results reach requesters through the notifier.
type Pipeline struct {
	store     ports.ItemStore
	extractor ports.Extractor
	rewriter  ports.Rewriter
	reviewer  ports.Reviewer
	publisher ports.Publisher
	alerter   ports.Alerter
	notifier  ports.RequesterNotifier
	limits    Limits
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes operator commands so a slot and its item change together.
	mu    sync.Mutex
	slots *approvals
	wg    sync.WaitGroup
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:     deps.Store,
		extractor: deps.Extractor,
		rewriter:  deps.Rewriter,
		reviewer:  deps.Reviewer,
		publisher: deps.Publisher,
		alerter:   deps.Alerter,
		notifier:  deps.Notifier,
		limits:    deps.Limits.withDefaults(),
		logger:    logger,
		now:       now,
		slots:     newApprovals(now),
	}
}

// RequesterStatus summarizes the queue from one requester's point of view.
type RequesterStatus struct {
	Slot     *PendingApproval
	Item     *domain.ContentItem
	Counts   map[domain.Status]int
	InFlight int
}

// RecoveryReport lists what startup recovery changed.
type RecoveryReport struct {
	Archived    []string
	Interrupted []string
}

// Submit ingests the file at path for requester and runs it up to the
// approval gate. A requester with an item in progress is rejected before
// anything is stored.
func (p *Pipeline) Submit(ctx context.Context, requester, path string) (domain.ContentItem, error) {
	if !p.slots.reserve(requester) {
		return domain.ContentItem{}, ErrRequesterBusy
	}

	item, err := p.ingest(ctx, requester, path)
	if err != nil {
		p.slots.release(requester)
		return item, err
	}
	return item, nil
}

func (p *Pipeline) ingest(ctx context.Context, requester, path string) (domain.ContentItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ContentItem{}, domain.NewError(domain.KindExtraction, "read-source", err)
	}

	start := p.now()
	text, meta, extractErr := p.extractor.Extract(ctx, path)
	item, err := p.store.Enqueue(ctx, domain.ContentItem{
		SourcePath:    path,
		SourceName:    filepath.Base(path),
		Requester:     requester,
		Status:        domain.StatusPending,
		RawMetadata:   meta,
		ExtractedText: text,
		CreatedAt:     start.UTC(),
	}, raw)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("enqueue %s: %w", filepath.Base(path), err)
	}
	p.logger.Info("item received", "id", item.ID, "requester", requester, "chars", meta.CharCount)

	if extractErr != nil {
		return p.fail(ctx, item, "extract", kindOr(extractErr, domain.KindExtraction), extractErr, start)
	}
	if err := p.store.AppendAudit(ctx, item.ID, p.entry("extract", domain.OutcomeSuccess, start,
		fmt.Sprintf("words=%d chars=%d", meta.WordCount, meta.CharCount), nil)); err != nil {
		p.logger.Warn("record audit failed", "id", item.ID, "action", "extract", "error", err)
	}
	return p.process(ctx, item)
}

// process runs validation, rewrite and review for an item in Pending or Error.
func (p *Pipeline) process(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	start := p.now()
	if n := utf8.RuneCountInString(strings.TrimSpace(item.ExtractedText)); n < p.limits.MinExtractedChars {
		cause := fmt.Errorf("extracted text has %d characters, minimum is %d", n, p.limits.MinExtractedChars)
		return p.fail(ctx, item, "validate", domain.KindValidation, cause, start)
	}

	id, from := item.ID, item.Status
	text, meta := item.ExtractedText, item.RawMetadata
	item, err := p.store.Transition(ctx, id, from, domain.StatusProcessing, func(it *domain.ContentItem) {
		it.ExtractedText = text
		it.RawMetadata = meta
		it.RewrittenText = nil
		it.ReviewReport = nil
		it.LastErrorKind = ""
		it.LastError = ""
		it.AppendAudit(p.entry("validate", domain.OutcomeSuccess, start, "", nil))
	})
	if err != nil {
		return item, fmt.Errorf("start processing %s: %w", id, err)
	}

	start = p.now()
	rewritten, err := p.rewriter.Rewrite(ctx, item.ExtractedText, item.RawMetadata)
	if err == nil && strings.TrimSpace(rewritten) == "" {
		err = errors.New("rewrite returned no text")
	}
	if err != nil {
		return p.fail(ctx, item, "rewrite", kindOr(err, domain.KindRewrite), err, start)
	}
	rewritten = strings.TrimSpace(rewritten)
	rewriteDetail := fmt.Sprintf("chars=%d", utf8.RuneCountInString(rewritten))
	if n := utf8.RuneCountInString(rewritten); n > p.limits.MaxPostChars {
		rewritten = Truncate(rewritten, p.limits.MaxPostChars, p.limits.Ellipsis)
		rewriteDetail = fmt.Sprintf("truncated from %d to %d characters", n, utf8.RuneCountInString(rewritten))
	}
	rewriteEntry := p.entry("rewrite", domain.OutcomeSuccess, start, rewriteDetail, nil)

	start = p.now()
	report, err := p.reviewer.Review(ctx, rewritten, item.RawMetadata.Title)
	if err != nil {
		return p.fail(ctx, item, "review", kindOr(err, domain.KindInternal), err, start)
	}
	report.Normalize()
	reviewEntry := p.entry("review", domain.OutcomeSuccess, start,
		fmt.Sprintf("mode=%s recommendation=%s confidence=%.2f", report.Mode, report.Recommendation, report.Confidence), nil)

	item, err = p.store.Transition(ctx, id, domain.StatusProcessing, domain.StatusAwaitingApproval, func(it *domain.ContentItem) {
		it.SetRewritten(rewritten)
		it.ReviewReport = &report
		it.AppendAudit(rewriteEntry, reviewEntry)
	})
	if err != nil {
		return item, fmt.Errorf("await approval %s: %w", id, err)
	}

	p.slots.await(item.Requester, item.ID, rewritten)
	p.logger.Info("item awaiting approval", "id", item.ID, "recommendation", report.Recommendation)
	return item, nil
}

// fail records a processing failure. Items already in Error keep their status.
func (p *Pipeline) fail(ctx context.Context, item domain.ContentItem, step string, kind domain.ErrorKind, cause error, start time.Time) (domain.ContentItem, error) {
	failure := classified(kind, step, cause)
	book := context.WithoutCancel(ctx)
	entry := p.entry(step, domain.OutcomeFailure, start, "", failure)

	var err error
	if item.Status == domain.StatusError {
		err = p.store.AppendAudit(book, item.ID, entry)
	} else {
		item, err = p.store.Transition(book, item.ID, item.Status, domain.StatusError, func(it *domain.ContentItem) {
			it.LastErrorKind = kind
			it.LastError = cause.Error()
			it.AppendAudit(entry)
		})
	}

	p.logger.Warn("item failed", "id", item.ID, "step", step, "kind", kind, "error", cause)
	if domain.Escalate(kind) {
		p.alert(book, kind, "Processing failed", fmt.Sprintf("item %s failed at %s: %v", item.ID, step, cause), domain.Diagnostics{})
	}
	if err != nil {
		return item, errors.Join(failure, fmt.Errorf("record failure: %w", err))
	}
	return item, failure
}

// Approve starts publishing the requester's pending item with the text frozen
// at review time. It returns once the item is Publishing.
func (p *Pipeline) Approve(ctx context.Context, requester string) (domain.ContentItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots.get(requester)
	if !ok || slot.Phase == PhaseProcessing {
		return domain.ContentItem{}, ErrNoPendingApproval
	}
	if slot.Phase == PhasePublishing {
		return domain.ContentItem{}, ErrPublishInFlight
	}
	return p.approveLocked(ctx, slot)
}

func (p *Pipeline) approveLocked(ctx context.Context, slot PendingApproval) (domain.ContentItem, error) {
	start := p.now()
	item, err := p.store.Transition(ctx, slot.ItemID, domain.StatusAwaitingApproval, domain.StatusPublishing, func(it *domain.ContentItem) {
		it.LastErrorKind = ""
		it.LastError = ""
		it.AppendAudit(p.entry("approve", domain.OutcomeSuccess, start, "requester="+slot.Requester, nil))
	})
	if err != nil {
		if errors.Is(err, ports.ErrStatusConflict) || errors.Is(err, ports.ErrNotFound) {
			p.slots.release(slot.Requester)
		}
		return item, fmt.Errorf("approve %s: %w", slot.ItemID, err)
	}
	p.slots.move(slot.Requester, PhaseAwaiting, PhasePublishing)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.publish(item, slot)
	}()
	return item, nil
}

func (p *Pipeline) publish(item domain.ContentItem, slot PendingApproval) {
	ctx, cancel := context.WithTimeout(context.Background(), p.limits.PublishTimeout)
	defer cancel()

	logger := p.logger.With("id", item.ID, "requester", slot.Requester)
	start := p.now()
	executionID := uuid.NewString()
	result, trail, err := p.publisher.Publish(ctx, executionID, slot.Text)
	book := context.WithoutCancel(ctx)

	if err == nil {
		outcome := domain.OutcomeSuccess
		detail := "execution=" + result.ExecutionID
		if result.Warning != "" {
			outcome = domain.OutcomeWarning
			detail += " warning=" + result.Warning
		}
		archived, aErr := p.store.Archive(book, item.ID, func(it *domain.ContentItem) {
			it.AppendAudit(trail...)
			it.AppendAudit(p.entry("publish", outcome, start, detail, nil))
		})
		p.slots.release(slot.Requester)
		if aErr != nil {
			logger.Error("archive after publish failed", "execution", executionID, "error", aErr)
			p.alert(book, domain.KindInternal, "Archive failed",
				fmt.Sprintf("item %s was published (execution %s) but could not be archived: %v", item.ID, executionID, aErr), domain.Diagnostics{})
			p.notify(book, slot.Requester, domain.PublishOutcome{
				ItemID: item.ID, Title: item.RawMetadata.Title, Published: true, Result: result,
				ErrorKind: domain.KindInternal, Error: "published, but the queue record could not be archived",
			})
			return
		}
		logger.Info("item published", "execution", executionID, "confirmed", result.Confirmed)
		p.notify(book, slot.Requester, domain.PublishOutcome{
			ItemID: archived.ID, Title: archived.RawMetadata.Title, Published: true, Result: result,
		})
		return
	}

	kind := domain.KindOf(err)
	_, tErr := p.store.Transition(book, item.ID, domain.StatusPublishing, domain.StatusAwaitingApproval, func(it *domain.ContentItem) {
		it.LastErrorKind = kind
		it.LastError = err.Error()
		it.AppendAudit(trail...)
		it.AppendAudit(p.entry("publish", domain.OutcomeFailure, start, "execution="+executionID, err))
	})
	if tErr != nil {
		logger.Error("record publish failure", "error", tErr)
	}
	p.slots.move(slot.Requester, PhasePublishing, PhaseAwaiting)
	logger.Warn("publish failed", "execution", executionID, "kind", kind, "error", err)

	if domain.Escalate(kind) {
		var captured diagnosed
		diag := domain.Diagnostics{}
		if errors.As(err, &captured) {
			diag = captured.Captured()
		}
		p.alert(book, kind, "Publish failed", fmt.Sprintf("item %s: %v", item.ID, err), diag)
	}
	p.notify(book, slot.Requester, domain.PublishOutcome{
		ItemID:    item.ID,
		Title:     item.RawMetadata.Title,
		Result:    result,
		ErrorKind: kind,
		Error:     domain.Describe(kind),
		Recovery:  publishRecovery(kind),
	})
}

// diagnosed is implemented by errors that carry captured page state.
type diagnosed interface {
	error
	Captured() domain.Diagnostics
}

// Cancel withdraws the requester's item while it awaits approval.
func (p *Pipeline) Cancel(ctx context.Context, requester string) (domain.ContentItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots.get(requester)
	if !ok || slot.Phase == PhaseProcessing {
		return domain.ContentItem{}, ErrNoPendingApproval
	}
	if slot.Phase == PhasePublishing {
		return domain.ContentItem{}, ErrPublishInFlight
	}

	start := p.now()
	item, err := p.store.Transition(ctx, slot.ItemID, domain.StatusAwaitingApproval, domain.StatusCancelled, func(it *domain.ContentItem) {
		it.AppendAudit(p.entry("cancel", domain.OutcomeSuccess, start, "requester="+requester, nil))
	})
	if err != nil && !errors.Is(err, ports.ErrStatusConflict) && !errors.Is(err, ports.ErrNotFound) {
		return item, fmt.Errorf("cancel %s: %w", slot.ItemID, err)
	}
	p.slots.release(requester)
	if err != nil {
		return item, fmt.Errorf("cancel %s: %w", slot.ItemID, err)
	}
	p.logger.Info("item cancelled", "id", item.ID, "requester", requester)
	return item, nil
}

// Retry resumes an item. An Error item is processed again; an item awaiting
// approval is published again when it holds the requester's slot, or re-armed
// for review when its slot was lost in a restart. An empty id picks the
// requester's most recent retryable item.
func (p *Pipeline) Retry(ctx context.Context, requester, id string) (domain.ContentItem, error) {
	p.mu.Lock()
	item, rerun, err := p.retryLocked(ctx, requester, id)
	p.mu.Unlock()
	if !rerun {
		return item, err
	}

	// The slot is reserved as processing, so approve and cancel for this
	// requester are refused until the rerun settles.
	item, err = p.reprocess(ctx, item)
	if err != nil {
		p.slots.release(requester)
	}
	return item, err
}

// retryLocked resolves the retry target under p.mu. rerun reports that the
// item failed processing and the requester's slot is now reserved for it.
func (p *Pipeline) retryLocked(ctx context.Context, requester, id string) (domain.ContentItem, bool, error) {
	slot, hasSlot := p.slots.get(requester)
	if id == "" {
		found, err := p.retryCandidate(ctx, requester, slot, hasSlot)
		if err != nil {
			return domain.ContentItem{}, false, err
		}
		id = found
	}

	item, err := p.store.Get(ctx, id)
	if err != nil {
		return domain.ContentItem{}, false, fmt.Errorf("retry %s: %w", id, err)
	}
	if item.Requester != requester {
		return item, false, fmt.Errorf("%w: %s belongs to another requester", ErrNotRetryable, id)
	}

	switch item.Status {
	case domain.StatusError:
		if !domain.Retryable(item.LastErrorKind) {
			return item, false, fmt.Errorf("%w: %s", ErrNotRetryable, domain.Describe(item.LastErrorKind))
		}
		if !p.slots.reserve(requester) {
			return item, false, ErrRequesterBusy
		}
		return item, true, nil

	case domain.StatusAwaitingApproval:
		switch {
		case hasSlot && slot.ItemID == id && slot.Phase == PhaseAwaiting:
			item, err = p.approveLocked(ctx, slot)
			return item, false, err
		case hasSlot && slot.Phase == PhasePublishing:
			return item, false, ErrPublishInFlight
		case hasSlot:
			return item, false, ErrRequesterBusy
		}
		start := p.now()
		if err := p.store.AppendAudit(ctx, id, p.entry("rearm", domain.OutcomeSuccess, start, "approval slot restored for review", nil)); err != nil {
			return item, false, fmt.Errorf("retry %s: %w", id, err)
		}
		p.slots.await(requester, id, item.Rewritten())
		return item, false, nil

	case domain.StatusProcessing, domain.StatusPublishing, domain.StatusPending:
		return item, false, ErrPublishInFlight

	default:
		return item, false, fmt.Errorf("%w: status %s", ErrNotRetryable, item.Status)
	}
}

func (p *Pipeline) retryCandidate(ctx context.Context, requester string, slot PendingApproval, hasSlot bool) (string, error) {
	if hasSlot && slot.ItemID != "" {
		return slot.ItemID, nil
	}
	items, err := p.store.List(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("list items: %w", err)
	}
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if it.Requester != requester {
			continue
		}
		if it.Status == domain.StatusError || it.Status == domain.StatusAwaitingApproval {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%w: nothing to retry", ErrNotRetryable)
}

// reprocess re-extracts when the first extraction failed, then runs the item
// through validation, rewrite and review again. Extraction reads the queued
// copy; the upload or inbox file may already be gone.
func (p *Pipeline) reprocess(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	if item.LastErrorKind == domain.KindExtraction || strings.TrimSpace(item.ExtractedText) == "" {
		start := p.now()
		text, meta, err := p.extractor.Extract(ctx, p.store.ContentPath(item))
		if err != nil {
			return p.fail(ctx, item, "extract", kindOr(err, domain.KindExtraction), err, start)
		}
		item.ExtractedText = text
		item.RawMetadata = meta
	}
	return p.process(ctx, item)
}

// Busy reports whether requester holds a slot, so a new upload would be refused.
func (p *Pipeline) Busy(requester string) bool {
	_, ok := p.slots.get(requester)
	return ok
}

// Status reports the requester's slot, their latest item and queue counts.
func (p *Pipeline) Status(ctx context.Context, requester string) (RequesterStatus, error) {
	items, err := p.store.List(ctx, nil)
	if err != nil {
		return RequesterStatus{}, fmt.Errorf("list items: %w", err)
	}

	status := RequesterStatus{Counts: make(map[domain.Status]int), InFlight: p.slots.count()}
	for i := range items {
		status.Counts[items[i].Status]++
		if items[i].Requester == requester {
			status.Item = &items[i]
		}
	}
	if slot, ok := p.slots.get(requester); ok {
		status.Slot = &slot
		for i := range items {
			if items[i].ID == slot.ItemID {
				status.Item = &items[i]
			}
		}
	}
	return status, nil
}

// Items lists stored items, optionally filtered by requester and status.
func (p *Pipeline) Items(ctx context.Context, requester string, status *domain.Status) ([]domain.ContentItem, error) {
	items, err := p.store.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if requester == "" {
		return items, nil
	}
	out := items[:0]
	for _, it := range items {
		if it.Requester == requester {
			out = append(out, it)
		}
	}
	return out, nil
}

// Recover finishes interrupted archives and moves items that were mid-step
// when the process stopped to Error(Interrupted). Approval slots are not
// restored; requesters re-arm them with Retry.
func (p *Pipeline) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	if r, ok := p.store.(interface {
		Recover(context.Context) ([]string, error)
	}); ok {
		archived, err := r.Recover(ctx)
		report.Archived = archived
		if err != nil {
			return report, fmt.Errorf("recover archives: %w", err)
		}
	}

	var publishing []string
	for _, status := range []domain.Status{domain.StatusProcessing, domain.StatusPublishing} {
		s := status
		items, err := p.store.List(ctx, &s)
		if err != nil {
			return report, fmt.Errorf("list %s: %w", status, err)
		}
		for _, item := range items {
			start := p.now()
			cause := fmt.Errorf("process stopped while item was %s", status)
			_, err := p.store.Transition(ctx, item.ID, status, domain.StatusError, func(it *domain.ContentItem) {
				it.LastErrorKind = domain.KindInterrupted
				it.LastError = cause.Error()
				it.AppendAudit(p.entry("recover", domain.OutcomeFailure, start, "", classified(domain.KindInterrupted, "recover", cause)))
			})
			if err != nil {
				return report, fmt.Errorf("recover %s: %w", item.ID, err)
			}
			report.Interrupted = append(report.Interrupted, item.ID)
			if status == domain.StatusPublishing {
				publishing = append(publishing, item.ID)
			}
		}
	}

	if len(publishing) > 0 {
		p.alert(ctx, domain.KindInterrupted, "Publish interrupted",
			fmt.Sprintf("items %s stopped while publishing; check the platform before retrying to avoid duplicate posts",
				strings.Join(publishing, ", ")), domain.Diagnostics{})
	}
	if len(report.Archived) > 0 || len(report.Interrupted) > 0 {
		p.logger.Info("recovery finished", "archived", len(report.Archived), "interrupted", len(report.Interrupted))
	}
	return report, nil
}

// Wait blocks until in-flight publish workers finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// RecoveryCommands lists the operator commands that make sense for item.
func RecoveryCommands(item domain.ContentItem) []string {
	switch item.Status {
	case domain.StatusAwaitingApproval:
		if item.LastErrorKind != "" {
			return publishRecovery(item.LastErrorKind)
		}
		return []string{"/approve", "/cancel"}
	case domain.StatusError:
		if domain.Retryable(item.LastErrorKind) {
			return []string{"/retry " + item.ID}
		}
		return []string{"send a corrected file"}
	default:
		return nil
	}
}

func publishRecovery(kind domain.ErrorKind) []string {
	if kind == domain.KindVerificationRequired {
		return []string{"complete the verification in a browser, then /retry", "/cancel"}
	}
	return []string{"/retry", "/cancel"}
}

func (p *Pipeline) entry(action, outcome string, start time.Time, detail string, err error) domain.AuditEntry {
	entry := domain.AuditEntry{
		Timestamp:  p.now().UTC(),
		Action:     action,
		Outcome:    outcome,
		Detail:     detail,
		DurationMs: p.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.ErrorKind = domain.KindOf(err)
		entry.ErrorDetail = err.Error()
	}
	return entry
}

func (p *Pipeline) alert(ctx context.Context, kind domain.ErrorKind, title, message string, diag domain.Diagnostics) {
	if p.alerter == nil {
		return
	}
	err := p.alerter.Alert(ctx, domain.Alert{
		Kind:       kind,
		Title:      title,
		Message:    message,
		URL:        diag.URL,
		Screenshot: diag.Screenshot,
		At:         p.now().UTC(),
	})
	if err != nil {
		p.logger.Error("alert dispatch failed", "kind", kind, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, requester string, outcome domain.PublishOutcome) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyOutcome(ctx, requester, outcome); err != nil {
		p.logger.Error("notify requester failed", "requester", requester, "error", err)
	}
}

func classified(kind domain.ErrorKind, step string, cause error) error {
	var existing *domain.Error
	if errors.As(cause, &existing) && existing.Kind == kind {
		return cause
	}
	return domain.NewError(kind, step, cause)
}

// kindOr classifies err, using fallback for errors that carry no kind.
func kindOr(err error, fallback domain.ErrorKind) domain.ErrorKind {
	var existing *domain.Error
	if errors.As(err, &existing) {
		return existing.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.KindInterrupted
	}
	return fallback
}
