package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/infrastructure/audit"
	"ContentPublisher/internal/ports"
	"ContentPublisher/internal/usecase"
)

// Pipeline is the subset of the orchestrator the bot drives.
type Pipeline interface {
	Submit(ctx context.Context, requester, path string) (domain.ContentItem, error)
	Approve(ctx context.Context, requester string) (domain.ContentItem, error)
	Cancel(ctx context.Context, requester string) (domain.ContentItem, error)
	Retry(ctx context.Context, requester, id string) (domain.ContentItem, error)
	// Busy reports whether requester already has an item in progress.
	Busy(requester string) bool
	Status(ctx context.Context, requester string) (usecase.RequesterStatus, error)
	Items(ctx context.Context, requester string, status *domain.Status) ([]domain.ContentItem, error)
}

// StatsSource aggregates audit events.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (audit.Stats, error)
}

// BotConfig controls the chat front end.
type BotConfig struct {
	Token              string
	APIBase            string
	AuthorizedUsers    []int64
	MaxUploadBytes     int64
	DownloadDir        string
	PollTimeout        time.Duration
	RewriteConfigured  bool
	PlatformConfigured bool

	// Accepts reports whether a file name has a supported extension.
	Accepts func(name string) bool
}

// Bot is a long-polling Telegram front end. The chat id is the requester.
type Bot struct {
	api      *client
	cfg      BotConfig
	pipeline Pipeline
	stats    StatsSource
	logger   *slog.Logger
	allowed  map[int64]struct{}
	// jobs tracks uploads and retries running off the update loop.
	jobs     sync.WaitGroup
}

var _ ports.RequesterNotifier = (*Bot)(nil)

// NewBot wires the front end to the pipeline. pipeline may be nil and
// attached later, before Run.
func NewBot(cfg BotConfig, pipeline Pipeline, stats StatsSource, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	allowed := make(map[int64]struct{}, len(cfg.AuthorizedUsers))
	for _, id := range cfg.AuthorizedUsers {
		allowed[id] = struct{}{}
	}
	return &Bot{
		api:      newClient(cfg.APIBase, cfg.Token, 10*time.Second),
		cfg:      cfg,
		pipeline: pipeline,
		stats:    stats,
		logger:   logger.With("component", "telegram.bot"),
		allowed:  allowed,
	}
}

// Attach sets the pipeline commands are routed to. The pipeline also uses the
// bot as its notifier, so one of them is built first.
func (b *Bot) Attach(pipeline Pipeline) {
	b.pipeline = pipeline
}

// Run polls for updates until ctx is cancelled, then waits for uploads and
// retries in progress.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Token == "" {
		return errors.New("telegram bot token is not configured")
	}
	if b.pipeline == nil {
		return errors.New("telegram bot has no pipeline attached")
	}
	if err := os.MkdirAll(b.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	defer b.jobs.Wait()

	b.logger.Info("bot polling started", "authorized", len(b.allowed))
	var offset int64
	backoff := time.Second
	for {
		updates, err := b.api.getUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("get updates failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < time.Minute {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message != nil {
				b.handle(ctx, u.Message)
			}
		}
	}
}

func (b *Bot) authorized(m *message) bool {
	if len(b.allowed) == 0 {
		return true
	}
	if m.From == nil {
		return false
	}
	_, ok := b.allowed[m.From.ID]
	return ok
}

func (b *Bot) handle(ctx context.Context, m *message) {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	if !b.authorized(m) {
		b.logger.Warn("unauthorized user", "chat", chatID)
		b.reply(ctx, chatID, "❌ User not authorized")
		return
	}

	if m.Document != nil {
		b.handleDocument(ctx, chatID, m.Document)
		return
	}

	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		b.reply(ctx, chatID, "📄 Send a file to process. Use /start for instructions.")
		return
	}

	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	args := fields[1:]

	switch command {
	case "/start", "/help":
		b.reply(ctx, chatID, helpText)
	case "/status":
		status, err := b.pipeline.Status(ctx, chatID)
		if err != nil {
			b.replyErr(ctx, chatID, err)
			return
		}
		b.reply(ctx, chatID, RenderStatus(status, b.cfg.RewriteConfigured, b.cfg.PlatformConfigured))
	case "/stats":
		b.handleStats(ctx, chatID)
	case "/list":
		b.handleList(ctx, chatID, args)
	case "/approve":
		item, err := b.pipeline.Approve(ctx, chatID)
		if err != nil {
			b.replyErr(ctx, chatID, err)
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("🚀 Publishing <code>%s</code>. I will report the result.", escape(item.ID)))
	case "/cancel":
		item, err := b.pipeline.Cancel(ctx, chatID)
		if err != nil {
			b.replyErr(ctx, chatID, err)
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("🗑 Cancelled <code>%s</code>. The file stays in the queue for inspection.", escape(item.ID)))
	case "/retry":
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		// A retry may rewrite and review again; keep the update loop responsive.
		b.jobs.Add(1)
		go func() {
			defer b.jobs.Done()
			b.handleRetry(ctx, chatID, id)
		}()
	default:
		b.reply(ctx, chatID, "❓ Unknown command. Use /start for the list.")
	}
}

func (b *Bot) handleDocument(ctx context.Context, chatID string, doc *document) {
	name := filepath.Base(doc.FileName)
	if b.cfg.Accepts != nil && !b.cfg.Accepts(name) {
		b.reply(ctx, chatID, "❌ Unsupported file type. Send .html, .htm, .txt or .md.")
		return
	}
	if doc.FileSize > b.cfg.MaxUploadBytes {
		b.reply(ctx, chatID, fmt.Sprintf("❌ File too large. Maximum: %d MB", b.cfg.MaxUploadBytes>>20))
		return
	}

	if b.pipeline.Busy(chatID) {
		b.replyErr(ctx, chatID, usecase.ErrRequesterBusy)
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf("📥 Received <code>%s</code>, processing…", escape(name)))

	// Rewrite and review take seconds; keep the update loop responsive.
	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()

		dst := filepath.Join(b.cfg.DownloadDir, uuid.NewString()+"_"+name)
		// The queue keeps its own copy of the content.
		defer b.removeDownload(dst)
		if err := b.api.download(ctx, doc.FileID, dst, b.cfg.MaxUploadBytes); err != nil {
			b.logger.Warn("download failed", "chat", chatID, "file", name, "error", err)
			b.replyErr(ctx, chatID, err)
			return
		}

		item, err := b.pipeline.Submit(ctx, chatID, dst)
		if err != nil {
			if commandError(err) || item.ID == "" {
				b.replyErr(ctx, chatID, err)
				return
			}
			b.reply(ctx, chatID, RenderFailure(item, err))
			return
		}
		b.reply(ctx, chatID, RenderReview(item))
	}()
}

func (b *Bot) removeDownload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("remove download failed", "path", path, "error", err)
	}
}

func (b *Bot) handleRetry(ctx context.Context, chatID, id string) {
	item, err := b.pipeline.Retry(ctx, chatID, id)
	if err != nil {
		if item.Status == domain.StatusError && !commandError(err) {
			b.reply(ctx, chatID, RenderFailure(item, err))
			return
		}
		b.replyErr(ctx, chatID, err)
		return
	}
	switch item.Status {
	case domain.StatusPublishing:
		b.reply(ctx, chatID, fmt.Sprintf("🔁 Publishing <code>%s</code> again. I will report the result.", escape(item.ID)))
	default:
		b.reply(ctx, chatID, RenderReview(item))
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID string) {
	if b.stats == nil {
		b.reply(ctx, chatID, "📊 Statistics are not available.")
		return
	}
	since := time.Now().AddDate(0, 0, -7)
	stats, err := b.stats.Stats(ctx, since)
	if err != nil {
		b.logger.Error("stats failed", "error", err)
		b.reply(ctx, chatID, "❌ Could not read statistics.")
		return
	}
	b.reply(ctx, chatID, RenderStats(stats, since))
}

func (b *Bot) handleList(ctx context.Context, chatID string, args []string) {
	var filter *domain.Status
	if len(args) > 0 {
		st, err := domain.ParseStatus(strings.ToLower(args[0]))
		if err != nil {
			b.reply(ctx, chatID, "❓ Unknown status "+escape(args[0]))
			return
		}
		filter = &st
	}
	items, err := b.pipeline.Items(ctx, chatID, filter)
	if err != nil {
		b.replyErr(ctx, chatID, err)
		return
	}
	b.reply(ctx, chatID, RenderList(items))
}

// NotifyReview sends a draft to its requester for approval.
func (b *Bot) NotifyReview(ctx context.Context, requester string, item domain.ContentItem) error {
	return b.api.sendMessage(ctx, requester, RenderReview(item))
}

// NotifyOutcome reports the result of an asynchronous publish.
func (b *Bot) NotifyOutcome(ctx context.Context, requester string, outcome domain.PublishOutcome) error {
	return b.api.sendMessage(ctx, requester, RenderOutcome(outcome))
}

// commandError reports errors that describe the command rather than the item.
func commandError(err error) bool {
	return errors.Is(err, usecase.ErrRequesterBusy) ||
		errors.Is(err, usecase.ErrPublishInFlight) ||
		errors.Is(err, usecase.ErrNotRetryable) ||
		errors.Is(err, usecase.ErrNoPendingApproval)
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if err := b.api.sendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("send message failed", "chat", chatID, "error", err)
	}
}

func (b *Bot) replyErr(ctx context.Context, chatID string, err error) {
	b.logger.Debug("command failed", "chat", chatID, "error", err)
	b.reply(ctx, chatID, RenderError(err))
}
