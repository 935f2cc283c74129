package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentPublisher/internal/automation"
	"ContentPublisher/internal/config"
	"ContentPublisher/internal/extraction"
	"ContentPublisher/internal/infrastructure/audit"
	"ContentPublisher/internal/infrastructure/chrome"
	"ContentPublisher/internal/infrastructure/discord"
	"ContentPublisher/internal/infrastructure/llm"
	"ContentPublisher/internal/infrastructure/parser"
	"ContentPublisher/internal/infrastructure/scheduler"
	"ContentPublisher/internal/infrastructure/storage"
	"ContentPublisher/internal/infrastructure/telegram"
	"ContentPublisher/internal/logging"
	"ContentPublisher/internal/ports"
	"ContentPublisher/internal/review"
	"ContentPublisher/internal/usecase"
)

// Option customizes the application wiring.
type Option func(*options)

type options struct {
	notifier ports.RequesterNotifier
	factory  automation.DriverFactory
}

// WithNotifier replaces the Telegram bot as the requester notifier.
func WithNotifier(n ports.RequesterNotifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithDriverFactory replaces the Chrome launcher.
func WithDriverFactory(f automation.DriverFactory) Option {
	return func(o *options) { o.factory = f }
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.FileStore
	events    *audit.EventLog
	publisher *automation.Pool
	pipeline  *usecase.Pipeline
	bot       *telegram.Bot
	sweeper   *usecase.InboxSweeper
}

// New builds the application: storage, extraction, rewrite and review,
// browser automation, alerting and the chat front end.
func New(cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.NewFileStore(cfg.Storage.Root, storage.WithLogger(baseLogger.With("component", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	events, err := audit.New(cfg.Storage.EventsDir)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	registry := extraction.NewRegistry()
	registry.Register(parser.NewHTMLExtractor())
	registry.Register(parser.NewTextExtractor())
	extractor := extraction.NewExtractor(registry, cfg.Pipeline.MaxUploadBytes, baseLogger.With("component", "extraction"))

	chat := llm.NewChatGPTClient(cfg.ChatGPT, cfg.Pipeline.MaxPostChars)
	var primary ports.Reviewer
	if chat.Configured() {
		primary = chat
	}
	reviewer := review.NewFallback(primary, review.NewLocalReviewer(cfg.Pipeline.MaxPostChars), baseLogger.With("component", "review"))

	catalog := automation.DefaultCatalog()
	if cfg.Automation.SelectorsFile != "" {
		if catalog, err = automation.LoadCatalog(cfg.Automation.SelectorsFile); err != nil {
			return nil, fmt.Errorf("load selectors: %w", err)
		}
	}
	factory := o.factory
	if factory == nil {
		factory = chrome.NewFactory(chrome.Options{
			Headless:     cfg.Automation.Headless && !cfg.Automation.Debug,
			WindowWidth:  cfg.Automation.WindowWidth,
			WindowHeight: cfg.Automation.WindowHeight,
			RemoteURL:    cfg.Automation.RemoteURL,
			ProfileRoot:  cfg.Automation.ProfileRoot,
			UserAgent:    cfg.Automation.UserAgent,
			Debug:        cfg.Automation.Debug,
		}, baseLogger)
	}
	publisher := automation.NewPool(factory, catalog,
		automation.Credentials{Username: cfg.Platform.Email, Password: cfg.Platform.Password},
		poolConfig(cfg), events, baseLogger)

	var alerts usecase.Alerts
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		alerts = append(alerts, telegram.NewNotifier(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.Discord.WebhookURL != "" {
		alerts = append(alerts, discord.NewWebhook(cfg.Discord.WebhookURL, cfg.Discord.Username))
	}
	if len(alerts) == 0 {
		baseLogger.Warn("no alert channel configured; alerts go to the log only")
	}

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		events:    events,
		publisher: publisher,
	}

	notifier := o.notifier
	if cfg.Telegram.BotToken != "" {
		a.bot = telegram.NewBot(telegram.BotConfig{
			Token:              cfg.Telegram.BotToken,
			APIBase:            cfg.Telegram.APIBase,
			AuthorizedUsers:    cfg.Telegram.AuthorizedUsers,
			MaxUploadBytes:     cfg.Pipeline.MaxUploadBytes,
			DownloadDir:        cfg.Storage.DownloadDir,
			PollTimeout:        cfg.Telegram.PollTimeout,
			RewriteConfigured:  chat.Configured(),
			PlatformConfigured: cfg.Platform.Configured(),
			Accepts:            registry.Supports,
		}, nil, events, baseLogger)
		if notifier == nil {
			notifier = a.bot
		}
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:     store,
		Extractor: extractor,
		Rewriter:  chat,
		Reviewer:  reviewer,
		Publisher: publisher,
		Alerter:   alertOrLog{alerts: alerts, logger: baseLogger.With("component", "alerts")},
		Notifier:  notifier,
		Limits: usecase.Limits{
			MinExtractedChars: cfg.Pipeline.MinExtractedChars,
			MaxPostChars:      cfg.Pipeline.MaxPostChars,
			Ellipsis:          cfg.Pipeline.Ellipsis,
			PublishTimeout:    cfg.Pipeline.PublishTimeout,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})
	if a.bot != nil {
		a.bot.Attach(a.pipeline)
	}

	if cfg.Inbox.Dir != "" {
		a.sweeper = usecase.NewInboxSweeper(scheduler.NewIntervalScheduler(cfg.Inbox.Interval), a.pipeline, notifier,
			usecase.InboxConfig{Dir: cfg.Inbox.Dir, Requester: cfg.Inbox.Requester, Accepts: registry.Supports},
			baseLogger.With("component", "inbox"))
	}

	return a, nil
}

func poolConfig(cfg config.Config) automation.PoolConfig {
	return automation.PoolConfig{
		MaxSessions: cfg.Automation.MaxSessions,
		MinInterval: cfg.Automation.MinInterval,
		Session: automation.SessionConfig{
			Platform: automation.PlatformConfig{
				BaseURL:             cfg.Platform.BaseURL,
				LoginPath:           cfg.Platform.LoginPath,
				FeedPath:            cfg.Platform.FeedPath,
				VerificationMarkers: cfg.Platform.VerificationMarkers,
			},
			PollInterval:        cfg.Automation.PollInterval,
			NavigateTimeout:     cfg.Automation.NavigateTimeout,
			LoginTimeout:        cfg.Automation.LoginTimeout,
			SelectorTimeout:     cfg.Automation.SelectorTimeout,
			ConfirmTimeout:      cfg.Automation.ConfirmTimeout,
			ComposeRetryTimeout: cfg.Automation.ComposeRetryTimeout,
			OverlayTimeout:      cfg.Automation.OverlayTimeout,
			SubmitEnableTimeout: cfg.Automation.SubmitEnableTimeout,
			CaptureTimeout:      cfg.Automation.CaptureTimeout,
			SubmitTimeoutPolicy: automation.SubmitTimeoutPolicy(cfg.Automation.SubmitTimeoutPolicy),
			ArtifactsDir:        cfg.Automation.ArtifactsDir,
		},
	}
}

// Pipeline exposes the orchestrator for one-shot commands.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Store exposes the queue for inspection commands.
func (a *Application) Store() *storage.FileStore { return a.store }

// Events exposes the audit log.
func (a *Application) Events() *audit.EventLog { return a.events }

// Publisher exposes the browser session pool.
func (a *Application) Publisher() *automation.Pool { return a.publisher }

// Claim takes the queue's service lock for this process. Commands that drive
// the queue or the browser profile hold it until they return.
func (a *Application) Claim() (func(), error) {
	release, err := a.store.Claim()
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			a.logger.Warn("release queue failed", "error", err)
		}
	}, nil
}

// Run recovers interrupted work, then serves the chat bot and the inbox sweep
// until ctx is cancelled. Publish workers are drained before returning.
func (a *Application) Run(ctx context.Context) error {
	if a.bot == nil && a.sweeper == nil {
		return errors.New("nothing to serve: set telegram.botToken or inbox.dir")
	}
	release, err := a.Claim()
	if err != nil {
		return err
	}
	defer release()

	report, err := a.pipeline.Recover(ctx)
	if err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	if issues, err := a.store.Verify(ctx); err != nil {
		a.logger.Warn("queue verification failed", "error", err)
	} else {
		for _, issue := range issues {
			a.logger.Warn("queue inconsistency", "dir", filepath.Base(issue.Dir), "file", issue.File, "problem", issue.Problem)
		}
	}
	a.logger.Info("service starting",
		"archived", len(report.Archived),
		"interrupted", len(report.Interrupted),
		"bot", a.bot != nil,
		"inbox", a.cfg.Inbox.Dir)

	g, gctx := errgroup.WithContext(ctx)
	if a.bot != nil {
		g.Go(func() error { return a.bot.Run(gctx) })
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(gctx); err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			return a.sweeper.Stop(stopCtx)
		})
	}

	err = g.Wait()
	a.logger.Info("waiting for publish workers")
	a.pipeline.Wait()
	return err
}
