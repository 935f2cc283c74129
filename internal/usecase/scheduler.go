package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const (
	inboxProcessedDir = "processed"
	inboxFailedDir    = "failed"
)

// InboxConfig describes a drop directory swept on a schedule.
type InboxConfig struct {
	Dir       string
	Requester string
	// Accepts reports whether a file name has a supported extension.
	Accepts func(name string) bool
}

// InboxSweeper submits files dropped into the inbox as the configured
// requester. Submitted files move to processed/ or failed/.
type InboxSweeper struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	notifier ports.RequesterNotifier
	cfg      InboxConfig
	logger   *slog.Logger
}

// NewInboxSweeper returns a helper to start/stop recurring sweeps.
func NewInboxSweeper(driver ports.Scheduler, pipeline *Pipeline, notifier ports.RequesterNotifier, cfg InboxConfig, logger *slog.Logger) *InboxSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxSweeper{
		driver:   driver,
		pipeline: pipeline,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the sweep with the provided scheduler.
func (s *InboxSweeper) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil || s.cfg.Dir == "" {
		return nil
	}
	for _, dir := range []string{s.cfg.Dir, filepath.Join(s.cfg.Dir, inboxProcessedDir), filepath.Join(s.cfg.Dir, inboxFailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
	}

	job := func(trigger time.Time) {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("inbox sweep failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("inbox sweep finished", "submitted", n, "trigger", trigger.UTC())
		}
	}
	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *InboxSweeper) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Sweep submits inbox files oldest name first until the requester is busy.
// It returns the number of files handed to the pipeline.
func (s *InboxSweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if s.cfg.Accepts != nil && !s.cfg.Accepts(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	submitted := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return submitted, nil
		}
		path := filepath.Join(s.cfg.Dir, name)
		item, err := s.pipeline.Submit(ctx, s.cfg.Requester, path)
		if errors.Is(err, ErrRequesterBusy) {
			// Remaining files wait until the current draft is resolved.
			break
		}
		submitted++

		dest := inboxProcessedDir
		if err != nil {
			dest = inboxFailedDir
			s.logger.Warn("inbox file failed", "file", name, "item", item.ID, "error", err)
			s.notifyFailure(ctx, item, err)
		} else if s.notifier != nil {
			if nerr := s.notifier.NotifyReview(ctx, s.cfg.Requester, item); nerr != nil {
				s.logger.Error("notify review failed", "item", item.ID, "error", nerr)
			}
		}
		if merr := os.Rename(path, filepath.Join(s.cfg.Dir, dest, name)); merr != nil {
			return submitted, fmt.Errorf("move %s: %w", name, merr)
		}
	}
	return submitted, nil
}

func (s *InboxSweeper) notifyFailure(ctx context.Context, item domain.ContentItem, err error) {
	if s.notifier == nil {
		return
	}
	kind := domain.KindOf(err)
	outcome := domain.PublishOutcome{
		ItemID:    item.ID,
		Title:     item.RawMetadata.Title,
		ErrorKind: kind,
		Error:     domain.Describe(kind),
	}
	if item.ID != "" {
		outcome.Recovery = RecoveryCommands(item)
	}
	if nerr := s.notifier.NotifyOutcome(ctx, s.cfg.Requester, outcome); nerr != nil {
		s.logger.Error("notify failure failed", "item", item.ID, "error", nerr)
	}
}
