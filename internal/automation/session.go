package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// State is the lifecycle state of an automation session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StatePublishing      State = "publishing"
	StateIdle            State = "idle"
	StateClosed          State = "closed"
	StateFailed          State = "failed"
)

// AuthOutcome classifies where sign-in landed.
type AuthOutcome string

const (
	AuthSuccess              AuthOutcome = "success"
	AuthLikelySuccess        AuthOutcome = "likely_success"
	AuthVerificationRequired AuthOutcome = "verification_required"
	AuthFailed               AuthOutcome = "failed"
)

// SubmitTimeoutPolicy decides what a missing publish confirmation means.
type SubmitTimeoutPolicy string

const (
	// SubmitTimeoutLikelySuccess reports success with a warning: the post was
	// already submitted and retrying would duplicate it.
	SubmitTimeoutLikelySuccess SubmitTimeoutPolicy = "likely-success"
	// SubmitTimeoutFail reports a SubmitTimeout error.
	SubmitTimeoutFail SubmitTimeoutPolicy = "fail"
)

// Credentials for the publishing platform.
type Credentials struct {
	Username string
	Password string
}

// PlatformConfig describes the target site.
type PlatformConfig struct {
	BaseURL             string
	LoginPath           string
	FeedPath            string
	VerificationMarkers []string
}

func (p PlatformConfig) urlFor(path string) string {
	return strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// SessionConfig bounds every step of a session. Timeouts are per step.
type SessionConfig struct {
	Platform            PlatformConfig
	Executor            ExecutorConfig
	PollInterval        time.Duration
	NavigateTimeout     time.Duration
	LoginTimeout        time.Duration
	SelectorTimeout     time.Duration
	ComposeRetryTimeout time.Duration
	OverlayTimeout      time.Duration
	SubmitEnableTimeout time.Duration
	ConfirmTimeout      time.Duration
	CaptureTimeout      time.Duration
	SubmitTimeoutPolicy SubmitTimeoutPolicy
	ArtifactsDir        string
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&c.PollInterval, defaultPollInterval)
	def(&c.NavigateTimeout, 30*time.Second)
	def(&c.LoginTimeout, 20*time.Second)
	def(&c.SelectorTimeout, 15*time.Second)
	def(&c.ComposeRetryTimeout, 10*time.Second)
	def(&c.OverlayTimeout, 2*time.Second)
	def(&c.SubmitEnableTimeout, 5*time.Second)
	def(&c.ConfirmTimeout, 15*time.Second)
	def(&c.CaptureTimeout, 10*time.Second)
	if c.SubmitTimeoutPolicy == "" {
		c.SubmitTimeoutPolicy = SubmitTimeoutLikelySuccess
	}
	if c.Platform.LoginPath == "" {
		c.Platform.LoginPath = "/login"
	}
	if c.Platform.FeedPath == "" {
		c.Platform.FeedPath = "/feed/"
	}
	if len(c.Platform.VerificationMarkers) == 0 {
		c.Platform.VerificationMarkers = []string{"challenge", "checkpoint"}
	}
	c.Executor.PollInterval = c.PollInterval
	return c
}

// StepError is returned by every failed session step after diagnostics
// were captured and the audit event was written.
type StepError struct {
	Kind        domain.ErrorKind
	Step        string
	Diagnostics domain.Diagnostics
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Step, e.Kind, e.Err)
}

// Unwrap exposes the classified domain error.
func (e *StepError) Unwrap() error {
	return domain.NewError(e.Kind, e.Step, e.Err)
}

// Captured returns the page state recorded when the step failed.
func (e *StepError) Captured() domain.Diagnostics {
	return e.Diagnostics
}

// Session owns one browser driver for a single publish run.
type Session struct {
	executionID string
	driver      Driver
	resolver    *Resolver
	executor    *Executor
	catalog     Catalog
	cfg         SessionConfig
	audit       ports.AuditSink
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	state State
	trail []domain.AuditEntry
}

// NewSession binds a driver to the catalog and audit sink.
func NewSession(executionID string, driver Driver, catalog Catalog, cfg SessionConfig, audit ports.AuditSink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	logger = logger.With("execution_id", executionID)
	return &Session{
		executionID: executionID,
		driver:      driver,
		resolver:    NewResolver(driver, cfg.PollInterval, logger),
		executor:    NewExecutor(driver, cfg.Executor, logger),
		catalog:     catalog,
		cfg:         cfg,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
		state:       StateUnauthenticated,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Trail returns a copy of the audit entries recorded so far.
func (s *Session) Trail() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.trail...)
}

// Authenticate signs in and classifies the landing location. Additional
// verification is a hard stop and is never retried here.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) (AuthOutcome, error) {
	if err := s.enter(StateAuthenticating, StateUnauthenticated); err != nil {
		return AuthFailed, err
	}
	start := s.now()
	const step = "login"

	if creds.Username == "" || creds.Password == "" {
		return AuthFailed, s.fail(ctx, step, domain.KindAuthFailed, errors.New("credentials are not configured"), start)
	}

	if err := s.navigate(ctx, s.cfg.Platform.urlFor(s.cfg.Platform.LoginPath)); err != nil {
		return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	fields := []struct {
		target, value string
	}{
		{TargetLoginUsername, creds.Username},
		{TargetLoginPassword, creds.Password},
	}
	for _, field := range fields {
		res, err := s.resolve(ctx, field.target, s.cfg.SelectorTimeout)
		if err != nil {
			return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindElementNotFound), err, start)
		}
		if err := s.typeInto(ctx, field.target, res.Element, field.value); err != nil {
			return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindActionFailed), err, start)
		}
	}

	res, err := s.resolve(ctx, TargetLoginSubmit, s.cfg.SelectorTimeout)
	if err != nil {
		return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindElementNotFound), err, start)
	}
	if err := s.click(ctx, TargetLoginSubmit, res); err != nil {
		return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	landed, err := s.waitLeave(ctx, s.cfg.Platform.LoginPath, s.cfg.LoginTimeout)
	if err != nil {
		return AuthFailed, s.fail(ctx, step, kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	outcome := ClassifyLocation(s.cfg.Platform, landed)
	switch outcome {
	case AuthVerificationRequired:
		return outcome, s.fail(ctx, step, domain.KindVerificationRequired,
			fmt.Errorf("platform requested additional verification at %s", landed), start)
	case AuthFailed:
		return outcome, s.fail(ctx, step, domain.KindAuthFailed,
			fmt.Errorf("sign-in did not complete, landed on %s", landed), start)
	}

	detail := ""
	if outcome == AuthLikelySuccess {
		detail = "unexpected location after sign-in: " + landed
		s.logger.Warn("sign-in landed on unexpected location", "url", landed)
	}
	s.succeed(ctx, step, "", detail, landed, start)
	s.setState(StateAuthenticated)
	return outcome, nil
}

// Publish creates a post with text and waits for a confirmation signal.
func (s *Session) Publish(ctx context.Context, text string) (domain.PublishResult, error) {
	if err := s.enter(StatePublishing, StateAuthenticated, StateIdle); err != nil {
		return domain.PublishResult{}, err
	}
	start := s.now()
	result := domain.PublishResult{ExecutionID: s.executionID}

	if strings.TrimSpace(text) == "" {
		return result, s.fail(ctx, "publish", domain.KindValidation, errors.New("empty post text"), start)
	}

	if err := s.navigate(ctx, s.cfg.Platform.urlFor(s.cfg.Platform.FeedPath)); err != nil {
		return result, s.fail(ctx, "open-feed", kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	if err := s.openComposer(ctx); err != nil {
		return result, s.fail(ctx, "compose", kindFor(ctx, err, domain.KindElementNotFound), err, start)
	}

	editor, err := s.resolve(ctx, TargetEditor, s.cfg.SelectorTimeout)
	if err != nil {
		return result, s.fail(ctx, "editor", kindFor(ctx, err, domain.KindElementNotFound), err, start)
	}
	if err := s.typeInto(ctx, TargetEditor, editor.Element, text); err != nil {
		return result, s.fail(ctx, "editor", kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	submit, err := s.resolve(ctx, TargetSubmit, s.cfg.SelectorTimeout)
	if err != nil {
		return result, s.fail(ctx, "submit", kindFor(ctx, err, domain.KindElementNotFound), err, start)
	}
	enabled, err := s.poll(ctx, s.cfg.SubmitEnableTimeout, func(ctx context.Context) (bool, error) {
		return s.driver.Enabled(ctx, submit.Element)
	})
	if err != nil {
		return result, s.fail(ctx, "submit", kindFor(ctx, err, domain.KindActionFailed), err, start)
	}
	if !enabled {
		err := fmt.Errorf("submit control stayed disabled for %s", s.cfg.SubmitEnableTimeout)
		return result, s.fail(ctx, "submit", domain.KindActionFailed, err, start)
	}

	before, _ := s.driver.Location(ctx)
	if err := s.click(ctx, TargetSubmit, submit); err != nil {
		return result, s.fail(ctx, "submit", kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	confirmed, landed, err := s.awaitConfirmation(ctx, before)
	if err != nil {
		return result, s.fail(ctx, "confirm", kindFor(ctx, err, domain.KindActionFailed), err, start)
	}

	result.FinalURL = landed
	result.DurationMs = s.now().Sub(start).Milliseconds()
	if confirmed {
		result.Confirmed = true
		s.succeed(ctx, "publish", "", "", landed, start)
		s.setState(StateIdle)
		return result, nil
	}

	if s.cfg.SubmitTimeoutPolicy == SubmitTimeoutFail {
		err := fmt.Errorf("no publish confirmation within %s", s.cfg.ConfirmTimeout)
		return result, s.fail(ctx, "confirm", domain.KindSubmitTimeout, err, start)
	}

	result.Warning = fmt.Sprintf("no confirmation within %s; the post was submitted and is likely published", s.cfg.ConfirmTimeout)
	s.logger.Warn("publish confirmation timed out, treating as likely success", "url", landed)
	s.succeed(ctx, "publish", domain.KindSubmitTimeout, result.Warning, landed, start)
	s.setState(StateIdle)
	return result, nil
}

// Close releases the browser.
func (s *Session) Close() error {
	s.setState(StateClosed)
	return s.driver.Close()
}

// openComposer resolves and clicks the compose control, dismissing overlays
// and reloading once when the first attempt fails.
func (s *Session) openComposer(ctx context.Context) error {
	res, err := s.resolve(ctx, TargetCompose, s.cfg.SelectorTimeout)
	if err == nil {
		err = s.click(ctx, TargetCompose, res)
	}
	if err == nil {
		return nil
	}
	if fatal := fatalErr(ctx, err); fatal != nil {
		return fatal
	}

	s.logger.Info("compose control unavailable, dismissing overlays and reloading", "error", err)
	s.dismissOverlays(ctx)

	reloadCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	reloadErr := s.driver.Reload(reloadCtx)
	cancel()
	if reloadErr != nil {
		if fatal := fatalErr(ctx, reloadErr); fatal != nil {
			return fatal
		}
		s.logger.Warn("reload failed", "error", reloadErr)
	}

	res, err = s.resolve(ctx, TargetCompose, s.cfg.ComposeRetryTimeout)
	if err != nil {
		return err
	}
	return s.click(ctx, TargetCompose, res)
}

func (s *Session) dismissOverlays(ctx context.Context) {
	res, err := s.resolve(ctx, TargetOverlayDismiss, s.cfg.OverlayTimeout)
	if err != nil {
		return
	}
	if err := s.click(ctx, TargetOverlayDismiss, res); err != nil {
		s.logger.Debug("overlay dismiss failed", "error", err)
	}
}

func (s *Session) awaitConfirmation(ctx context.Context, before string) (bool, string, error) {
	var landed string
	successSet, setErr := s.catalog.Set(TargetPublishSuccess)

	confirmed, err := s.poll(ctx, s.cfg.ConfirmTimeout, func(ctx context.Context) (bool, error) {
		loc, err := s.driver.Location(ctx)
		if err != nil {
			return false, err
		}
		landed = loc
		if before != "" && loc != before {
			return true, nil
		}
		if setErr != nil {
			return false, nil
		}
		for _, marker := range successSet.Locators {
			if _, found, err := s.driver.Query(ctx, marker); err == nil && found {
				return true, nil
			} else if IsSessionLost(err) {
				return false, err
			}
		}
		return false, nil
	})
	return confirmed, landed, err
}

func (s *Session) navigate(ctx context.Context, target string) error {
	if err := s.driver.Alive(ctx); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()
	start := s.now()
	err := s.driver.Navigate(stepCtx, target)
	entry := domain.AuditEntry{
		Timestamp:  start,
		Action:     "navigate",
		Target:     target,
		Outcome:    domain.OutcomeSuccess,
		DurationMs: s.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.Outcome = domain.OutcomeFailure
		entry.ErrorDetail = err.Error()
	}
	s.record(entry)
	return err
}

func (s *Session) resolve(ctx context.Context, target string, timeout time.Duration) (Resolution, error) {
	set, err := s.catalog.Set(target)
	if err != nil {
		return Resolution{}, err
	}
	start := s.now()
	res, err := s.resolver.Resolve(ctx, set, timeout)
	entry := domain.AuditEntry{
		Timestamp:  start,
		Action:     "resolve",
		Target:     target,
		Outcome:    domain.OutcomeSuccess,
		DurationMs: s.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.Outcome = domain.OutcomeFailure
		entry.ErrorKind = kindFor(ctx, err, domain.KindElementNotFound)
		entry.ErrorDetail = err.Error()
	} else {
		entry.Detail = fmt.Sprintf("selector %d of %d (%s) version %s", res.Index, res.Total, res.Locator, set.Version)
	}
	s.record(entry)
	return res, err
}

func (s *Session) click(ctx context.Context, target string, res Resolution) error {
	result, err := s.executor.Click(ctx, res.Element, target)
	entry := domain.AuditEntry{
		Timestamp:  s.now().Add(-result.Duration),
		Action:     "click",
		Target:     target,
		Outcome:    domain.OutcomeSuccess,
		Detail:     fmt.Sprintf("path=%s fallback=%t selector=%d/%d", result.Path, result.FallbackUsed(), res.Index, res.Total),
		DurationMs: result.Duration.Milliseconds(),
	}
	if err == nil && !result.OK {
		err = fmt.Errorf("click %s: %w", target, result.Err)
	}
	if err != nil {
		entry.Outcome = domain.OutcomeFailure
		entry.ErrorKind = kindFor(ctx, err, domain.KindActionFailed)
		entry.ErrorDetail = err.Error()
	}
	s.record(entry)
	return err
}

func (s *Session) typeInto(ctx context.Context, target string, el Element, text string) error {
	result, err := s.executor.Type(ctx, el, text, target)
	entry := domain.AuditEntry{
		Timestamp:  s.now().Add(-result.Duration),
		Action:     "type",
		Target:     target,
		Outcome:    domain.OutcomeSuccess,
		Detail:     fmt.Sprintf("path=%s fallback=%t", result.Path, result.FallbackUsed()),
		DurationMs: result.Duration.Milliseconds(),
	}
	if err == nil && !result.OK {
		err = fmt.Errorf("type into %s: %w", target, result.Err)
	}
	if err != nil {
		entry.Outcome = domain.OutcomeFailure
		entry.ErrorKind = kindFor(ctx, err, domain.KindActionFailed)
		entry.ErrorDetail = err.Error()
	}
	s.record(entry)
	return err
}

func (s *Session) waitLeave(ctx context.Context, path string, timeout time.Duration) (string, error) {
	var current string
	_, err := s.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		loc, err := s.driver.Location(ctx)
		if err != nil {
			return false, err
		}
		current = loc
		return !strings.Contains(strings.ToLower(loc), strings.ToLower(path)), nil
	})
	return current, err
}

// poll runs cond until it holds, a lost session is reported or timeout elapses.
func (s *Session) poll(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	return pollUntil(ctx, s.cfg.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil {
			if fatal := fatalErr(ctx, err); fatal != nil {
				return false, fatal
			}
			return false, nil
		}
		return ok, nil
	})
}

// fail captures diagnostics, writes the audit event and returns a StepError.
func (s *Session) fail(ctx context.Context, step string, kind domain.ErrorKind, cause error, start time.Time) error {
	diag := s.capture(ctx, step)
	duration := s.now().Sub(start).Milliseconds()

	s.record(domain.AuditEntry{
		Timestamp:   s.now(),
		Action:      step,
		Outcome:     domain.OutcomeFailure,
		Detail:      diag.URL,
		DurationMs:  duration,
		ErrorKind:   kind,
		ErrorDetail: cause.Error(),
	})

	stepErr := &StepError{Kind: kind, Step: step, Diagnostics: diag, Err: cause}
	event := domain.AuditEvent{
		Timestamp:   s.now(),
		ExecutionID: s.executionID,
		Action:      step,
		Success:     false,
		DurationMs:  duration,
		ErrorKind:   kind,
		ErrorDetail: cause.Error(),
		URL:         diag.URL,
		PageTitle:   diag.Title,
		Screenshot:  diag.Screenshot,
	}
	if err := s.writeEvent(ctx, event); err != nil {
		s.logger.Error("audit event not written", "step", step, "error", err)
		stepErr.Err = errors.Join(cause, fmt.Errorf("audit: %w", err))
	}

	s.logger.Error("automation step failed",
		"step", step, "kind", kind, "url", diag.URL, "title", diag.Title,
		"screenshot", diag.Screenshot, "error", cause)
	s.setState(StateFailed)
	return stepErr
}

func (s *Session) succeed(ctx context.Context, step string, kind domain.ErrorKind, detail, landed string, start time.Time) {
	duration := s.now().Sub(start).Milliseconds()
	outcome := domain.OutcomeSuccess
	if kind != "" {
		outcome = domain.OutcomeWarning
	}
	s.record(domain.AuditEntry{
		Timestamp:  s.now(),
		Action:     step,
		Outcome:    outcome,
		Detail:     detail,
		DurationMs: duration,
		ErrorKind:  kind,
	})
	event := domain.AuditEvent{
		Timestamp:   s.now(),
		ExecutionID: s.executionID,
		Action:      step,
		Success:     true,
		DurationMs:  duration,
		ErrorKind:   kind,
		ErrorDetail: detail,
		URL:         landed,
	}
	if err := s.writeEvent(ctx, event); err != nil {
		s.logger.Error("audit event not written", "step", step, "error", err)
	}
}

func (s *Session) writeEvent(ctx context.Context, event domain.AuditEvent) error {
	if s.audit == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CaptureTimeout)
	defer cancel()
	return s.audit.Record(writeCtx, event)
}

// capture collects URL, title and a screenshot. It runs on a context detached
// from ctx so a timed-out step can still be inspected.
func (s *Session) capture(ctx context.Context, step string) domain.Diagnostics {
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CaptureTimeout)
	defer cancel()

	var diag domain.Diagnostics
	if loc, err := s.driver.Location(captureCtx); err == nil {
		diag.URL = loc
	}
	if title, err := s.driver.Title(captureCtx); err == nil {
		diag.Title = title
	}

	shot, err := s.driver.Screenshot(captureCtx)
	if err != nil || len(shot) == 0 || s.cfg.ArtifactsDir == "" {
		return diag
	}
	if err := os.MkdirAll(s.cfg.ArtifactsDir, 0o755); err != nil {
		s.logger.Warn("create artifacts dir", "error", err)
		return diag
	}
	name := fmt.Sprintf("fail_%s_%s_%s.png", s.now().UTC().Format("20060102_150405"), s.executionID, step)
	path := filepath.Join(s.cfg.ArtifactsDir, name)
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		s.logger.Warn("write screenshot", "error", err)
		return diag
	}
	diag.Screenshot = path
	return diag
}

func (s *Session) record(entry domain.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trail = append(s.trail, entry)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) enter(next State, allowed ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range allowed {
		if s.state == st {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("session is %s, cannot enter %s", s.state, next)
}

// ClassifyLocation maps the post-sign-in URL to an outcome.
func ClassifyLocation(p PlatformConfig, raw string) AuthOutcome {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return AuthFailed
	}
	path := strings.ToLower(u.Path)

	for _, marker := range p.VerificationMarkers {
		if marker != "" && strings.Contains(path, strings.ToLower(marker)) {
			return AuthVerificationRequired
		}
	}

	base, err := url.Parse(p.BaseURL)
	if err != nil || !sameSite(base.Hostname(), u.Hostname()) {
		return AuthFailed
	}

	login := strings.ToLower(strings.Trim(p.LoginPath, "/"))
	if login != "" && strings.Contains(path, login) {
		return AuthFailed
	}
	feed := strings.ToLower(strings.Trim(p.FeedPath, "/"))
	if feed != "" && strings.Contains(path, feed) {
		return AuthSuccess
	}
	return AuthLikelySuccess
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b || strings.HasSuffix(b, "."+a)
}

func kindFor(ctx context.Context, err error, fallback domain.ErrorKind) domain.ErrorKind {
	var notFound *NotFoundError
	switch {
	case IsSessionLost(err):
		return domain.KindSessionLost
	case errors.As(err, &notFound):
		return domain.KindElementNotFound
	case ctx.Err() != nil:
		return domain.KindInterrupted
	default:
		return fallback
	}
}

func fatalErr(ctx context.Context, err error) error {
	if IsSessionLost(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}
