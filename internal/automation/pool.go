package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// PoolConfig limits concurrent browsers and how often sessions may start.
type PoolConfig struct {
	MaxSessions int
	// MinInterval is the minimum spacing between session starts.
	MinInterval time.Duration
	Session     SessionConfig
}

// Pool runs every publish in a fresh, isolated browser session.
type Pool struct {
	factory DriverFactory
	catalog Catalog
	creds   Credentials
	cfg     PoolConfig
	audit   ports.AuditSink
	logger  *slog.Logger
	sem     chan struct{}
	limiter *rate.Limiter
}

var _ ports.Publisher = (*Pool)(nil)

// NewPool creates a session pool.
func NewPool(factory DriverFactory, catalog Catalog, creds Credentials, cfg PoolConfig, audit ports.AuditSink, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Pool{
		factory: factory,
		catalog: catalog,
		creds:   creds,
		cfg:     cfg,
		audit:   audit,
		logger:  logger.With("component", "automation"),
		sem:     make(chan struct{}, cfg.MaxSessions),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Publish signs in and posts text. The returned trail covers every action
// taken, including those before a failure.
func (p *Pool) Publish(ctx context.Context, executionID, text string) (domain.PublishResult, []domain.AuditEntry, error) {
	if executionID == "" {
		executionID = uuid.NewString()
	}
	result := domain.PublishResult{ExecutionID: executionID}

	session, release, err := p.open(ctx, executionID)
	if err != nil {
		return result, nil, err
	}
	defer release()

	if _, err := session.Authenticate(ctx, p.creds); err != nil {
		return result, session.Trail(), err
	}

	result, err = session.Publish(ctx, text)
	result.ExecutionID = executionID
	return result, session.Trail(), err
}

// CheckLogin signs in without publishing.
func (p *Pool) CheckLogin(ctx context.Context) (AuthOutcome, []domain.AuditEntry, error) {
	session, release, err := p.open(ctx, uuid.NewString())
	if err != nil {
		return AuthFailed, nil, err
	}
	defer release()

	outcome, err := session.Authenticate(ctx, p.creds)
	return outcome, session.Trail(), err
}

func (p *Pool) open(ctx context.Context, executionID string) (*Session, func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, domain.NewError(domain.KindInterrupted, "acquire-session", ctx.Err())
	}
	if err := p.limiter.Wait(ctx); err != nil {
		<-p.sem
		return nil, nil, domain.NewError(domain.KindInterrupted, "acquire-session", err)
	}

	driver, err := p.factory.NewDriver(ctx)
	if err != nil {
		<-p.sem
		return nil, nil, domain.NewError(domain.KindSessionLost, "start-browser", fmt.Errorf("start browser: %w", err))
	}

	logger := p.logger
	session := NewSession(executionID, driver, p.catalog, p.cfg.Session, p.audit, logger)
	logger.Info("automation session started", "execution_id", executionID)

	release := func() {
		if err := session.Close(); err != nil {
			logger.Warn("close browser", "execution_id", executionID, "error", err)
		}
		<-p.sem
	}
	return session, release, nil
}
