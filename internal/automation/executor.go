package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ActionPath records which interaction method succeeded.
type ActionPath string

const (
	PathNative ActionPath = "native"
	PathScript ActionPath = "script"
	PathNone   ActionPath = "none"
)

// ActionResult is the outcome of a click or type.
type ActionResult struct {
	OK       bool
	Path     ActionPath
	Err      error
	Duration time.Duration
}

// FallbackUsed reports whether the scripted path was needed.
func (r ActionResult) FallbackUsed() bool {
	return r.Path == PathScript
}

// ExecutorConfig bounds the waits inside a single action.
type ExecutorConfig struct {
	InteractableTimeout time.Duration
	VerifyTimeout       time.Duration
	PollInterval        time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.InteractableTimeout <= 0 {
		c.InteractableTimeout = 5 * time.Second
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

// Executor performs clicks and text entry with scripted fallbacks.
type Executor struct {
	driver Driver
	cfg    ExecutorConfig
	logger *slog.Logger
}

// NewExecutor wires an executor to a driver.
func NewExecutor(driver Driver, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{driver: driver, cfg: cfg.withDefaults(), logger: logger}
}

// Click scrolls el into view, waits for it to become interactable and clicks it
// natively, falling back to a script click. The error return is reserved for
// a lost session or cancelled context.
func (e *Executor) Click(ctx context.Context, el Element, label string) (ActionResult, error) {
	start := time.Now()

	if err := e.driver.ScrollIntoView(ctx, el); err != nil {
		if fatal := e.fatal(ctx, err); fatal != nil {
			return ActionResult{Path: PathNone, Err: err, Duration: time.Since(start)}, fatal
		}
		e.logger.Debug("scroll into view failed", "label", label, "error", err)
	}

	ready, err := e.waitFor(ctx, func(ctx context.Context) (bool, error) {
		return e.driver.Interactable(ctx, el)
	}, e.cfg.InteractableTimeout)
	if fatal := e.fatal(ctx, err); fatal != nil {
		return ActionResult{Path: PathNone, Err: err, Duration: time.Since(start)}, fatal
	}

	var nativeErr error
	if ready {
		nativeErr = e.driver.Click(ctx, el)
	} else {
		nativeErr = fmt.Errorf("%s not interactable within %s", label, e.cfg.InteractableTimeout)
	}
	if nativeErr == nil {
		e.logger.Info("click succeeded", "label", label, "path", PathNative)
		return ActionResult{OK: true, Path: PathNative, Duration: time.Since(start)}, nil
	}
	if fatal := e.fatal(ctx, nativeErr); fatal != nil {
		return ActionResult{Path: PathNone, Err: nativeErr, Duration: time.Since(start)}, fatal
	}
	e.logger.Warn("native click failed, trying script click", "label", label, "error", nativeErr)

	scriptErr := e.driver.ScriptClick(ctx, el)
	if scriptErr == nil {
		e.logger.Info("click succeeded", "label", label, "path", PathScript)
		return ActionResult{OK: true, Path: PathScript, Duration: time.Since(start)}, nil
	}
	if fatal := e.fatal(ctx, scriptErr); fatal != nil {
		return ActionResult{Path: PathNone, Err: scriptErr, Duration: time.Since(start)}, fatal
	}

	e.logger.Error("click failed on both paths", "label", label, "error", scriptErr)
	return ActionResult{
		Path:     PathNone,
		Err:      errors.Join(nativeErr, scriptErr),
		Duration: time.Since(start),
	}, nil
}

// Type replaces the content of el with text, falling back to a scripted
// replacement, and verifies the element is non-empty afterwards.
func (e *Executor) Type(ctx context.Context, el Element, text, label string) (ActionResult, error) {
	start := time.Now()

	nativeErr := e.driver.ClearAndType(ctx, el, text)
	if fatal := e.fatal(ctx, nativeErr); fatal != nil {
		return ActionResult{Path: PathNone, Err: nativeErr, Duration: time.Since(start)}, fatal
	}
	if nativeErr == nil {
		filled, err := e.verifyContent(ctx, el)
		if fatal := e.fatal(ctx, err); fatal != nil {
			return ActionResult{Path: PathNone, Err: err, Duration: time.Since(start)}, fatal
		}
		if filled {
			e.logger.Info("text entered", "label", label, "path", PathNative, "chars", len([]rune(text)))
			return ActionResult{OK: true, Path: PathNative, Duration: time.Since(start)}, nil
		}
		nativeErr = fmt.Errorf("%s still empty after typing", label)
	}
	e.logger.Warn("native typing failed, trying scripted content", "label", label, "error", nativeErr)

	scriptErr := e.driver.ScriptSetContent(ctx, el, text)
	if fatal := e.fatal(ctx, scriptErr); fatal != nil {
		return ActionResult{Path: PathNone, Err: scriptErr, Duration: time.Since(start)}, fatal
	}
	if scriptErr == nil {
		filled, err := e.verifyContent(ctx, el)
		if fatal := e.fatal(ctx, err); fatal != nil {
			return ActionResult{Path: PathNone, Err: err, Duration: time.Since(start)}, fatal
		}
		if filled {
			e.logger.Info("text entered", "label", label, "path", PathScript, "chars", len([]rune(text)))
			return ActionResult{OK: true, Path: PathScript, Duration: time.Since(start)}, nil
		}
		scriptErr = fmt.Errorf("%s still empty after scripted content", label)
	}

	e.logger.Error("text entry failed on both paths", "label", label, "error", scriptErr)
	return ActionResult{
		Path:     PathNone,
		Err:      errors.Join(nativeErr, scriptErr),
		Duration: time.Since(start),
	}, nil
}

func (e *Executor) verifyContent(ctx context.Context, el Element) (bool, error) {
	return e.waitFor(ctx, func(ctx context.Context) (bool, error) {
		content, err := e.driver.Content(ctx, el)
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(content) != "", nil
	}, e.cfg.VerifyTimeout)
}

// waitFor polls cond until it holds or timeout elapses. Non-fatal condition
// errors count as "not yet".
func (e *Executor) waitFor(ctx context.Context, cond func(context.Context) (bool, error), timeout time.Duration) (bool, error) {
	return pollUntil(ctx, e.cfg.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil {
			if fatal := e.fatal(ctx, err); fatal != nil {
				return false, fatal
			}
			return false, nil
		}
		return ok, nil
	})
}

// fatal returns a non-nil error when err ends the session or ctx is done.
func (e *Executor) fatal(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if IsSessionLost(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

// pollUntil evaluates cond at interval until it returns true, returns an
// error, or timeout elapses. cond runs at least once.
func pollUntil(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		left := time.Until(deadline)
		if left <= 0 {
			return false, nil
		}
		wait := interval
		if wait > left {
			wait = left
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}
