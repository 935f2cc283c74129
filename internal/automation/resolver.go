package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Element Element
	Locator Locator
	// Index is the 1-based position of the matching locator in its set.
	Index     int
	Total     int
	Attempted []Locator
}

// NotFoundError reports that no locator of a set matched in time.
type NotFoundError struct {
	Target    string
	Attempted []Locator
	Timeout   time.Duration
}

func (e *NotFoundError) Error() string {
	parts := make([]string, 0, len(e.Attempted))
	for _, loc := range e.Attempted {
		parts = append(parts, loc.String())
	}
	return fmt.Sprintf("no element for %s within %s (attempted %d: %s)",
		e.Target, e.Timeout, len(e.Attempted), strings.Join(parts, ", "))
}

// Resolver finds the first interactable element of an ordered selector set.
type Resolver struct {
	driver Driver
	poll   time.Duration
	logger *slog.Logger
}

// NewResolver builds a resolver; poll <= 0 uses the default interval.
func NewResolver(driver Driver, poll time.Duration, logger *slog.Logger) *Resolver {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{driver: driver, poll: poll, logger: logger}
}

// Resolve scans locators in order. Each locator gets an even share of the
// remaining total budget; a lost session aborts the scan immediately.
func (r *Resolver) Resolve(ctx context.Context, set SelectorSet, timeout time.Duration) (Resolution, error) {
	total := len(set.Locators)
	if total == 0 {
		return Resolution{}, fmt.Errorf("selector set %s is empty", set.Target)
	}

	deadline := time.Now().Add(timeout)
	attempted := make([]Locator, 0, total)

	for i, loc := range set.Locators {
		if err := ctx.Err(); err != nil {
			return Resolution{Attempted: attempted}, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		budget := remaining / time.Duration(total-i)

		attempted = append(attempted, loc)
		el, found, err := r.await(ctx, loc, budget)
		if err != nil {
			return Resolution{Attempted: attempted}, err
		}
		if found {
			r.logger.Debug("selector matched",
				"target", set.Target, "index", i+1, "of", total, "locator", loc.String())
			return Resolution{
				Element:   el,
				Locator:   loc,
				Index:     i + 1,
				Total:     total,
				Attempted: attempted,
			}, nil
		}

		if err := r.driver.Alive(ctx); err != nil {
			return Resolution{Attempted: attempted}, err
		}
		r.logger.Debug("selector exhausted", "target", set.Target, "index", i+1, "locator", loc.String())
	}

	return Resolution{Attempted: attempted}, &NotFoundError{
		Target:    set.Target,
		Attempted: attempted,
		Timeout:   timeout,
	}
}

// await polls one locator until it matches or its budget runs out.
func (r *Resolver) await(ctx context.Context, loc Locator, budget time.Duration) (Element, bool, error) {
	deadline := time.Now().Add(budget)
	for {
		el, found, err := r.driver.Query(ctx, loc)
		switch {
		case err == nil && found:
			return el, true, nil
		case err != nil && IsSessionLost(err):
			return Element{}, false, err
		case err != nil && ctx.Err() != nil:
			return Element{}, false, ctx.Err()
		case err != nil:
			// Malformed or unsupported expressions never match; move on.
			r.logger.Debug("selector query failed", "locator", loc.String(), "error", err)
			return Element{}, false, nil
		}

		wait := r.poll
		left := time.Until(deadline)
		if left <= 0 {
			return Element{}, false, nil
		}
		if wait > left {
			wait = left
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Element{}, false, ctx.Err()
		case <-timer.C:
		}
	}
}
