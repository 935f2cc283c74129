package automation

import (
	"context"
	"errors"
)

// ErrSessionLost marks errors caused by a dead browser session.
var ErrSessionLost = errors.New("automation session lost")

// Element is an opaque handle to a matched node. Handles are only valid
// until the next navigation; callers must resolve again instead of caching.
type Element struct {
	Ref     string
	Locator Locator
}

// Driver is the browser seam used by the resolver, executor and session.
// Implementations must wrap ErrSessionLost when the underlying browser died.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Query returns the first interactable element matching loc, without waiting.
	Query(ctx context.Context, loc Locator) (Element, bool, error)
	Interactable(ctx context.Context, el Element) (bool, error)
	Enabled(ctx context.Context, el Element) (bool, error)
	ScrollIntoView(ctx context.Context, el Element) error
	Click(ctx context.Context, el Element) error
	ScriptClick(ctx context.Context, el Element) error
	// ClearAndType selects all existing content, deletes it and types text.
	ClearAndType(ctx context.Context, el Element, text string) error
	ScriptSetContent(ctx context.Context, el Element, text string) error
	Content(ctx context.Context, el Element) (string, error)

	Screenshot(ctx context.Context) ([]byte, error)
	// Alive reports ErrSessionLost when the browser can no longer be driven.
	Alive(ctx context.Context) error
	Close() error
}

// DriverFactory starts a fresh browser for one session.
type DriverFactory interface {
	NewDriver(ctx context.Context) (Driver, error)
}

// IsSessionLost reports whether err means the browser died.
func IsSessionLost(err error) bool {
	return errors.Is(err, ErrSessionLost)
}
