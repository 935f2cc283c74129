package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"

	"ContentPublisher/internal/automation"
	"ContentPublisher/pkg/logger"
)

const refAttribute = "data-cp-ref"

// Options configures how browsers are launched.
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	// RemoteURL attaches to an existing DevTools endpoint instead of launching.
	RemoteURL string
	// ProfileRoot holds the per-session user data directories.
	ProfileRoot string
	UserAgent   string
	Debug       bool
}

// Factory launches one isolated browser per session.
type Factory struct {
	opts   Options
	logger *slog.Logger
}

var _ automation.DriverFactory = (*Factory)(nil)

// NewFactory creates a chromedp-backed driver factory.
func NewFactory(opts Options, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	return &Factory{opts: opts, logger: logger.With("component", "chrome")}
}

// NewDriver starts a browser and opens a blank tab.
func (f *Factory) NewDriver(ctx context.Context) (automation.Driver, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
		profileDir  string
	)

	if f.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, f.opts.RemoteURL)
	} else {
		root := f.opts.ProfileRoot
		if root == "" {
			root = os.TempDir()
		}
		profileDir = filepath.Join(root, "profile-"+uuid.NewString())
		if err := os.MkdirAll(profileDir, 0o700); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", f.opts.Headless),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(f.opts.WindowWidth, f.opts.WindowHeight),
			chromedp.UserDataDir(profileDir),
		)
		if f.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(f.opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithErrorf(logger.Printf(f.logger, "chromedp", slog.LevelWarn)),
	}
	if f.opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(logger.Printf(f.logger, "chromedp", slog.LevelDebug)))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	d := &Driver{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		profileDir:  profileDir,
		logger:      f.logger,
	}

	// The first Run launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	f.logger.Info("browser started", "remote", f.opts.RemoteURL != "", "headless", f.opts.Headless)
	return d, nil
}

// Driver drives a single Chrome tab. Matched elements are tagged with a
// unique attribute so later actions can address them by CSS.
type Driver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	profileDir  string
	logger      *slog.Logger
}

var _ automation.Driver = (*Driver)(nil)

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *Driver) Reload(ctx context.Context) error {
	return d.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *Driver) Location(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

type queryResult struct {
	Found bool   `json:"found"`
	Error string `json:"error"`
}

const queryScript = `(function(kind, expr, attr, ref) {
  function visible(el) {
    const r = el.getBoundingClientRect();
    const s = window.getComputedStyle(el);
    return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
  }
  let nodes = [];
  try {
    if (kind === 'xpath') {
      const snap = document.evaluate(expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
      for (let i = 0; i < snap.snapshotLength; i++) nodes.push(snap.snapshotItem(i));
    } else {
      nodes = Array.from(document.querySelectorAll(expr));
    }
  } catch (e) {
    return {found: false, error: String(e)};
  }
  for (const el of nodes) {
    if (el.nodeType === 1 && visible(el) && !el.disabled) {
      el.setAttribute(attr, ref);
      return {found: true, error: ''};
    }
  }
  return {found: false, error: ''};
})(%s, %s, %s, %s)`

// Query tags the first visible, enabled match of loc.
func (d *Driver) Query(ctx context.Context, loc automation.Locator) (automation.Element, bool, error) {
	ref := uuid.NewString()
	script, err := jsCall(queryScript, loc.Kind.String(), loc.Expr, refAttribute, ref)
	if err != nil {
		return automation.Element{}, false, err
	}

	var res queryResult
	if err := d.run(ctx, evaluate(script, &res)); err != nil {
		return automation.Element{}, false, err
	}
	if res.Error != "" {
		return automation.Element{}, false, fmt.Errorf("query %s: %s", loc, res.Error)
	}
	if !res.Found {
		return automation.Element{}, false, nil
	}
	return automation.Element{Ref: ref, Locator: loc}, true, nil
}

const interactableScript = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return 'stale';
  const r = el.getBoundingClientRect();
  if (r.width === 0 || r.height === 0) return 'no';
  const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
  return (top === el || el.contains(top)) ? 'yes' : 'no';
})(%s)`

func (d *Driver) Interactable(ctx context.Context, el automation.Element) (bool, error) {
	return d.elementCheck(ctx, interactableScript, el)
}

const enabledScript = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return 'stale';
  return (el.disabled || el.getAttribute('aria-disabled') === 'true') ? 'no' : 'yes';
})(%s)`

func (d *Driver) Enabled(ctx context.Context, el automation.Element) (bool, error) {
	return d.elementCheck(ctx, enabledScript, el)
}

func (d *Driver) ScrollIntoView(ctx context.Context, el automation.Element) error {
	return d.run(ctx, chromedp.ScrollIntoView(selector(el), chromedp.ByQuery))
}

func (d *Driver) Click(ctx context.Context, el automation.Element) error {
	return d.run(ctx, chromedp.Click(selector(el), chromedp.ByQuery, chromedp.NodeVisible))
}

const scriptClickScript = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return 'stale';
  el.click();
  return 'yes';
})(%s)`

func (d *Driver) ScriptClick(ctx context.Context, el automation.Element) error {
	ok, err := d.elementCheck(ctx, scriptClickScript, el)
	if err == nil && !ok {
		err = errors.New("script click rejected")
	}
	return err
}

func (d *Driver) ClearAndType(ctx context.Context, el automation.Element, text string) error {
	sel := selector(el)
	return d.run(ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Delete),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

const setContentScript = `(function(sel, text) {
  const el = document.querySelector(sel);
  if (!el) return 'stale';
  el.focus();
  if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') {
    el.value = text;
  } else {
    el.innerText = text;
  }
  el.dispatchEvent(new Event('input', {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return 'yes';
})(%s, %s)`

func (d *Driver) ScriptSetContent(ctx context.Context, el automation.Element, text string) error {
	script, err := jsCall(setContentScript, selector(el), text)
	if err != nil {
		return err
	}
	var state string
	if err := d.run(ctx, evaluate(script, &state)); err != nil {
		return err
	}
	if state == "stale" {
		return staleErr(el)
	}
	return nil
}

const contentScript = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return null;
  if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') return el.value;
  return el.innerText;
})(%s)`

func (d *Driver) Content(ctx context.Context, el automation.Element) (string, error) {
	script, err := jsCall(contentScript, selector(el))
	if err != nil {
		return "", err
	}
	var content *string
	if err := d.run(ctx, evaluate(script, &content)); err != nil {
		return "", err
	}
	if content == nil {
		return "", staleErr(el)
	}
	return *content, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Alive evaluates a trivial expression to prove the tab still responds.
func (d *Driver) Alive(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var one int
	err := d.run(pingCtx, evaluate("1", &one))
	if err == nil || automation.IsSessionLost(err) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %v", automation.ErrSessionLost, err)
}

// Close shuts the tab and browser and removes the throwaway profile.
func (d *Driver) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	if d.profileDir != "" {
		if err := os.RemoveAll(d.profileDir); err != nil {
			return fmt.Errorf("remove profile dir: %w", err)
		}
	}
	return nil
}

// run executes actions on the browser tab, bounded by ctx. A dead browser
// context is reported as a lost session.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", automation.ErrSessionLost, err)
	}

	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if d.ctx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) {
		return fmt.Errorf("%w: %v", automation.ErrSessionLost, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (d *Driver) elementCheck(ctx context.Context, tmpl string, el automation.Element) (bool, error) {
	script, err := jsCall(tmpl, selector(el))
	if err != nil {
		return false, err
	}
	var state string
	if err := d.run(ctx, evaluate(script, &state)); err != nil {
		return false, err
	}
	if state == "stale" {
		return false, staleErr(el)
	}
	return state == "yes", nil
}

func evaluate(script string, res any) chromedp.Action {
	return chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	})
}

func selector(el automation.Element) string {
	return fmt.Sprintf(`[%s="%s"]`, refAttribute, el.Ref)
}

func staleErr(el automation.Element) error {
	return fmt.Errorf("element %s is no longer attached", el.Locator)
}

// jsCall formats tmpl with JSON-encoded string arguments.
func jsCall(tmpl string, args ...string) (string, error) {
	encoded := make([]any, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("encode script argument: %w", err)
		}
		encoded[i] = string(raw)
	}
	return fmt.Sprintf(tmpl, encoded...), nil
}
