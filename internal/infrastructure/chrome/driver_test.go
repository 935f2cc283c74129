package chrome

import (
	"strings"
	"testing"

	"ContentPublisher/internal/automation"
)

func TestJSCallQuotesArguments(t *testing.T) {
	t.Parallel()

	script, err := jsCall(`f(%s, %s)`, `a"b`, "line\nbreak")
	if err != nil {
		t.Fatalf("jsCall returned error: %v", err)
	}
	if script != `f("a\"b", "line\nbreak")` {
		t.Fatalf("unexpected script %s", script)
	}
}

func TestSelectorAddressesRef(t *testing.T) {
	t.Parallel()

	el := automation.Element{Ref: "abc-123", Locator: automation.CSS("#x")}
	if got := selector(el); got != `[data-cp-ref="abc-123"]` {
		t.Fatalf("unexpected selector %s", got)
	}
}

func TestQueryScriptEmbedsLocator(t *testing.T) {
	t.Parallel()

	loc := automation.XPath("//button[contains(., 'Post')]")
	script, err := jsCall(queryScript, loc.Kind.String(), loc.Expr, refAttribute, "r1")
	if err != nil {
		t.Fatalf("jsCall returned error: %v", err)
	}
	if !strings.Contains(script, `("xpath", "//button[contains(., 'Post')]", "data-cp-ref", "r1")`) {
		t.Fatalf("script arguments not embedded: %s", script[len(script)-120:])
	}
}

func TestNewFactoryDefaultsWindow(t *testing.T) {
	t.Parallel()

	f := NewFactory(Options{Headless: true}, nil)
	if f.opts.WindowWidth != 1920 || f.opts.WindowHeight != 1080 {
		t.Fatalf("unexpected window %dx%d", f.opts.WindowWidth, f.opts.WindowHeight)
	}
}
