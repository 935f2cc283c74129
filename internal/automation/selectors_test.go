package automation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLocator(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		kind LocatorKind
		expr string
	}{
		{"#username", AttributeQuery, "#username"},
		{"//button[contains(., 'Post')]", StructuralPath, "//button[contains(., 'Post')]"},
		{"(//button)[2]", StructuralPath, "(//button)[2]"},
		{"./div", StructuralPath, "./div"},
		{"xpath: //div", StructuralPath, "//div"},
		{"css:/weird", AttributeQuery, "/weird"},
	}
	for _, tc := range cases {
		loc, err := ParseLocator(tc.raw)
		if err != nil {
			t.Fatalf("ParseLocator(%q) returned error: %v", tc.raw, err)
		}
		if loc.Kind != tc.kind || loc.Expr != tc.expr {
			t.Errorf("ParseLocator(%q) = %+v", tc.raw, loc)
		}
	}

	for _, raw := range []string{"", "   ", "xpath:", "css: "} {
		if _, err := ParseLocator(raw); err == nil {
			t.Errorf("ParseLocator(%q) expected error", raw)
		}
	}
}

func TestDefaultCatalogCoversTargets(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()
	for _, target := range []string{
		TargetLoginUsername, TargetLoginPassword, TargetLoginSubmit,
		TargetCompose, TargetEditor, TargetSubmit, TargetOverlayDismiss, TargetPublishSuccess,
	} {
		set, err := catalog.Set(target)
		if err != nil {
			t.Fatalf("target %s: %v", target, err)
		}
		if set.Version == "" {
			t.Errorf("target %s has no version", target)
		}
	}
}

func TestLoadCatalogOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "selectors.yaml")
	body := `selectorSets:
  - target: compose
    version: "2025.1"
    locators:
      - "button.new-compose"
      - "xpath://button[@data-new='1']"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	compose, err := catalog.Set(TargetCompose)
	if err != nil {
		t.Fatalf("compose missing: %v", err)
	}
	if compose.Version != "2025.1" || len(compose.Locators) != 2 {
		t.Fatalf("unexpected compose set %+v", compose)
	}
	if compose.Locators[1].Kind != StructuralPath {
		t.Fatalf("expected xpath locator, got %+v", compose.Locators[1])
	}
	if _, err := catalog.Set(TargetEditor); err != nil {
		t.Fatalf("defaults lost: %v", err)
	}
}

func TestLoadCatalogRejectsEmptySet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(path, []byte("selectorSets:\n  - target: editor\n    locators: []\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for empty locator list")
	}
}
