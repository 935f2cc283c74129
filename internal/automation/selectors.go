package automation

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Logical UI targets on the publishing platform.
const (
	TargetLoginUsername  = "login.username"
	TargetLoginPassword  = "login.password"
	TargetLoginSubmit    = "login.submit"
	TargetCompose        = "compose"
	TargetEditor         = "editor"
	TargetSubmit         = "submit"
	TargetOverlayDismiss = "overlay.dismiss"
	TargetPublishSuccess = "publish.success"
)

// SelectorSet is the ordered, versioned list of locators for one UI target.
// Earlier locators are more specific or more recently verified.
type SelectorSet struct {
	Target   string    `yaml:"target"`
	Version  string    `yaml:"version"`
	Locators []Locator `yaml:"locators"`
}

// Catalog maps targets to selector sets.
type Catalog map[string]SelectorSet

// Set returns the selector set for target or an error when absent/empty.
func (c Catalog) Set(target string) (SelectorSet, error) {
	set, ok := c[target]
	if !ok || len(set.Locators) == 0 {
		return SelectorSet{}, fmt.Errorf("selector set %q is not configured", target)
	}
	if set.Target == "" {
		set.Target = target
	}
	return set, nil
}

// Targets lists configured targets in stable order.
func (c Catalog) Targets() []string {
	out := make([]string, 0, len(c))
	for target := range c {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

type catalogFile struct {
	Sets []SelectorSet `yaml:"selectorSets"`
}

// LoadCatalog reads a YAML selector file and overlays it on the built-in catalog.
// An empty path returns the defaults.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse selector catalog %s: %w", path, err)
	}

	for _, set := range file.Sets {
		if set.Target == "" {
			return nil, fmt.Errorf("selector catalog %s: set without target", path)
		}
		if len(set.Locators) == 0 {
			return nil, fmt.Errorf("selector catalog %s: target %s has no locators", path, set.Target)
		}
		catalog[set.Target] = set
	}
	return catalog, nil
}

const defaultCatalogVersion = "2024.2"

// DefaultCatalog returns the built-in selector sets.
func DefaultCatalog() Catalog {
	sets := []SelectorSet{
		{
			Target: TargetLoginUsername,
			Locators: MustParseLocators(
				"#username",
				"input[name='session_key']",
				"input[autocomplete='username']",
			),
		},
		{
			Target: TargetLoginPassword,
			Locators: MustParseLocators(
				"#password",
				"input[name='session_password']",
				"input[type='password']",
			),
		},
		{
			Target: TargetLoginSubmit,
			Locators: MustParseLocators(
				"button[type='submit'][aria-label*='Sign in']",
				"button[data-litms-control-urn='login-submit']",
				"button[type='submit']",
				"//button[contains(., 'Sign in') or contains(., 'Entrar')]",
			),
		},
		{
			Target: TargetCompose,
			Locators: MustParseLocators(
				"button[aria-label*='Start a post']",
				"button[aria-label*='Começar um post']",
				"button[aria-label*='Commencer un post']",
				"button[aria-label*='Empezar una publicación']",
				".share-box-feed-entry__trigger",
				"[data-test-id='share-box-trigger']",
				"[data-test-id='start-a-post-button']",
				".feed-shared-update-v2__start-conversation-button",
				"//button[contains(text(), 'Start a post')]",
				"//button[contains(text(), 'Começar um post')]",
				".artdeco-button--primary[aria-label*='post']",
				"button.share-box-feed-entry__trigger",
				".share-box-feed-entry button",
				"//button[contains(@aria-label, 'post') or contains(@aria-label, 'Post')]",
				"button[data-tracking-control-name='public_post_feed-header_publisher-text-content']",
			),
		},
		{
			Target: TargetEditor,
			Locators: MustParseLocators(
				".ql-editor[data-placeholder]",
				"div[role='textbox']",
				"[data-placeholder*='What do you want to talk about']",
				"[data-placeholder*='Do que você gostaria de falar']",
				".share-creation-state__text-editor .ql-editor",
				".ql-editor",
				"div[contenteditable='true']",
				".mentions-texteditor__content",
			),
		},
		{
			Target: TargetSubmit,
			Locators: MustParseLocators(
				"[data-test-id='share-actions-publish-button']",
				".share-actions__primary-action",
				"//button[contains(text(),'Post') and not(contains(text(),'postpone'))]",
				"//button[contains(text(),'Publicar')]",
				"//button[contains(text(),'Publier')]",
				"[data-test-id='post-button']",
				"button[aria-label*='Post']",
				"button[aria-label*='Publicar']",
				".artdeco-button--primary[type='submit']",
				"button[type='submit']",
			),
		},
		{
			Target: TargetOverlayDismiss,
			Locators: MustParseLocators(
				".artdeco-modal__dismiss",
				"[aria-label*='Dismiss']",
				"[aria-label*='Close']",
				"[aria-label*='Fechar']",
			),
		},
		{
			Target: TargetPublishSuccess,
			Locators: MustParseLocators(
				"[data-test-id='post-success']",
				".artdeco-toast-item--visible",
			),
		},
	}

	catalog := make(Catalog, len(sets))
	for _, set := range sets {
		set.Version = defaultCatalogVersion
		catalog[set.Target] = set
	}
	return catalog
}
