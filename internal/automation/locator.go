package automation

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocatorKind tags how a locator expression is evaluated.
type LocatorKind int

const (
	// AttributeQuery is a CSS selector (attributes, classes, ids).
	AttributeQuery LocatorKind = iota
	// StructuralPath is an XPath expression.
	StructuralPath
)

func (k LocatorKind) String() string {
	if k == StructuralPath {
		return "xpath"
	}
	return "css"
}

// Locator identifies a UI element on the target page.
type Locator struct {
	Kind LocatorKind
	Expr string
}

// CSS builds an attribute query locator.
func CSS(expr string) Locator {
	return Locator{Kind: AttributeQuery, Expr: expr}
}

// XPath builds a structural path locator.
func XPath(expr string) Locator {
	return Locator{Kind: StructuralPath, Expr: expr}
}

// ParseLocator accepts "xpath:" or "css:" prefixes and otherwise autodetects
// path queries by their leading "/", "(" or "./".
func ParseLocator(raw string) (Locator, error) {
	expr := strings.TrimSpace(raw)
	if expr == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	switch {
	case strings.HasPrefix(expr, "xpath:"):
		expr = strings.TrimSpace(strings.TrimPrefix(expr, "xpath:"))
		if expr == "" {
			return Locator{}, fmt.Errorf("empty xpath locator")
		}
		return XPath(expr), nil
	case strings.HasPrefix(expr, "css:"):
		expr = strings.TrimSpace(strings.TrimPrefix(expr, "css:"))
		if expr == "" {
			return Locator{}, fmt.Errorf("empty css locator")
		}
		return CSS(expr), nil
	case strings.HasPrefix(expr, "/"), strings.HasPrefix(expr, "("), strings.HasPrefix(expr, "./"):
		return XPath(expr), nil
	default:
		return CSS(expr), nil
	}
}

// MustParseLocators parses a static list and panics on malformed input.
func MustParseLocators(raw ...string) []Locator {
	out := make([]Locator, 0, len(raw))
	for _, r := range raw {
		loc, err := ParseLocator(r)
		if err != nil {
			panic(err)
		}
		out = append(out, loc)
	}
	return out
}

func (l Locator) String() string {
	return l.Kind.String() + ":" + l.Expr
}

// UnmarshalYAML lets catalogs list locators as plain strings.
func (l *Locator) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseLocator(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML writes the prefixed textual form.
func (l Locator) MarshalYAML() (any, error) {
	return l.String(), nil
}
