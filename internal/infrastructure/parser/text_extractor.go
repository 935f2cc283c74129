package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/extraction"
)

var (
	mdHeading  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)[^)]*\)`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|\*|_|~~|` + "`" + `)([^\s].*?[^\s]|[^\s])(\*\*|__|\*|_|~~|` + "`" + `)`)
)

// TextExtractor handles plain text and Markdown uploads.
type TextExtractor struct{}

var _ extraction.Strategy = (*TextExtractor)(nil)

// NewTextExtractor builds the text strategy.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (t *TextExtractor) Name() string {
	return "text"
}

func (t *TextExtractor) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Extract decodes the file and takes the first line as title.
// Markdown links and images are recorded in metadata and reduced to text.
func (t *TextExtractor) Extract(ctx context.Context, doc extraction.Document) (string, domain.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Metadata{}, err
	}

	raw := doc.Raw
	if !utf8.Valid(raw) {
		reader, err := charset.NewReader(bytes.NewReader(raw), "text/plain")
		if err != nil {
			return "", domain.Metadata{}, fmt.Errorf("detect charset: %w", err)
		}
		if raw, err = io.ReadAll(reader); err != nil {
			return "", domain.Metadata{}, fmt.Errorf("decode charset: %w", err)
		}
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")

	var meta domain.Metadata
	if isMarkdown(doc.Name) {
		for _, m := range mdImage.FindAllStringSubmatch(text, -1) {
			meta.Images = append(meta.Images, domain.Image{Src: m[2], Alt: m[1]})
		}
		text = mdImage.ReplaceAllString(text, "$1")
		for _, m := range mdLink.FindAllStringSubmatch(text, -1) {
			meta.Links = append(meta.Links, domain.Link{Href: m[2], Text: m[1]})
		}
		text = mdLink.ReplaceAllString(text, "$1")
		text = mdHeading.ReplaceAllString(text, "")
		text = mdEmphasis.ReplaceAllString(text, "$2")
	}

	text = normalizeText(text)
	if text == "" {
		return "", meta, fmt.Errorf("no text in %s", doc.Name)
	}
	if first, _, _ := strings.Cut(text, "\n"); first != "" {
		meta.Title = cleanInline(first)
	}
	return text, meta, nil
}

func isMarkdown(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}
