package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/extraction"
)

const (
	maxLinkText = 100
	// Readability output shorter than this falls back to selector heuristics.
	minReadableChars = 200
)

var (
	excludedTags    = "script, style, noscript, nav, footer, header, aside, form, button, iframe"
	contentSelector = []string{"main", "article", ".content", ".post", ".article", "#content", "#main"}
	candidateClass  = regexp.MustCompile(`(?i)content|post|article`)
	blockTag        = regexp.MustCompile(`(?i)<(/?)(p|div|br|li|h[1-6]|tr|blockquote|section|article)\b([^>]*)>`)
	inlineSpace     = regexp.MustCompile(`[ \t\f\v\r]+`)
	manyBreaks      = regexp.MustCompile(`\n{3,}`)
)

// HTMLExtractor turns uploaded HTML articles into plain paragraphs.
type HTMLExtractor struct{}

var _ extraction.Strategy = (*HTMLExtractor)(nil)

// NewHTMLExtractor builds the HTML strategy.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Name identifies the strategy inside the registry.
func (h *HTMLExtractor) Name() string {
	return "html"
}

// Extensions lists handled file types.
func (h *HTMLExtractor) Extensions() []string {
	return []string{".html", ".htm"}
}

// Extract decodes the document, collects metadata and returns the main text.
func (h *HTMLExtractor) Extract(ctx context.Context, doc extraction.Document) (string, domain.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Metadata{}, err
	}

	decoded, err := decodeHTML(doc.Raw)
	if err != nil {
		return "", domain.Metadata{}, err
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return "", domain.Metadata{}, fmt.Errorf("parse document: %w", err)
	}
	meta := collectMetadata(page)

	text, title := readableText(decoded, doc.Name)
	if len([]rune(text)) < minReadableChars {
		if fallback := selectorText(page); len(fallback) > len(text) {
			text = fallback
		}
	}
	if meta.Title == "" {
		meta.Title = title
	}
	if strings.TrimSpace(text) == "" {
		return "", meta, fmt.Errorf("no readable text in %s", doc.Name)
	}
	return text, meta, nil
}

func decodeHTML(raw []byte) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), "text/html")
	if err != nil {
		return raw, nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return decoded, nil
}

func collectMetadata(page *goquery.Document) domain.Metadata {
	var meta domain.Metadata

	meta.Title = cleanInline(page.Find("title").First().Text())
	meta.Description = metaContent(page, "description")
	meta.Author = metaContent(page, "author")
	if keywords := metaContent(page, "keywords"); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				meta.Keywords = append(meta.Keywords, kw)
			}
		}
	}
	if meta.Title == "" {
		meta.Title = cleanInline(page.Find("h1").First().Text())
	}

	page.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")
		title, _ := img.Attr("title")
		meta.Images = append(meta.Images, domain.Image{Src: src, Alt: alt, Title: title})
	})

	page.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title, _ := a.Attr("title")
		text := []rune(cleanInline(a.Text()))
		if len(text) > maxLinkText {
			text = text[:maxLinkText]
		}
		meta.Links = append(meta.Links, domain.Link{Href: href, Text: string(text), Title: title})
	})

	return meta
}

func metaContent(page *goquery.Document, name string) string {
	content, _ := page.Find(fmt.Sprintf(`meta[name="%s"]`, name)).First().Attr("content")
	return strings.TrimSpace(content)
}

// readableText runs the readability heuristics and flattens the article HTML.
func readableText(decoded []byte, name string) (string, string) {
	pageURL, _ := url.Parse("file:///" + url.PathEscape(name))
	article, err := readability.FromReader(bytes.NewReader(decoded), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return "", ""
	}
	return flattenHTML(article.Content), cleanInline(article.Title)
}

// selectorText strips chrome elements and takes the first non-empty content
// region, then the largest content-like block, then the body.
func selectorText(page *goquery.Document) string {
	page.Find(excludedTags).Remove()

	for _, sel := range contentSelector {
		node := page.Find(sel).First()
		if node.Length() > 0 && strings.TrimSpace(node.Text()) != "" {
			return selectionText(node)
		}
	}

	var best *goquery.Selection
	bestLen := 0
	page.Find("main, article, div").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if !candidateClass.MatchString(class) {
			return
		}
		if n := len(s.Text()); n > bestLen {
			best, bestLen = s, n
		}
	})
	if best != nil {
		return selectionText(best)
	}
	return selectionText(page.Find("body"))
}

func selectionText(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return normalizeText(s.Text())
	}
	return flattenHTML(html)
}

// flattenHTML keeps block boundaries as line breaks.
func flattenHTML(fragment string) string {
	spaced := blockTag.ReplaceAllString(fragment, "\n<$1$2$3>\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return normalizeText(fragment)
	}
	return normalizeText(doc.Text())
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSpace(inlineSpace.ReplaceAllString(line, " ")))
	}
	joined := strings.Join(out, "\n")
	joined = manyBreaks.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

func cleanInline(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
