package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/extraction"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Go Concurrency Patterns</title>
  <meta name="description" content="Pipelines and cancellation in Go.">
  <meta name="author" content="Ana Souza">
  <meta name="keywords" content="go, concurrency , pipelines">
</head>
<body>
  <nav><a href="/">Home</a><a href="/about">About</a></nav>
  <main>
    <h1>Go Concurrency Patterns</h1>
    <p>Pipelines let you compose stages that communicate over channels. Each stage receives values from upstream, transforms them, and sends them downstream.</p>
    <p>Cancellation is signalled by closing a done channel or cancelling a context, which lets every stage stop early and release resources.</p>
    <img src="/img/pipeline.png" alt="pipeline diagram">
    <p>Read more in the <a href="https://go.dev/blog/pipelines" title="blog">official blog post about pipelines and cancellation</a>.</p>
  </main>
  <footer>Copyright footer text that should never appear in extracted content.</footer>
  <script>console.log("tracking")</script>
</body>
</html>`

func TestHTMLExtractorTextAndMetadata(t *testing.T) {
	t.Parallel()

	text, meta, err := NewHTMLExtractor().Extract(context.Background(), extraction.Document{Name: "go.html", Raw: []byte(articleHTML)})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if meta.Title != "Go Concurrency Patterns" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Author != "Ana Souza" || meta.Description != "Pipelines and cancellation in Go." {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if strings.Join(meta.Keywords, "|") != "go|concurrency|pipelines" {
		t.Fatalf("unexpected keywords %v", meta.Keywords)
	}
	if len(meta.Images) != 1 || meta.Images[0].Alt != "pipeline diagram" {
		t.Fatalf("unexpected images %+v", meta.Images)
	}
	if len(meta.Links) != 3 {
		t.Fatalf("expected 3 links, got %+v", meta.Links)
	}

	if !strings.Contains(text, "Pipelines let you compose stages") || !strings.Contains(text, "Cancellation is signalled") {
		t.Fatalf("main text missing: %q", text)
	}
	for _, unwanted := range []string{"tracking", "Copyright footer"} {
		if strings.Contains(text, unwanted) {
			t.Fatalf("text contains %q: %q", unwanted, text)
		}
	}
	if !strings.Contains(text, "\n") {
		t.Fatalf("expected paragraph breaks in %q", text)
	}
}

func TestHTMLExtractorFallsBackToBody(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><div class="wrapper"><span>Short note about the release of version two today.</span></div></body></html>`)
	text, _, err := NewHTMLExtractor().Extract(context.Background(), extraction.Document{Name: "note.html", Raw: raw})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !strings.Contains(text, "Short note about the release") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestHTMLExtractorDecodesLegacyCharset(t *testing.T) {
	t.Parallel()

	// "Ação" in ISO-8859-1.
	raw := append([]byte(`<html><head><meta charset="iso-8859-1"><title>A`), 0xe7, 0xe3, 'o')
	raw = append(raw, []byte(`</title></head><body><p>Texto com acentua`)...)
	raw = append(raw, 0xe7, 0xe3, 'o')
	raw = append(raw, []byte(` suficiente para passar.</p></body></html>`)...)

	_, meta, err := NewHTMLExtractor().Extract(context.Background(), extraction.Document{Name: "latin1.html", Raw: raw})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.Title != "Ação" {
		t.Fatalf("expected decoded title, got %q", meta.Title)
	}
}

func TestTextExtractorMarkdown(t *testing.T) {
	t.Parallel()

	raw := "# Weekly Notes\n\nWe shipped **three** features. See [the changelog](https://example.com/log).\n\n![chart](chart.png)\n"
	text, meta, err := NewTextExtractor().Extract(context.Background(), extraction.Document{Name: "notes.md", Raw: []byte(raw)})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.Title != "Weekly Notes" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if !strings.Contains(text, "We shipped three features. See the changelog.") {
		t.Fatalf("markdown not reduced: %q", text)
	}
	if len(meta.Links) != 1 || meta.Links[0].Href != "https://example.com/log" {
		t.Fatalf("unexpected links %+v", meta.Links)
	}
	if len(meta.Images) != 1 || meta.Images[0].Src != "chart.png" {
		t.Fatalf("unexpected images %+v", meta.Images)
	}
}

func TestExtractorDispatchAndLimits(t *testing.T) {
	t.Parallel()

	registry := extraction.NewRegistry()
	registry.Register(NewHTMLExtractor())
	registry.Register(NewTextExtractor())
	extractor := extraction.NewExtractor(registry, 1024, nil)

	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	text, meta, err := extractor.Extract(context.Background(), write("post.TXT", "Title line\n\nBody words here"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.WordCount != 5 || meta.CharCount != len([]rune(text)) {
		t.Fatalf("unexpected counts %+v for %q", meta, text)
	}

	cases := map[string]string{
		"doc.pdf":   "binary",
		"big.txt":   strings.Repeat("x", 2048),
		"empty.txt": "",
	}
	for name, body := range cases {
		_, _, err := extractor.Extract(context.Background(), write(name, body))
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Kind != domain.KindExtraction {
			t.Errorf("%s: expected extraction error, got %v", name, err)
		}
	}

	if !registry.Supports("a.htm") || registry.Supports("a.docx") {
		t.Fatalf("unexpected support matrix %v", registry.Extensions())
	}
}
