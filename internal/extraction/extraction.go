package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

// Document is a file handed to a strategy.
type Document struct {
	Name string
	Raw  []byte
}

// Strategy extracts text for a family of file types (HTML, plain text, etc.).
type Strategy interface {
	Name() string
	Extensions() []string
	Extract(ctx context.Context, doc Document) (string, domain.Metadata, error)
}

// Registry maps lower-case file extensions to strategies.
type Registry struct {
	byExt map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Strategy{}}
}

// Register adds or replaces a strategy for all of its extensions.
func (r *Registry) Register(strategy Strategy) {
	if r.byExt == nil {
		r.byExt = map[string]Strategy{}
	}
	for _, ext := range strategy.Extensions() {
		r.byExt[strings.ToLower(ext)] = strategy
	}
}

// Resolve returns the strategy for ext or an error if it is absent.
func (r *Registry) Resolve(ext string) (Strategy, error) {
	if strategy, ok := r.byExt[strings.ToLower(ext)]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("no extractor registered for %q", ext)
}

// Supports reports whether a file name has a registered extension.
func (r *Registry) Supports(name string) bool {
	_, err := r.Resolve(filepath.Ext(name))
	return err == nil
}

// Extensions lists registered extensions in stable order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extractor reads a file from disk and dispatches by extension.
type Extractor struct {
	registry *Registry
	maxBytes int64
	logger   *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// NewExtractor wires a registry with a per-file size limit.
func NewExtractor(registry *Registry, maxBytes int64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{registry: registry, maxBytes: maxBytes, logger: logger.With("component", "extraction")}
}

// Extract returns cleaned text and metadata. Failures are ExtractionErrors.
func (e *Extractor) Extract(ctx context.Context, path string) (string, domain.Metadata, error) {
	const step = "extract"

	strategy, err := e.registry.Resolve(filepath.Ext(path))
	if err != nil {
		return "", domain.Metadata{}, domain.NewError(domain.KindExtraction, step, err)
	}

	raw, err := e.read(path)
	if err != nil {
		return "", domain.Metadata{}, domain.NewError(domain.KindExtraction, step, err)
	}

	text, meta, err := strategy.Extract(ctx, Document{Name: filepath.Base(path), Raw: raw})
	if err != nil {
		return "", domain.Metadata{}, domain.NewError(domain.KindExtraction, step, fmt.Errorf("%s: %w", strategy.Name(), err))
	}

	text = strings.TrimSpace(text)
	meta.CharCount = utf8.RuneCountInString(text)
	meta.WordCount = len(strings.Fields(text))

	e.logger.Info("text extracted",
		"file", filepath.Base(path), "strategy", strategy.Name(),
		"chars", meta.CharCount, "words", meta.WordCount, "title", meta.Title)
	return text, meta, nil
}

func (e *Extractor) read(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if e.maxBytes > 0 {
		reader = io.LimitReader(file, e.maxBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if e.maxBytes > 0 && int64(len(raw)) > e.maxBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", e.maxBytes)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("source file is empty")
	}
	return raw, nil
}
