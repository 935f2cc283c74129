package storage

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

var (
	slugUnsafe = regexp.MustCompile(`[^a-z0-9\s\-_]`)
	slugSpaces = regexp.MustCompile(`[\s\-]+`)
)

// Slugify folds accents and reduces title to a filesystem-safe name.
// It returns fallback when nothing usable remains.
func Slugify(title, fallback string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, title)
	if err != nil {
		folded = title
	}

	slug := strings.ToLower(folded)
	slug = slugUnsafe.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = strings.Trim(slug, "-_")

	if len(slug) > maxSlugLength {
		cut := slug[:maxSlugLength]
		if i := strings.LastIndex(cut, "-"); i > 0 {
			cut = cut[:i]
		}
		slug = strings.Trim(cut, "-_")
	}
	if slug == "" {
		return fallback
	}
	return slug
}
