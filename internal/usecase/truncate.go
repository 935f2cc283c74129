package usecase

import (
	"strings"
	"unicode"
)

// DefaultEllipsis marks text shortened by Truncate.
const DefaultEllipsis = "..."

// Truncate shortens text to at most limit runes including the ellipsis.
// It cuts after the last sentence end or line break that fits, provided the
// cut keeps at least half of the limit; otherwise it cuts at the last word
// boundary. A single word longer than the limit is the only case cut mid-word.
func Truncate(text string, limit int, ellipsis string) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	budget := limit - len([]rune(ellipsis))
	if budget <= 0 {
		return string([]rune(ellipsis)[:limit])
	}

	if cut := sentenceCut(runes, budget); cut > limit/2 {
		return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + ellipsis
	}
	if cut := wordCut(runes, budget); cut > 0 {
		return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + ellipsis
	}
	return string(runes[:budget]) + ellipsis
}

// sentenceCut returns the largest n <= budget such that runes[:n] ends a
// sentence or precedes a line break, or 0.
func sentenceCut(runes []rune, budget int) int {
	for i := budget; i > 0; i-- {
		prev := runes[i-1]
		switch {
		case runes[i] == '\n':
			return i
		case (prev == '.' || prev == '!' || prev == '?') && unicode.IsSpace(runes[i]):
			return i
		}
	}
	return 0
}

// wordCut returns the largest n <= budget such that runes[n] is whitespace, or 0.
func wordCut(runes []rune, budget int) int {
	for i := budget; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return 0
}
