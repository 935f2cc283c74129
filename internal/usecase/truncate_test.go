package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateKeepsShortText(t *testing.T) {
	t.Parallel()

	if got := Truncate("short post", 1300, DefaultEllipsis); got != "short post" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncateAtSentenceBoundary(t *testing.T) {
	t.Parallel()

	head := strings.Repeat("word ", 255) + "done." // 1280 runes ending with a period
	if utf8.RuneCountInString(head) != 1280 {
		t.Fatalf("fixture length %d", utf8.RuneCountInString(head))
	}
	text := head + " " + strings.Repeat("tail ", 24)[:119]
	if utf8.RuneCountInString(text) != 1400 {
		t.Fatalf("fixture length %d", utf8.RuneCountInString(text))
	}

	got := Truncate(text, 1300, DefaultEllipsis)
	if got != head+DefaultEllipsis {
		t.Fatalf("expected cut at the sentence end, got suffix %q", got[len(got)-20:])
	}
}

func TestTruncateAtLineBreak(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 900) + "\n" + strings.Repeat("b ", 300)
	got := Truncate(text, 1000, DefaultEllipsis)
	if got != strings.Repeat("a", 900)+DefaultEllipsis {
		t.Fatalf("expected cut at the line break, got %d runes", utf8.RuneCountInString(got))
	}
}

func TestTruncateFallsBackToWordBoundary(t *testing.T) {
	t.Parallel()

	// The only sentence end sits below half the limit.
	text := "Intro. " + strings.Repeat("lorem ipsum ", 150)
	got := Truncate(text, 1300, DefaultEllipsis)

	if n := utf8.RuneCountInString(got); n > 1300 {
		t.Fatalf("result has %d runes", n)
	}
	if !strings.HasSuffix(got, "ipsum"+DefaultEllipsis) && !strings.HasSuffix(got, "lorem"+DefaultEllipsis) {
		t.Fatalf("cut mid-word: %q", got[len(got)-20:])
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ação é ", 300)
	got := Truncate(text, 1300, DefaultEllipsis)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) > 1300 {
		t.Fatalf("invalid truncation: %d runes", utf8.RuneCountInString(got))
	}
}

func TestTruncateHardCutsSingleWord(t *testing.T) {
	t.Parallel()

	got := Truncate(strings.Repeat("x", 50), 10, DefaultEllipsis)
	if got != "xxxxxxx..." {
		t.Fatalf("unexpected %q", got)
	}
}
