package review

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const (
	minPostChars      = 50
	maxHashtags       = 10
	advisedHashtags   = 5
	approveConfidence = 0.7
	reviewConfidence  = 0.5
)

var discouraged = []string{"spam", "click here", "buy now", "urgent"}

// LocalReviewer applies length, hashtag and wording rules without any backend.
type LocalReviewer struct {
	limit int
	now   func() time.Time
}

var _ ports.Reviewer = (*LocalReviewer)(nil)

// NewLocalReviewer builds a rule-based reviewer for posts of at most limit characters.
func NewLocalReviewer(limit int) *LocalReviewer {
	return &LocalReviewer{limit: limit, now: time.Now}
}

// Review never fails; problems are reported in the returned report.
func (l *LocalReviewer) Review(_ context.Context, text, _ string) (domain.ReviewReport, error) {
	chars := utf8.RuneCountInString(text)
	hashtags := strings.Count(text, "#")

	var issues, warnings, suggestions []string

	switch {
	case chars > l.limit:
		issues = append(issues, fmt.Sprintf("post is too long: %d characters (limit %d)", chars, l.limit))
		suggestions = append(suggestions, fmt.Sprintf("shorten the post by %d characters", chars-l.limit))
	case chars < minPostChars:
		issues = append(issues, fmt.Sprintf("post is too short: %d characters (minimum %d)", chars, minPostChars))
	}

	switch {
	case hashtags > maxHashtags:
		issues = append(issues, fmt.Sprintf("too many hashtags: %d (maximum %d)", hashtags, maxHashtags))
		suggestions = append(suggestions, fmt.Sprintf("keep at most %d hashtags", advisedHashtags))
	case hashtags > advisedHashtags:
		warnings = append(warnings, fmt.Sprintf("many hashtags: %d (3 to %d work best)", hashtags, advisedHashtags))
	case hashtags == 0:
		warnings = append(warnings, "no hashtags")
		suggestions = append(suggestions, "add 3 to 5 relevant hashtags")
	}

	lower := strings.ToLower(text)
	for _, word := range discouraged {
		if strings.Contains(lower, word) {
			warnings = append(warnings, fmt.Sprintf("discouraged phrase %q", word))
		}
	}

	approved := len(issues) == 0
	report := domain.ReviewReport{
		Approved:       approved,
		Issues:         append(issues, warnings...),
		Suggestions:    suggestions,
		Recommendation: domain.RecommendNeedsReview,
		Confidence:     reviewConfidence,
		Mode:           domain.ReviewModeLocal,
		CharCount:      chars,
		HashtagCount:   hashtags,
		ReviewedAt:     l.now().UTC(),
	}
	if approved {
		report.Recommendation = domain.RecommendApprove
		report.Confidence = approveConfidence
	}
	report.Normalize()
	return report, nil
}
