package telegram

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/infrastructure/audit"
	"ContentPublisher/internal/ports"
	"ContentPublisher/internal/usecase"
)

const (
	maxIssues      = 3
	maxSuggestions = 2
	maxListed      = 10
)

const helpText = `<b>Content publication bot</b>

Send an .html, .htm, .txt or .md file and I will:
1. extract its text
2. rewrite it as a post
3. review the draft and wait for your approval
4. publish it once you /approve

<b>Commands</b>
/status - your current item and queue counts
/stats - publish statistics for the last 7 days
/list [status] - your recent items
/approve - publish the pending draft
/cancel - drop the pending draft
/retry [id] - retry a failed item or publish attempt`

func escape(s string) string {
	return html.EscapeString(s)
}

func verdictIcon(r domain.Recommendation) string {
	switch r {
	case domain.RecommendApprove:
		return "✅"
	case domain.RecommendReject:
		return "❌"
	default:
		return "⚠️"
	}
}

// RenderReview shows a draft awaiting approval with its review verdict.
func RenderReview(item domain.ContentItem) string {
	var b strings.Builder
	text := item.Rewritten()

	fmt.Fprintf(&b, "<b>Draft ready for review</b> (<code>%s</code>)\n", escape(item.ID))
	if r := item.ReviewReport; r != nil {
		fmt.Fprintf(&b, "%s <b>%s</b>, confidence %.0f%% (%s review)\n", verdictIcon(r.Recommendation), r.Recommendation, r.Confidence*100, r.Mode)
	}
	fmt.Fprintf(&b, "\n%s\n\n", escape(text))

	if r := item.ReviewReport; r != nil {
		fmt.Fprintf(&b, "<b>Metrics:</b> %d characters, %d hashtags\n", r.CharCount, r.HashtagCount)
		if len(r.Issues) > 0 {
			b.WriteString("\n<b>Issues:</b>\n")
			for _, issue := range head(r.Issues, maxIssues) {
				fmt.Fprintf(&b, "• %s\n", escape(issue))
			}
		}
		if len(r.Suggestions) > 0 {
			b.WriteString("\n<b>Suggestions:</b>\n")
			for _, s := range head(r.Suggestions, maxSuggestions) {
				fmt.Fprintf(&b, "• %s\n", escape(s))
			}
		}
	}

	fmt.Fprintf(&b, "\n%s", escape(strings.Join(usecase.RecoveryCommands(item), "  ")))
	return b.String()
}

// RenderOutcome reports the result of a publish attempt.
func RenderOutcome(o domain.PublishOutcome) string {
	var b strings.Builder
	if o.Published {
		b.WriteString("✅ <b>Published</b>")
		if o.Title != "" {
			fmt.Fprintf(&b, ": %s", escape(o.Title))
		}
		b.WriteString("\n")
		if o.Result.Warning != "" {
			fmt.Fprintf(&b, "⚠️ %s\n", escape(o.Result.Warning))
		}
		if o.Error != "" {
			fmt.Fprintf(&b, "⚠️ %s\n", escape(o.Error))
		}
		fmt.Fprintf(&b, "Execution <code>%s</code>", escape(o.Result.ExecutionID))
		return b.String()
	}

	fmt.Fprintf(&b, "❌ <b>Not published</b> (<code>%s</code>)\n", escape(o.ItemID))
	fmt.Fprintf(&b, "%s\n", escape(o.Error))
	if len(o.Recovery) > 0 {
		fmt.Fprintf(&b, "Next: %s", escape(strings.Join(o.Recovery, "  ")))
	}
	return b.String()
}

// RenderFailure reports a processing failure for an item that never reached review.
func RenderFailure(item domain.ContentItem, err error) string {
	kind := domain.KindOf(err)
	if item.LastErrorKind != "" {
		kind = item.LastErrorKind
	}
	var b strings.Builder
	b.WriteString("❌ <b>Processing failed</b>")
	if item.ID != "" {
		fmt.Fprintf(&b, " (<code>%s</code>)", escape(item.ID))
	}
	fmt.Fprintf(&b, "\n%s", escape(domain.Describe(kind)))
	if next := usecase.RecoveryCommands(item); len(next) > 0 {
		fmt.Fprintf(&b, "\nNext: %s", escape(strings.Join(next, "  ")))
	}
	return b.String()
}

// RenderError turns command errors into short user-facing answers.
func RenderError(err error) string {
	switch {
	case errors.Is(err, usecase.ErrRequesterBusy):
		return "⏳ You already have an item in progress. /approve or /cancel it first."
	case errors.Is(err, usecase.ErrNoPendingApproval):
		return "ℹ️ Nothing is waiting for approval."
	case errors.Is(err, usecase.ErrPublishInFlight):
		return "⏳ A publish attempt is running; wait for its result."
	case errors.Is(err, usecase.ErrNotRetryable):
		return "🚫 " + escape(err.Error())
	case errors.Is(err, ports.ErrNotFound):
		return "🔍 Item not found."
	case errors.Is(err, ErrFileTooLarge):
		return "❌ File too large."
	}
	var classified *domain.Error
	if errors.As(err, &classified) {
		return "❌ " + escape(domain.Describe(classified.Kind))
	}
	return "❌ Unexpected error; the operator has the details in the logs."
}

// RenderStatus summarizes the requester's slot and queue counts.
func RenderStatus(s usecase.RequesterStatus, rewriteConfigured, platformConfigured bool) string {
	var b strings.Builder
	b.WriteString("<b>System status</b>\n\n")
	fmt.Fprintf(&b, "%s AI rewrite configured\n", check(rewriteConfigured))
	fmt.Fprintf(&b, "%s Platform credentials configured\n", check(platformConfigured))
	fmt.Fprintf(&b, "Requesters with work in progress: %d\n\n", s.InFlight)

	b.WriteString("<b>Queue</b>\n")
	for _, st := range domain.AllStatuses {
		if n := s.Counts[st]; n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", st, n)
		}
	}

	if s.Item != nil {
		fmt.Fprintf(&b, "\n<b>Your latest item</b>\n<code>%s</code> %s", escape(s.Item.ID), s.Item.Status)
		if s.Item.LastErrorKind != "" {
			fmt.Fprintf(&b, " (%s)", escape(domain.Describe(s.Item.LastErrorKind)))
		}
		b.WriteString("\n")
	}
	if s.Slot != nil {
		fmt.Fprintf(&b, "Slot: %s since %s\n", s.Slot.Phase, s.Slot.Since.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// RenderStats summarizes the audit log.
func RenderStats(st audit.Stats, since time.Time) string {
	if st.Total == 0 {
		return "📊 No executions recorded since " + since.UTC().Format("2006-01-02") + "."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Statistics since %s</b>\n\n", since.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Events: %d\n✅ Succeeded: %d\n❌ Failed: %d\n", st.Total, st.Succeeded, st.Failed)
	fmt.Fprintf(&b, "Success rate: %d%%\nAverage step: %d ms\n", st.Succeeded*100/st.Total, st.AvgDurationMs)

	if len(st.ByKind) > 0 {
		kinds := make([]string, 0, len(st.ByKind))
		for k := range st.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		b.WriteString("\n<b>Failures by kind</b>\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "%s: %d\n", k, st.ByKind[domain.ErrorKind(k)])
		}
	}
	if f := st.LastFailure; f != nil {
		fmt.Fprintf(&b, "\nLast failure: %s at %s (%s)", escape(f.Action), f.Timestamp.UTC().Format(time.RFC3339), f.ErrorKind)
	}
	return b.String()
}

// RenderList shows the newest items first.
func RenderList(items []domain.ContentItem) string {
	if len(items) == 0 {
		return "📭 No items."
	}
	var b strings.Builder
	b.WriteString("<b>Items</b>\n")
	for i := len(items) - 1; i >= 0 && len(items)-i <= maxListed; i-- {
		it := items[i]
		title := it.RawMetadata.Title
		if title == "" {
			title = it.SourceName
		}
		fmt.Fprintf(&b, "<code>%s</code> %s %s\n", escape(it.ID), it.Status, escape(title))
	}
	if len(items) > maxListed {
		fmt.Fprintf(&b, "… and %d older", len(items)-maxListed)
	}
	return b.String()
}

// RenderAlert formats an operator alert.
func RenderAlert(a domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>%s</b>\n\n", escape(a.Title))
	fmt.Fprintf(&b, "<b>Error:</b> %s\n", a.Kind)
	fmt.Fprintf(&b, "<b>Message:</b> %s\n", escape(a.Message))
	if a.URL != "" {
		fmt.Fprintf(&b, "<b>URL:</b> %s\n", escape(a.URL))
	}
	if a.Screenshot != "" {
		fmt.Fprintf(&b, "<b>Screenshot:</b> <code>%s</code>\n", escape(a.Screenshot))
	}
	fmt.Fprintf(&b, "<b>Time:</b> %s", a.At.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

func check(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
