package domain

import (
	"fmt"
	"time"
)

// Status enumerates the lifecycle states of a content item.
type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusPublishing       Status = "publishing"
	StatusPublished        Status = "published"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusAwaitingApproval,
	StatusPublishing,
	StatusPublished,
	StatusError,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusPending:          {StatusProcessing, StatusError},
	StatusProcessing:       {StatusAwaitingApproval, StatusError},
	StatusAwaitingApproval: {StatusPublishing, StatusCancelled},
	StatusPublishing:       {StatusPublished, StatusAwaitingApproval, StatusError},
	StatusError:            {StatusProcessing},
}

// ParseStatus validates a textual status.
func ParseStatus(value string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Archived reports whether items in this status live in the archive directory.
func (s Status) Archived() bool {
	return s == StatusPublished
}

// Image is a picture reference found during extraction.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// Link is an anchor found during extraction.
type Link struct {
	Href  string `json:"href"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

// Metadata is produced by the extraction collaborator.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	WordCount   int      `json:"wordCount"`
	CharCount   int      `json:"charCount"`
	Images      []Image  `json:"images,omitempty"`
	Links       []Link   `json:"links,omitempty"`
}

// Recommendation is the reviewer's final verdict.
type Recommendation string

const (
	RecommendApprove     Recommendation = "APPROVE"
	RecommendNeedsReview Recommendation = "REVIEW_NEEDED"
	RecommendReject      Recommendation = "REJECT"
)

// ReviewMode tells whether a report came from the AI backend or local rules.
type ReviewMode string

const (
	ReviewModeAI    ReviewMode = "ai"
	ReviewModeLocal ReviewMode = "local"
)

// ReviewReport is the structured verdict of the review collaborator.
type ReviewReport struct {
	Approved       bool           `json:"approved"`
	Issues         []string       `json:"issues"`
	Suggestions    []string       `json:"suggestions,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Mode           ReviewMode     `json:"mode"`
	CharCount      int            `json:"charCount"`
	HashtagCount   int            `json:"hashtagCount"`
	ReviewedAt     time.Time      `json:"reviewedAt"`
}

// Normalize clamps confidence into [0,1] and fills an unknown recommendation.
func (r *ReviewReport) Normalize() {
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	switch r.Recommendation {
	case RecommendApprove, RecommendNeedsReview, RecommendReject:
	default:
		r.Recommendation = RecommendNeedsReview
	}
	if r.Issues == nil {
		r.Issues = []string{}
	}
}

// AuditEntry is one line of an item's audit trail.
type AuditEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Target      string    `json:"target,omitempty"`
	Outcome     string    `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	ErrorDetail string    `json:"errorDetail,omitempty"`
}

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeWarning = "warning"
)

// ContentItem is one unit of work moving through the pipeline.
type ContentItem struct {
	ID            string        `json:"id"`
	SourcePath    string        `json:"sourcePath"`
	SourceName    string        `json:"sourceName"`
	ContentFile   string        `json:"contentFile"`
	Requester     string        `json:"requester"`
	Status        Status        `json:"status"`
	RawMetadata   Metadata      `json:"rawMetadata"`
	ExtractedText string        `json:"extractedText,omitempty"`
	RewrittenText *string       `json:"rewrittenText,omitempty"`
	ReviewReport  *ReviewReport `json:"reviewReport,omitempty"`
	LastErrorKind ErrorKind     `json:"lastErrorKind,omitempty"`
	LastError     string        `json:"lastError,omitempty"`
	AuditTrail    []AuditEntry  `json:"auditTrail"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Rewritten returns the rewritten text or an empty string.
func (c *ContentItem) Rewritten() string {
	if c.RewrittenText == nil {
		return ""
	}
	return *c.RewrittenText
}

// SetRewritten stores a copy of text as the rewritten body.
func (c *ContentItem) SetRewritten(text string) {
	c.RewrittenText = &text
}

// AppendAudit adds entries to the trail.
func (c *ContentItem) AppendAudit(entries ...AuditEntry) {
	c.AuditTrail = append(c.AuditTrail, entries...)
}

// CheckInvariants validates the rewritten-text rule for the current status.
func (c *ContentItem) CheckInvariants() error {
	has := c.RewrittenText != nil
	switch c.Status {
	case StatusAwaitingApproval, StatusPublishing, StatusPublished:
		if !has {
			return fmt.Errorf("item %s: status %s requires rewritten text", c.ID, c.Status)
		}
	case StatusError:
		// Either side of the rewrite step may fail.
	default:
		if has {
			return fmt.Errorf("item %s: status %s must not carry rewritten text", c.ID, c.Status)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c ContentItem) Clone() ContentItem {
	out := c
	if c.RewrittenText != nil {
		text := *c.RewrittenText
		out.RewrittenText = &text
	}
	if c.ReviewReport != nil {
		report := *c.ReviewReport
		report.Issues = append([]string(nil), c.ReviewReport.Issues...)
		report.Suggestions = append([]string(nil), c.ReviewReport.Suggestions...)
		out.ReviewReport = &report
	}
	out.AuditTrail = append([]AuditEntry(nil), c.AuditTrail...)
	out.RawMetadata.Keywords = append([]string(nil), c.RawMetadata.Keywords...)
	out.RawMetadata.Images = append([]Image(nil), c.RawMetadata.Images...)
	out.RawMetadata.Links = append([]Link(nil), c.RawMetadata.Links...)
	return out
}

// PublishResult describes a completed publish attempt.
type PublishResult struct {
	ExecutionID string `json:"executionId"`
	Confirmed   bool   `json:"confirmed"`
	Warning     string `json:"warning,omitempty"`
	FinalURL    string `json:"finalUrl,omitempty"`
	DurationMs  int64  `json:"durationMs"`
}
