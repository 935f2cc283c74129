package domain

import "time"

// AuditEvent is one append-only record in the event log.
type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"executionId"`
	ItemID      string    `json:"itemId,omitempty"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	DurationMs  int64     `json:"durationMs"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	ErrorDetail string    `json:"errorDetail,omitempty"`
	URL         string    `json:"url,omitempty"`
	PageTitle   string    `json:"pageTitle,omitempty"`
	Screenshot  string    `json:"screenshot,omitempty"`
}

// Alert is an out-of-band notification for operators.
type Alert struct {
	Kind       ErrorKind
	Title      string
	Message    string
	URL        string
	Screenshot string
	At         time.Time
}

// Diagnostics is the forensic state captured when an automation step fails.
type Diagnostics struct {
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// PublishOutcome is the asynchronous result of an approved publish.
type PublishOutcome struct {
	ItemID    string
	Title     string
	Published bool
	Result    PublishResult
	ErrorKind ErrorKind
	Error     string
	Recovery  []string
}
