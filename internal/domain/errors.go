package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures for retry and escalation decisions.
type ErrorKind string

const (
	KindValidation           ErrorKind = "ValidationError"
	KindExtraction           ErrorKind = "ExtractionError"
	KindRewrite              ErrorKind = "RewriteError"
	KindElementNotFound      ErrorKind = "ElementNotFound"
	KindActionFailed         ErrorKind = "ActionFailed"
	KindSessionLost          ErrorKind = "SessionLost"
	KindVerificationRequired ErrorKind = "AdditionalVerificationRequired"
	KindAuthFailed           ErrorKind = "AuthenticationFailed"
	KindSubmitTimeout        ErrorKind = "SubmitTimeout"
	KindInterrupted          ErrorKind = "Interrupted"
	KindInternal             ErrorKind = "Internal"
)

// Error carries a kind and the pipeline step that produced it.
type Error struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(kind ErrorKind, step string, err error) *Error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, Step: step, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, step, format string, args ...any) *Error {
	return &Error{Kind: kind, Step: step, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind of err; unclassified errors are Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindInterrupted
	}
	return KindInternal
}

// Retryable reports whether an operator /retry may succeed without edits.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindExtraction, KindRewrite, KindElementNotFound, KindActionFailed,
		KindSessionLost, KindSubmitTimeout, KindInterrupted, KindAuthFailed:
		return true
	default:
		return false
	}
}

// Escalate reports whether the failure must abort the run and raise an out-of-band alert.
func Escalate(kind ErrorKind) bool {
	switch kind {
	case KindSessionLost, KindVerificationRequired, KindInternal:
		return true
	default:
		return false
	}
}

// Describe returns a short human-readable cause for operator messages.
func Describe(kind ErrorKind) string {
	switch kind {
	case KindValidation:
		return "content does not meet the size limits; edit the source and send it again"
	case KindExtraction:
		return "could not extract text from the uploaded file"
	case KindRewrite:
		return "the AI rewrite provider failed"
	case KindElementNotFound:
		return "a control on the target page could not be found"
	case KindActionFailed:
		return "an interaction with the target page failed"
	case KindSessionLost:
		return "the browser session died during the attempt"
	case KindVerificationRequired:
		return "the platform asked for additional verification; complete it manually"
	case KindAuthFailed:
		return "sign-in to the platform failed"
	case KindSubmitTimeout:
		return "the post was submitted but no confirmation was observed"
	case KindInterrupted:
		return "the attempt was interrupted before it finished"
	default:
		return "unexpected internal error"
	}
}
