package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusAwaitingApproval, true},
		{StatusAwaitingApproval, StatusPublishing, true},
		{StatusAwaitingApproval, StatusCancelled, true},
		{StatusPublishing, StatusPublished, true},
		{StatusPublishing, StatusAwaitingApproval, true},
		{StatusError, StatusProcessing, true},
		{StatusPublished, StatusProcessing, false},
		{StatusCancelled, StatusAwaitingApproval, false},
		{StatusPublishing, StatusCancelled, false},
		{StatusPending, StatusPublished, false},
		{StatusProcessing, StatusPublishing, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}

	if !StatusPublished.Terminal() || !StatusCancelled.Terminal() {
		t.Fatalf("published and cancelled must be terminal")
	}
}

func TestCheckInvariants(t *testing.T) {
	t.Parallel()

	item := ContentItem{ID: "x", Status: StatusAwaitingApproval}
	if err := item.CheckInvariants(); err == nil {
		t.Fatalf("expected missing rewritten text to be rejected")
	}

	item.SetRewritten("hello")
	if err := item.CheckInvariants(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item.Status = StatusProcessing
	if err := item.CheckInvariants(); err == nil {
		t.Fatalf("processing item must not carry rewritten text")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", NewError(KindRewrite, "rewrite", errors.New("provider down")))
	if KindOf(err) != KindRewrite {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("unclassified errors must be internal")
	}
	if !Escalate(KindSessionLost) || Escalate(KindElementNotFound) {
		t.Fatalf("unexpected escalation policy")
	}
}
