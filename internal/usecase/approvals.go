package usecase

import (
	"sync"
	"time"
)

// SlotPhase tracks where a requester's single in-flight item is.
type SlotPhase string

const (
	PhaseProcessing SlotPhase = "processing"
	PhaseAwaiting   SlotPhase = "awaiting_approval"
	PhasePublishing SlotPhase = "publishing"
)

// PendingApproval holds the text frozen at review time. Approving publishes
// exactly this text even if the stored item changes afterwards.
type PendingApproval struct {
	Requester string
	ItemID    string
	Text      string
	Phase     SlotPhase
	Since     time.Time
}

// approvals keeps at most one slot per requester. Slots live in memory only.
type approvals struct {
	mu    sync.Mutex
	slots map[string]PendingApproval
	now   func() time.Time
}

func newApprovals(now func() time.Time) *approvals {
	return &approvals{slots: make(map[string]PendingApproval), now: now}
}

// reserve claims the requester's slot for a new item.
func (a *approvals) reserve(requester string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.slots[requester]; busy {
		return false
	}
	a.slots[requester] = PendingApproval{Requester: requester, Phase: PhaseProcessing, Since: a.now()}
	return true
}

// await freezes text for approval.
func (a *approvals) await(requester, itemID, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots[requester] = PendingApproval{
		Requester: requester,
		ItemID:    itemID,
		Text:      text,
		Phase:     PhaseAwaiting,
		Since:     a.now(),
	}
}

// move switches phase when the slot is currently in from.
func (a *approvals) move(requester string, from, to SlotPhase) (PendingApproval, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slots[requester]
	if !ok || slot.Phase != from {
		return slot, false
	}
	slot.Phase = to
	a.slots[requester] = slot
	return slot, true
}

func (a *approvals) get(requester string) (PendingApproval, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slots[requester]
	return slot, ok
}

func (a *approvals) release(requester string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.slots, requester)
}

func (a *approvals) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.slots)
}
