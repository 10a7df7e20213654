package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"workledger/core/types"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeEscrowFunded    = "escrow.funded"
	EventTypeEscrowLocked    = "escrow.locked"
	EventTypeEscrowConfirmed = "escrow.confirmed"
	EventTypeEscrowCompleted = "escrow.completed"
	EventTypeEscrowDisputed  = "escrow.disputed"
	EventTypeEscrowResolved  = "escrow.resolved"
	EventTypeEscrowRefunded  = "escrow.refunded"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewFundedEvent returns the canonical event payload emitted when an escrow is
// funded by the employer.
func NewFundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowFunded, e) }

// NewLockedEvent returns the canonical event payload emitted when a worker
// binds to the escrow.
func NewLockedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowLocked, e) }

// NewConfirmedEvent returns the payload emitted when one party confirms
// completion without yet triggering release.
func NewConfirmedEvent(e *Escrow, confirmer [20]byte) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowConfirmed, e)
	evt.Attributes["confirmer"] = hex.EncodeToString(confirmer[:])
	return evt
}

// NewCompletedEvent returns the payload emitted when funds are released to the
// worker, carrying the exact fee/payout split.
func NewCompletedEvent(e *Escrow, fee, payout *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowCompleted, e)
	evt.Attributes["fee"] = formatAmount(fee)
	evt.Attributes["payout"] = formatAmount(payout)
	return evt
}

// NewDisputedEvent returns the payload emitted when an escrow is marked as
// disputed.
func NewDisputedEvent(e *Escrow, raiser [20]byte) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowDisputed, e)
	evt.Attributes["raiser"] = hex.EncodeToString(raiser[:])
	return evt
}

// NewResolvedEvent returns the payload emitted when the administrator settles
// a dispute. Outcome is "release" or "refund".
func NewResolvedEvent(e *Escrow, outcome string) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowResolved, e)
	evt.Attributes["outcome"] = outcome
	return evt
}

// NewRefundedEvent returns the payload emitted when the full amount is
// returned to the employer.
func NewRefundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowRefunded, e) }

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(e)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["jobId"] = strconv.FormatUint(sanitized.JobID, 10)
	attrs["employer"] = hex.EncodeToString(sanitized.Employer[:])
	if sanitized.HasWorker() {
		attrs["worker"] = hex.EncodeToString(sanitized.Worker[:])
	}
	attrs["amount"] = sanitized.Amount.String()
	attrs["feeBps"] = strconv.FormatUint(uint64(sanitized.FeeBps), 10)
	attrs["status"] = sanitized.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
