package reputation

import (
	"encoding/hex"
	"strconv"

	"workledger/core/types"
)

const (
	// EventTypeRatingSubmitted is emitted when a party rates a counterparty.
	EventTypeRatingSubmitted = "reputation.ratingSubmitted"
)

// NewRatingSubmittedEvent returns the canonical event payload for a submitted
// rating.
func NewRatingSubmittedEvent(r *Rating) *types.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &types.Event{Type: EventTypeRatingSubmitted, Attributes: attrs}
	}
	if err := r.Validate(); err != nil {
		return &types.Event{Type: EventTypeRatingSubmitted, Attributes: attrs}
	}
	attrs["subject"] = hex.EncodeToString(r.Subject[:])
	attrs["rater"] = hex.EncodeToString(r.Rater[:])
	attrs["escrowId"] = strconv.FormatUint(r.EscrowID, 10)
	attrs["score"] = strconv.FormatUint(uint64(r.Score), 10)
	attrs["createdAt"] = strconv.FormatInt(r.CreatedAt, 10)
	return &types.Event{Type: EventTypeRatingSubmitted, Attributes: attrs}
}
