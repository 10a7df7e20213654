package reputation

import "errors"

// Rating captures one party's score for a counterparty after a completed
// escrow. One rating per (subject, escrow, rater); resubmitting replaces the
// prior score in the aggregate rather than double-counting it.
type Rating struct {
	Subject   [20]byte
	Rater     [20]byte
	EscrowID  uint64
	Score     uint8
	CreatedAt int64
}

// Validate ensures the rating payload is well formed.
func (r *Rating) Validate() error {
	if r == nil {
		return errors.New("reputation: rating nil")
	}
	if r.Subject == ([20]byte{}) {
		return errors.New("reputation: subject required")
	}
	if r.Rater == ([20]byte{}) {
		return errors.New("reputation: rater required")
	}
	if r.Subject == r.Rater {
		return errors.New("reputation: self-rating not allowed")
	}
	if r.Score < 1 || r.Score > 5 {
		return errors.New("reputation: score must be between 1 and 5")
	}
	return nil
}

// Score aggregates all ratings received by one subject.
type Score struct {
	Subject [20]byte
	Total   uint64
	Count   uint64
}
