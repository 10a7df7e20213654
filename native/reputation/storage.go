package reputation

import (
	"errors"
	"fmt"
	"time"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	ratingPrefix = []byte("reputation/rating/")
	scorePrefix  = []byte("reputation/score/")
)

func ratingKey(subject [20]byte, escrowID uint64, rater [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%d/%x", ratingPrefix, subject, escrowID, rater))
}

func scoreKey(subject [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", scorePrefix, subject))
}

// ErrRatingNotFound marks lookups of ratings that were never submitted.
var ErrRatingNotFound = errors.New("reputation: rating not found")

type storedRating struct {
	Subject   [20]byte
	Rater     [20]byte
	EscrowID  uint64
	Score     uint8
	CreatedAt int64
}

type storedScore struct {
	Total uint64
	Count uint64
}

// Ledger persists counterparty ratings and maintains the per-subject
// aggregate alongside each rating record.
type Ledger struct {
	store storage
	nowFn func() int64
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock used for rating timestamps. Primarily
// leveraged in tests to provide deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

// Rate stores the rating and folds it into the subject's aggregate. A repeat
// rating from the same rater for the same escrow replaces the earlier score:
// the aggregate total moves by the difference and the count stays put.
func (l *Ledger) Rate(rating *Rating) (*Rating, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("reputation: storage unavailable")
	}
	if err := rating.Validate(); err != nil {
		return nil, err
	}
	sanitized := *rating
	sanitized.CreatedAt = l.now()

	key := ratingKey(sanitized.Subject, sanitized.EscrowID, sanitized.Rater)
	var previous storedRating
	hadPrevious, err := l.store.KVGet(key, &previous)
	if err != nil {
		return nil, err
	}

	var aggregate storedScore
	if _, err := l.store.KVGet(scoreKey(sanitized.Subject), &aggregate); err != nil {
		return nil, err
	}
	if hadPrevious {
		aggregate.Total -= uint64(previous.Score)
	} else {
		aggregate.Count++
	}
	aggregate.Total += uint64(sanitized.Score)

	stored := storedRating{
		Subject:   sanitized.Subject,
		Rater:     sanitized.Rater,
		EscrowID:  sanitized.EscrowID,
		Score:     sanitized.Score,
		CreatedAt: sanitized.CreatedAt,
	}
	if err := l.store.KVPut(key, &stored); err != nil {
		return nil, err
	}
	if err := l.store.KVPut(scoreKey(sanitized.Subject), &aggregate); err != nil {
		return nil, err
	}
	return &sanitized, nil
}

// Get retrieves the rating submitted by rater for the subject and escrow.
func (l *Ledger) Get(subject [20]byte, escrowID uint64, rater [20]byte) (*Rating, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("reputation: storage unavailable")
	}
	var stored storedRating
	ok, err := l.store.KVGet(ratingKey(subject, escrowID, rater), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRatingNotFound
	}
	return &Rating{
		Subject:   stored.Subject,
		Rater:     stored.Rater,
		EscrowID:  stored.EscrowID,
		Score:     stored.Score,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// Score returns the aggregate for the subject; a subject with no ratings has
// a zero total and count.
func (l *Ledger) Score(subject [20]byte) (*Score, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("reputation: storage unavailable")
	}
	var aggregate storedScore
	if _, err := l.store.KVGet(scoreKey(subject), &aggregate); err != nil {
		return nil, err
	}
	return &Score{Subject: subject, Total: aggregate.Total, Count: aggregate.Count}, nil
}
