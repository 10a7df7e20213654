package reputation

import (
	"encoding/json"
	"errors"
	"testing"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memKV) KVPut(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = raw
	return nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestRateAggregates(t *testing.T) {
	ledger := NewLedger(newMemKV())
	ledger.SetNowFunc(func() int64 { return 1_700_000_000 })
	subject := addr(0x01)

	if _, err := ledger.Rate(&Rating{Subject: subject, Rater: addr(0x02), EscrowID: 1, Score: 5}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := ledger.Rate(&Rating{Subject: subject, Rater: addr(0x03), EscrowID: 2, Score: 3}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	score, err := ledger.Score(subject)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Total != 8 || score.Count != 2 {
		t.Fatalf("aggregate = %d/%d, want 8/2", score.Total, score.Count)
	}
}

func TestRateResubmitReplacesScore(t *testing.T) {
	ledger := NewLedger(newMemKV())
	subject := addr(0x01)
	rater := addr(0x02)

	if _, err := ledger.Rate(&Rating{Subject: subject, Rater: rater, EscrowID: 1, Score: 2}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := ledger.Rate(&Rating{Subject: subject, Rater: rater, EscrowID: 1, Score: 4}); err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	score, err := ledger.Score(subject)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Total != 4 || score.Count != 1 {
		t.Fatalf("aggregate = %d/%d, want 4/1", score.Total, score.Count)
	}
	stored, err := ledger.Get(subject, 1, rater)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Score != 4 {
		t.Fatalf("stored score = %d, want 4", stored.Score)
	}
}

func TestRateValidation(t *testing.T) {
	ledger := NewLedger(newMemKV())
	cases := []*Rating{
		nil,
		{Subject: [20]byte{}, Rater: addr(0x02), EscrowID: 1, Score: 3},
		{Subject: addr(0x01), Rater: [20]byte{}, EscrowID: 1, Score: 3},
		{Subject: addr(0x01), Rater: addr(0x01), EscrowID: 1, Score: 3},
		{Subject: addr(0x01), Rater: addr(0x02), EscrowID: 1, Score: 0},
		{Subject: addr(0x01), Rater: addr(0x02), EscrowID: 1, Score: 6},
	}
	for i, rating := range cases {
		if _, err := ledger.Rate(rating); err == nil {
			t.Fatalf("case %d: invalid rating accepted", i)
		}
	}
}

func TestGetMissingRating(t *testing.T) {
	ledger := NewLedger(newMemKV())
	if _, err := ledger.Get(addr(0x01), 1, addr(0x02)); !errors.Is(err, ErrRatingNotFound) {
		t.Fatalf("expected ErrRatingNotFound, got %v", err)
	}
	score, err := ledger.Score(addr(0x01))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Total != 0 || score.Count != 0 {
		t.Fatalf("empty subject aggregate = %d/%d", score.Total, score.Count)
	}
}
