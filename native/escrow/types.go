package escrow

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Status represents the lifecycle states supported by the escrow engine.
type Status uint8

const (
	StatusCreated Status = iota
	StatusFunded
	StatusLocked
	StatusCompleted
	StatusDisputed
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusFunded, StatusLocked, StatusCompleted, StatusDisputed, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFunded:
		return "funded"
	case StatusLocked:
		return "locked"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow captures the custodied value and runtime status of a single
// job-payment relationship. Identifiers come from a monotonic counter owned
// by the state manager; the job id is an opaque reference into the catalog
// and is never validated here. Timestamps are unix seconds, each set exactly
// once over the record's life.
type Escrow struct {
	ID                uint64
	JobID             uint64
	Employer          [20]byte
	Worker            [20]byte
	Amount            *big.Int
	FeeBps            uint32
	Status            Status
	EmployerConfirmed bool
	WorkerConfirmed   bool
	CreatedAt         int64
	LockedAt          int64
	CompletedAt       int64
	DisputeRaisedAt   int64
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// HasWorker reports whether a worker has been bound to the record.
func (e *Escrow) HasWorker() bool {
	return e != nil && e.Worker != ([20]byte{})
}

func (e *Escrow) party(addr [20]byte) bool {
	if e == nil {
		return false
	}
	return addr == e.Employer || (e.HasWorker() && addr == e.Worker)
}

// Sanitize validates and normalises the supplied escrow record, returning a
// cloned instance with a non-nil amount. The amount must be non-negative and
// fit in 256 bits so fee arithmetic can never overflow the currency width.
// The function does not mutate the original value.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow amount must be non-negative")
	}
	if _, overflow := uint256.FromBig(clone.Amount); overflow {
		return nil, fmt.Errorf("escrow amount exceeds currency width")
	}
	if clone.FeeBps > 10_000 {
		return nil, fmt.Errorf("escrow fee bps out of range: %d", clone.FeeBps)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.Employer == ([20]byte{}) {
		return nil, fmt.Errorf("escrow employer required")
	}
	return clone, nil
}
