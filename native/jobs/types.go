package jobs

import (
	"errors"
	"strings"
)

// JobStatus is the catalog's coarse lifecycle marker. The escrow core never
// reads it; status changes arrive as fire-and-forget messages and must stay
// idempotent because delivery is at-most-once with no ordering guarantee.
type JobStatus string

const (
	StatusOpen      JobStatus = "open"
	StatusAssigned  JobStatus = "assigned"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
)

// Valid reports whether the status is one of the supported markers.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is one catalog entry. Spec holds the free-form posting text; the escrow
// core references entries only by id.
type Job struct {
	ID        uint64
	Employer  [20]byte
	Spec      string
	Status    JobStatus
	CreatedAt int64
	UpdatedAt int64
}

// Validate ensures the job payload is well formed.
func (j *Job) Validate() error {
	if j == nil {
		return errors.New("jobs: job nil")
	}
	if j.Employer == ([20]byte{}) {
		return errors.New("jobs: employer required")
	}
	if strings.TrimSpace(j.Spec) == "" {
		return errors.New("jobs: spec required")
	}
	if !j.Status.Valid() {
		return errors.New("jobs: invalid status")
	}
	return nil
}
