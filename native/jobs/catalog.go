package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// storage abstracts the subset of state manager functionality required by the
// job catalog.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	jobPrefix  = []byte("jobs/record/")
	counterKey = []byte("jobs/meta/counter")
)

func jobKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", jobPrefix, id))
}

var (
	// ErrJobNotFound marks lookups of unknown job ids.
	ErrJobNotFound = errors.New("jobs: job not found")
)

// Catalog persists job postings keyed by a monotonic integer id. It is an
// external collaborator of the escrow core: status updates driven by escrow
// settlement arrive asynchronously and may be redelivered, so SetStatus
// treats a repeat of the current status as a no-op.
type Catalog struct {
	store storage
	nowFn func() int64
}

// NewCatalog constructs a catalog bound to the provided storage backend.
func NewCatalog(store storage) *Catalog {
	return &Catalog{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock used for posting timestamps.
func (c *Catalog) SetNowFunc(now func() int64) {
	if c == nil {
		return
	}
	if now == nil {
		c.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	c.nowFn = now
}

func (c *Catalog) now() int64 {
	if c == nil || c.nowFn == nil {
		return time.Now().Unix()
	}
	return c.nowFn()
}

func (c *Catalog) nextID() (uint64, error) {
	var counter uint64
	if _, err := c.store.KVGet(counterKey, &counter); err != nil {
		return 0, err
	}
	counter++
	if err := c.store.KVPut(counterKey, counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// Create posts a new job in the open state and returns the stored record.
func (c *Catalog) Create(employer [20]byte, spec string) (*Job, error) {
	if c == nil || c.store == nil {
		return nil, errors.New("jobs: storage unavailable")
	}
	job := &Job{
		Employer: employer,
		Spec:     strings.TrimSpace(spec),
		Status:   StatusOpen,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	id, err := c.nextID()
	if err != nil {
		return nil, err
	}
	job.ID = id
	job.CreatedAt = c.now()
	job.UpdatedAt = job.CreatedAt
	if err := c.store.KVPut(jobKey(id), job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get retrieves the job record for the supplied id.
func (c *Catalog) Get(id uint64) (*Job, error) {
	if c == nil || c.store == nil {
		return nil, errors.New("jobs: storage unavailable")
	}
	var job Job
	ok, err := c.store.KVGet(jobKey(id), &job)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// SetStatus moves the job to the supplied status. Setting the current status
// again succeeds without touching the record, keeping redelivered settlement
// messages harmless.
func (c *Catalog) SetStatus(id uint64, status JobStatus) (*Job, error) {
	if c == nil || c.store == nil {
		return nil, errors.New("jobs: storage unavailable")
	}
	if !status.Valid() {
		return nil, fmt.Errorf("jobs: invalid status %q", status)
	}
	job, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status == status {
		return job, nil
	}
	job.Status = status
	job.UpdatedAt = c.now()
	if err := c.store.KVPut(jobKey(id), job); err != nil {
		return nil, err
	}
	return job, nil
}

// Count returns the total number of jobs ever posted.
func (c *Catalog) Count() (uint64, error) {
	if c == nil || c.store == nil {
		return 0, errors.New("jobs: storage unavailable")
	}
	var counter uint64
	if _, err := c.store.KVGet(counterKey, &counter); err != nil {
		return 0, err
	}
	return counter, nil
}
