package jobs

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

func testEmployer() [20]byte {
	var a [20]byte
	a[0] = 0x01
	return a
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	catalog := NewCatalog(newMemKV())
	first, err := catalog.Create(testEmployer(), "paint the fence")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := catalog.Create(testEmployer(), "fix the gate")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d", first.ID, second.ID)
	}
	if first.Status != StatusOpen {
		t.Fatalf("new job status = %s", first.Status)
	}
	count, err := catalog.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestCreateValidation(t *testing.T) {
	catalog := NewCatalog(newMemKV())
	if _, err := catalog.Create([20]byte{}, "spec"); err == nil {
		t.Fatal("zero employer accepted")
	}
	if _, err := catalog.Create(testEmployer(), "   "); err == nil {
		t.Fatal("blank spec accepted")
	}
}

func TestSetStatusIdempotent(t *testing.T) {
	catalog := NewCatalog(newMemKV())
	now := int64(1_700_000_000)
	catalog.SetNowFunc(func() int64 { now++; return now })

	job, err := catalog.Create(testEmployer(), "paint the fence")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := catalog.SetStatus(job.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	firstUpdate := updated.UpdatedAt
	// Redelivered settlement message: same status, record untouched.
	again, err := catalog.SetStatus(job.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("repeat set status: %v", err)
	}
	if again.UpdatedAt != firstUpdate {
		t.Fatalf("repeat status touched the record: %d != %d", again.UpdatedAt, firstUpdate)
	}
}

func TestSetStatusGuards(t *testing.T) {
	catalog := NewCatalog(newMemKV())
	if _, err := catalog.SetStatus(99, StatusCompleted); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	job, err := catalog.Create(testEmployer(), "spec")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := catalog.SetStatus(job.ID, JobStatus("bogus")); err == nil {
		t.Fatal("invalid status accepted")
	}
}
