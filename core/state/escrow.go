package state

import (
	"fmt"

	"workledger/native/escrow"
)

var (
	escrowRecordPrefix = []byte("escrow/record/")
	escrowCounterKey   = []byte("escrow/meta/counter")
)

// EscrowVaultTag names the module account holding all custodied funds.
const EscrowVaultTag = "escrow/vault"

func escrowKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", escrowRecordPrefix, id))
}

// EscrowCreate inserts a new record. Creating an id the store already holds
// fails; records are never deleted, so terminal escrows stay queryable for
// audit indefinitely.
func (m *Manager) EscrowCreate(esc *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(esc)
	if err != nil {
		return err
	}
	exists, err := m.KVHas(escrowKey(sanitized.ID))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: id %d", escrow.ErrAlreadyExists, sanitized.ID)
	}
	return m.KVPut(escrowKey(sanitized.ID), sanitized)
}

// EscrowPut overwrites an existing record post-transition. Writing an id that
// was never created fails so transitions cannot fabricate records.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(esc)
	if err != nil {
		return err
	}
	exists, err := m.KVHas(escrowKey(sanitized.ID))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: id %d", escrow.ErrNotFound, sanitized.ID)
	}
	return m.KVPut(escrowKey(sanitized.ID), sanitized)
}

// EscrowGet fetches the record stored under id.
func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	var esc escrow.Escrow
	ok, err := m.KVGet(escrowKey(id), &esc)
	if err != nil || !ok {
		return nil, false
	}
	return esc.Clone(), true
}

// EscrowNextID increments and persists the escrow id counter, returning the
// new value. Ids therefore start at 1 and never repeat.
func (m *Manager) EscrowNextID() (uint64, error) {
	var counter uint64
	if _, err := m.KVGet(escrowCounterKey, &counter); err != nil {
		return 0, err
	}
	counter++
	if err := m.KVPut(escrowCounterKey, counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// EscrowCount returns the total number of escrows ever created.
func (m *Manager) EscrowCount() uint64 {
	var counter uint64
	if _, err := m.KVGet(escrowCounterKey, &counter); err != nil {
		return 0
	}
	return counter
}

// EscrowVaultAddress returns the module account that custodies escrowed
// funds.
func (m *Manager) EscrowVaultAddress() [20]byte {
	return ModuleAddress(EscrowVaultTag)
}
