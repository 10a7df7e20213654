// Package state persists ledger records through the storage.Database
// abstraction. Records are JSON-encoded under namespaced keys so the native
// ledgers (escrow, jobs, reputation) can share one backend while remaining
// oblivious to each other's key space.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"workledger/storage"
)

// Manager mediates all reads and writes against the underlying database. The
// host serializes every mutating operation, so the manager performs no
// locking of its own.
type Manager struct {
	db storage.Database
}

// NewManager constructs a manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var errNoDatabase = errors.New("state: database not configured")

// KVPut stores the provided value under the supplied key using JSON encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNoDatabase
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// out. The boolean reports whether the key held a value.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNoDatabase
	}
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVHas reports whether the key holds a value without decoding it.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNoDatabase
	}
	return m.db.Has(key)
}

// ModuleAddress derives the reserved account address for a module tag. The
// derivation is deterministic, collision-resistant, and outside the keyspace
// of real secp256k1 accounts for any practical purpose.
func ModuleAddress(tag string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("workledger/module/" + tag))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}
