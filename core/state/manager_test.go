package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"workledger/native/escrow"
	"workledger/storage"
)

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestKVRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	type payload struct {
		Name  string
		Value uint64
	}
	ok, err := m.KVGet([]byte("missing"), &payload{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.KVPut([]byte("k"), &payload{Name: "a", Value: 7}))
	var out payload
	ok, err = m.KVGet([]byte("k"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Name: "a", Value: 7}, out)
}

func TestAccountDefaultsAndCredit(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := testAddr(0x01)

	account, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign())

	require.NoError(t, m.Credit(addr, big.NewInt(500)))
	require.NoError(t, m.Credit(addr, big.NewInt(250)))
	account, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(750), account.Balance.Int64())

	require.Error(t, m.Credit(addr, big.NewInt(-1)))
	require.Error(t, m.PutAccount(addr, nil))
}

func TestEscrowCreateRejectsDuplicateID(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	record := &escrow.Escrow{ID: 1, JobID: 9, Employer: testAddr(0x01), Amount: big.NewInt(100)}
	require.NoError(t, m.EscrowCreate(record))
	err := m.EscrowCreate(record)
	require.True(t, errors.Is(err, escrow.ErrAlreadyExists))
}

func TestEscrowPutRequiresExistingRecord(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	record := &escrow.Escrow{ID: 5, Employer: testAddr(0x01), Amount: big.NewInt(100)}
	err := m.EscrowPut(record)
	require.True(t, errors.Is(err, escrow.ErrNotFound))

	require.NoError(t, m.EscrowCreate(record))
	record.Status = escrow.StatusFunded
	require.NoError(t, m.EscrowPut(record))
	stored, ok := m.EscrowGet(5)
	require.True(t, ok)
	require.Equal(t, escrow.StatusFunded, stored.Status)
}

func TestEscrowGetReturnsClone(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.EscrowCreate(&escrow.Escrow{ID: 1, Employer: testAddr(0x01), Amount: big.NewInt(100)}))
	first, ok := m.EscrowGet(1)
	require.True(t, ok)
	first.Amount.SetInt64(1)
	first.Status = escrow.StatusDisputed

	second, ok := m.EscrowGet(1)
	require.True(t, ok)
	require.Equal(t, int64(100), second.Amount.Int64())
	require.Equal(t, escrow.StatusCreated, second.Status)
}

func TestEscrowCounter(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.Zero(t, m.EscrowCount())
	id, err := m.EscrowNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = m.EscrowNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
	require.Equal(t, uint64(2), m.EscrowCount())
}

func TestModuleAddressDeterministic(t *testing.T) {
	vault := ModuleAddress(EscrowVaultTag)
	require.Equal(t, vault, NewManager(storage.NewMemDB()).EscrowVaultAddress())
	require.NotEqual(t, vault, ModuleAddress("other"))
	require.NotEqual(t, [20]byte{}, vault)
}
