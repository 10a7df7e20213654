package state

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"workledger/core/types"
)

var accountPrefix = []byte("acct/")

func accountKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%s", accountPrefix, hex.EncodeToString(addr[:])))
}

// GetAccount loads the account stored for addr. Addresses the ledger has
// never seen resolve to a zero-balance account rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var account types.Account
	ok, err := m.KVGet(accountKey(addr), &account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return account.EnsureDefaults(), nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %x", addr)
	}
	account = account.EnsureDefaults()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %x", addr)
	}
	return m.KVPut(accountKey(addr), account)
}

// Credit adds amount to the account at addr. Used by genesis allocation and
// the faucet-style test helpers; regular operation moves value only through
// the escrow engine's transfers.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}
