package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"workledger/crypto"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/storage"
)

func testAddress(t *testing.T, fill byte) crypto.Address {
	t.Helper()
	b := make([]byte, crypto.AddressLength)
	for i := range b {
		b[i] = fill
	}
	return crypto.NewAddress(crypto.WRKPrefix, b)
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	node, err := NewNode(storage.NewMemDB(), Config{
		Admin:  testAddress(t, 0x0A),
		FeeBps: 250,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(node.Close)
	return node
}

func TestNodeEscrowLifecycle(t *testing.T) {
	node := newTestNode(t)
	employer := testAddress(t, 0x01)
	worker := testAddress(t, 0x02)
	admin := testAddress(t, 0x0A)
	amount := big.NewInt(100_000_000_000)

	require.NoError(t, node.Credit(employer, amount))

	job, err := node.JobCreate(employer, "translate the onboarding docs")
	require.NoError(t, err)

	esc, err := node.EscrowCreate(job.ID, employer, crypto.Address{}, amount)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCreated, esc.Status)

	require.NoError(t, node.EscrowFund(esc.ID, employer, amount))
	require.NoError(t, node.EscrowLock(esc.ID, worker))
	require.NoError(t, node.EscrowConfirm(esc.ID, employer))
	require.NoError(t, node.EscrowConfirm(esc.ID, worker))

	stored, err := node.EscrowGet(esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCompleted, stored.Status)

	workerBalance, err := node.Balance(worker)
	require.NoError(t, err)
	require.Equal(t, "97500000000", workerBalance.String())
	adminBalance, err := node.Balance(admin)
	require.NoError(t, err)
	require.Equal(t, "2500000000", adminBalance.String())

	// The completion message reaches the catalog eventually, not
	// transactionally with the escrow's own transition.
	require.Eventually(t, func() bool {
		updated, err := node.JobGet(job.ID)
		return err == nil && updated.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNodeGetReflectsOnlySpecifiedFields(t *testing.T) {
	node := newTestNode(t)
	employer := testAddress(t, 0x01)
	worker := testAddress(t, 0x02)
	amount := big.NewInt(50_000)
	require.NoError(t, node.Credit(employer, amount))

	esc, err := node.EscrowCreate(7, employer, crypto.Address{}, amount)
	require.NoError(t, err)

	require.NoError(t, node.EscrowFund(esc.ID, employer, amount))
	afterFund, err := node.EscrowGet(esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusFunded, afterFund.Status)
	require.Zero(t, afterFund.LockedAt)
	require.False(t, afterFund.EmployerConfirmed)

	require.NoError(t, node.EscrowLock(esc.ID, worker))
	afterLock, err := node.EscrowGet(esc.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusLocked, afterLock.Status)
	require.Equal(t, worker.Array(), afterLock.Worker)
	require.NotZero(t, afterLock.LockedAt)
	require.Zero(t, afterLock.CompletedAt)
	require.Equal(t, afterFund.CreatedAt, afterLock.CreatedAt)
	require.Equal(t, afterFund.Amount, afterLock.Amount)
}

func TestNodeDisputeRefundCancelsJob(t *testing.T) {
	node := newTestNode(t)
	employer := testAddress(t, 0x01)
	worker := testAddress(t, 0x02)
	admin := testAddress(t, 0x0A)
	amount := big.NewInt(80_000)
	require.NoError(t, node.Credit(employer, amount))

	job, err := node.JobCreate(employer, "ship the landing page")
	require.NoError(t, err)
	esc, err := node.EscrowCreate(job.ID, employer, crypto.Address{}, amount)
	require.NoError(t, err)
	require.NoError(t, node.EscrowFund(esc.ID, employer, amount))
	require.NoError(t, node.EscrowLock(esc.ID, worker))
	require.NoError(t, node.EscrowDispute(esc.ID, employer))

	err = node.EscrowResolve(esc.ID, worker, true)
	require.True(t, errors.Is(err, escrow.ErrUnauthorized))

	require.NoError(t, node.EscrowResolve(esc.ID, admin, false))
	balance, err := node.Balance(employer)
	require.NoError(t, err)
	require.Equal(t, amount.String(), balance.String())
	adminBalance, err := node.Balance(admin)
	require.NoError(t, err)
	require.Zero(t, adminBalance.Sign())

	require.Eventually(t, func() bool {
		updated, err := node.JobGet(job.ID)
		return err == nil && updated.Status == jobs.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNodeReputationGuards(t *testing.T) {
	node := newTestNode(t)
	employer := testAddress(t, 0x01)
	worker := testAddress(t, 0x02)
	outsider := testAddress(t, 0x03)
	amount := big.NewInt(10_000)
	require.NoError(t, node.Credit(employer, amount))

	esc, err := node.EscrowCreate(1, employer, crypto.Address{}, amount)
	require.NoError(t, err)
	require.NoError(t, node.EscrowFund(esc.ID, employer, amount))
	require.NoError(t, node.EscrowLock(esc.ID, worker))

	_, err = node.ReputationRate(worker, employer, esc.ID, 5)
	require.True(t, errors.Is(err, escrow.ErrInvalidState))

	require.NoError(t, node.EscrowConfirm(esc.ID, employer))
	require.NoError(t, node.EscrowConfirm(esc.ID, worker))

	_, err = node.ReputationRate(worker, outsider, esc.ID, 5)
	require.True(t, errors.Is(err, escrow.ErrUnauthorized))
	_, err = node.ReputationRate(outsider, employer, esc.ID, 5)
	require.True(t, errors.Is(err, escrow.ErrUnauthorized))

	_, err = node.ReputationRate(worker, employer, esc.ID, 5)
	require.NoError(t, err)
	_, err = node.ReputationRate(employer, worker, esc.ID, 4)
	require.NoError(t, err)

	score, err := node.ReputationScore(worker)
	require.NoError(t, err)
	require.Equal(t, uint64(5), score.Total)
	require.Equal(t, uint64(1), score.Count)
}

func TestNodeEscrowCountAndFeeQueries(t *testing.T) {
	node := newTestNode(t)
	employer := testAddress(t, 0x01)

	count, err := node.EscrowCount()
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = node.EscrowCreate(1, employer, crypto.Address{}, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.EscrowCreate(2, employer, crypto.Address{}, big.NewInt(200))
	require.NoError(t, err)

	count, err = node.EscrowCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	require.Equal(t, uint32(250), node.EscrowFeeBps())
}

func TestNewNodeValidation(t *testing.T) {
	_, err := NewNode(nil, Config{Admin: crypto.Address{}}, nil)
	require.Error(t, err)
	_, err = NewNode(storage.NewMemDB(), Config{}, nil)
	require.Error(t, err)
	_, err = NewNode(storage.NewMemDB(), Config{Admin: crypto.Address{}, FeeBps: 250}, nil)
	require.Error(t, err)
}
