package escrow

import "errors"

// Stable error kinds surfaced by the engine. Callers discriminate with
// errors.Is; every failure leaves the record and all balances untouched.
var (
	// ErrNotFound marks operations against an unknown escrow id.
	ErrNotFound = errors.New("escrow: not found")
	// ErrAlreadyExists marks creation of an id the store already holds.
	ErrAlreadyExists = errors.New("escrow: already exists")
	// ErrUnauthorized marks callers that fail the operation's identity guard.
	ErrUnauthorized = errors.New("escrow: unauthorized")
	// ErrInvalidState marks operations that are not legal from the record's
	// current state, including double-funding and double-locking.
	ErrInvalidState = errors.New("escrow: invalid state")
	// ErrInsufficientFunds marks funding below the custodied amount or a fee
	// configuration that cannot be applied safely.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	// ErrAlreadyReleased marks mutations of a terminal record.
	ErrAlreadyReleased = errors.New("escrow: already released")
	// ErrDisputeTimeout marks auto-release triggers before the configured
	// window has elapsed.
	ErrDisputeTimeout = errors.New("escrow: release window not elapsed")
)
