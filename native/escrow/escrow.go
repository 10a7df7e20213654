// Package escrow implements the payment-custody core of the workledger
// marketplace. Funds posted for a job are held in a module vault until the
// employer and worker mutually confirm completion, at which point the engine
// splits the amount into a platform fee and a worker payout. Disputes fall
// back to a single administrator who can force either terminal outcome. The
// administrator key is an explicit centralization trade-off: dispute
// resolution is auditable through a single capability check rather than a
// decentralized vote.
//
// The engine assumes host-serialized execution: one operation runs to
// completion against one record before the next is considered, so no locking
// happens here. Every guard is evaluated before any field or balance is
// touched, making each operation all-or-nothing.
package escrow
