package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	"workledger/core/events"
	"workledger/core/state"
	"workledger/core/types"
	"workledger/crypto"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/reputation"
	"workledger/storage"
)

// outboundQueueSize bounds the fire-and-forget message queue. Messages beyond
// the bound are dropped (at-most-once delivery), never blocked on.
const outboundQueueSize = 256

// Config carries the persisted initialization parameters of the custody core.
type Config struct {
	// Admin is the single party authorized to resolve disputes; it also
	// collects platform fees.
	Admin crypto.Address
	// FeeBps is the platform fee in basis points (0..10000).
	FeeBps uint32
	// AutoReleaseSeconds gates the optional time-based release after lock.
	// Zero disables the escrow_autoRelease operation.
	AutoReleaseSeconds int64
}

// Node is the central controller: it owns the state manager and the native
// ledgers, serializes every mutating operation behind stateMu, and forwards
// settlement events to the job catalog through the outbound queue. The mutex
// gives single-writer-per-record semantics by construction; individual
// engines hold no locks.
type Node struct {
	db         storage.Database
	state      *state.Manager
	escrow     *escrow.Engine
	jobs       *jobs.Catalog
	reputation *reputation.Ledger
	admin      [20]byte
	logger     *slog.Logger

	stateMu sync.Mutex

	outbound chan *types.Event
	done     chan struct{}
	closed   sync.Once
}

// nodeEmitter adapts the node's outbound queue to the events.Emitter
// interface the engines expect.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	payloader, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	e.node.enqueue(payloader.Event())
}

// NewNode wires the ledgers over a shared database. The fee collector is the
// administrator account per the platform's fee policy.
func NewNode(db storage.Database, cfg Config, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: database required")
	}
	if cfg.Admin.IsZero() {
		return nil, errors.New("core: admin address required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)

	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetAdmin(cfg.Admin.Array())
	engine.SetFeeCollector(cfg.Admin.Array())
	if err := engine.SetFeeBps(cfg.FeeBps); err != nil {
		return nil, err
	}
	engine.SetReleaseDelay(cfg.AutoReleaseSeconds)

	node := &Node{
		db:         db,
		state:      manager,
		escrow:     engine,
		jobs:       jobs.NewCatalog(manager),
		reputation: reputation.NewLedger(manager),
		admin:      cfg.Admin.Array(),
		logger:     logger,
		outbound:   make(chan *types.Event, outboundQueueSize),
		done:       make(chan struct{}),
	}
	engine.SetEmitter(nodeEmitter{node: node})
	go node.drainOutbound()
	return node, nil
}

// Close stops the outbound dispatcher. Pending messages are dropped, which
// the at-most-once contract permits.
func (n *Node) Close() {
	n.closed.Do(func() { close(n.done) })
}

// enqueue hands an event to the outbound queue without blocking. A full
// queue drops the message; receivers are designed to tolerate gaps.
func (n *Node) enqueue(evt *types.Event) {
	if evt == nil {
		return
	}
	select {
	case n.outbound <- evt:
	default:
		n.logger.Warn("outbound queue full, dropping message", "type", evt.Type)
	}
}

// drainOutbound applies cross-component side effects of escrow settlement to
// the job catalog. These effects are eventually consistent with the escrow's
// own state change and idempotent on redelivery.
func (n *Node) drainOutbound() {
	for {
		select {
		case <-n.done:
			return
		case evt := <-n.outbound:
			n.applyOutbound(evt)
		}
	}
}

func (n *Node) applyOutbound(evt *types.Event) {
	var status jobs.JobStatus
	switch evt.Type {
	case escrow.EventTypeEscrowLocked:
		status = jobs.StatusAssigned
	case escrow.EventTypeEscrowCompleted:
		status = jobs.StatusCompleted
	case escrow.EventTypeEscrowRefunded:
		status = jobs.StatusCancelled
	default:
		return
	}
	jobID, err := strconv.ParseUint(evt.Attributes["jobId"], 10, 64)
	if err != nil || jobID == 0 {
		return
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if _, err := n.jobs.SetStatus(jobID, status); err != nil {
		// The catalog may legitimately not know the id: escrows reference
		// jobs opaquely and never validate their existence.
		if !errors.Is(err, jobs.ErrJobNotFound) {
			n.logger.Warn("job status update failed", "jobId", jobID, "status", string(status), "err", err)
		}
	}
}

// --- Escrow operations ---

func (n *Node) EscrowCreate(jobID uint64, employer, worker crypto.Address, amount *big.Int) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Create(jobID, employer.Array(), worker.Array(), amount)
}

func (n *Node) EscrowFund(id uint64, from crypto.Address, value *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Fund(id, from.Array(), value)
}

func (n *Node) EscrowLock(id uint64, caller crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Lock(id, caller.Array())
}

func (n *Node) EscrowConfirm(id uint64, caller crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Confirm(id, caller.Array())
}

func (n *Node) EscrowDispute(id uint64, caller crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Dispute(id, caller.Array())
}

func (n *Node) EscrowResolve(id uint64, caller crypto.Address, releaseToWorker bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Resolve(id, caller.Array(), releaseToWorker)
}

func (n *Node) EscrowAutoRelease(id uint64, caller crypto.Address) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.AutoRelease(id, caller.Array())
}

func (n *Node) EscrowGet(id uint64) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Get(id)
}

func (n *Node) EscrowCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.escrow.Count()
}

func (n *Node) EscrowFeeBps() uint32 {
	return n.escrow.FeeBps()
}

// --- Job catalog operations ---

func (n *Node) JobCreate(employer crypto.Address, spec string) (*jobs.Job, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.jobs.Create(employer.Array(), spec)
}

func (n *Node) JobGet(id uint64) (*jobs.Job, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.jobs.Get(id)
}

func (n *Node) JobSetStatus(id uint64, status jobs.JobStatus) (*jobs.Job, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.jobs.SetStatus(id, status)
}

// --- Reputation operations ---

// ReputationRate records a rating between counterparties of a settled escrow.
// The rater must be a party of the escrow and the subject the opposite party;
// only completed escrows carry a deliverable worth scoring.
func (n *Node) ReputationRate(subject, rater crypto.Address, escrowID uint64, score uint8) (*reputation.Rating, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	esc, err := n.escrow.Get(escrowID)
	if err != nil {
		return nil, err
	}
	if esc.Status != escrow.StatusCompleted {
		return nil, fmt.Errorf("%w: rating requires a completed escrow", escrow.ErrInvalidState)
	}
	raterArr, subjectArr := rater.Array(), subject.Array()
	valid := (raterArr == esc.Employer && subjectArr == esc.Worker) ||
		(raterArr == esc.Worker && subjectArr == esc.Employer)
	if !valid {
		return nil, fmt.Errorf("%w: rating restricted to escrow counterparties", escrow.ErrUnauthorized)
	}
	rating, err := n.reputation.Rate(&reputation.Rating{
		Subject:  subjectArr,
		Rater:    raterArr,
		EscrowID: escrowID,
		Score:    score,
	})
	if err != nil {
		return nil, err
	}
	n.enqueue(reputation.NewRatingSubmittedEvent(rating))
	return rating, nil
}

func (n *Node) ReputationScore(subject crypto.Address) (*reputation.Score, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.reputation.Score(subject.Array())
}

// --- Account helpers ---

func (n *Node) Balance(addr crypto.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	account, err := n.state.GetAccount(addr.Array())
	if err != nil {
		return nil, err
	}
	return account.EnsureDefaults().Balance, nil
}

// Credit funds an account outside the escrow flow (genesis allocation and
// local development).
func (n *Node) Credit(addr crypto.Address, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Credit(addr.Array(), amount)
}

// SetEscrowNowFunc overrides the escrow engine clock for deterministic tests.
func (n *Node) SetEscrowNowFunc(now func() int64) {
	n.escrow.SetNowFunc(now)
}
