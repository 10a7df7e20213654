package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"workledger/core/events"
	"workledger/core/types"
)

var (
	errNilState        = errors.New("escrow engine: state not configured")
	errNilFeeCollector = errors.New("escrow engine: fee collector not configured")
)

// engineState is the slice of state-manager functionality the engine needs:
// the keyed escrow store, its persisted id counter, and plain accounts for
// the parties, the module vault and the fee collector.
type engineState interface {
	EscrowCreate(*Escrow) error
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	EscrowNextID() (uint64, error)
	EscrowCount() uint64
	EscrowVaultAddress() [20]byte
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow state machine with external state and event
// emitters. All guards run before any mutation, so a failed operation has
// zero observable effect; the host serializes operations, so the engine
// itself holds no locks.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	admin        [20]byte
	feeCollector [20]byte
	feeBps       uint32
	releaseDelay int64
	nowFn        func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdmin configures the administrator address authorized to resolve
// disputes.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetFeeCollector configures the address that receives platform fees.
func (e *Engine) SetFeeCollector(addr [20]byte) { e.feeCollector = addr }

// SetFeeBps configures the platform fee in basis points. Values above 10000
// are rejected so the fee can never exceed the custodied amount.
func (e *Engine) SetFeeBps(bps uint32) error {
	if bps > 10_000 {
		return fmt.Errorf("%w: fee bps %d out of range", ErrInsufficientFunds, bps)
	}
	e.feeBps = bps
	return nil
}

// FeeBps returns the configured platform fee in basis points.
func (e *Engine) FeeBps() uint32 { return e.feeBps }

// SetReleaseDelay configures the auto-release window in seconds counted from
// LockedAt. Zero disables the auto-release operation entirely.
func (e *Engine) SetReleaseDelay(seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	e.releaseDelay = seconds
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

// transfer moves amount between two plain accounts. Zero-value transfers are
// a no-op; negative amounts never reach this point.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("escrow: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = fromAcc.EnsureDefaults()
	toAcc = toAcc.EnsureDefaults()
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: balance below transfer amount", ErrInsufficientFunds)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// Split computes the fee/payout division for the supplied amount at the given
// fee rate. The fee floors toward zero, so fractional remainders accrue to
// the payout: payout + fee == amount always holds exactly.
func Split(amount *big.Int, feeBps uint32) (fee, payout *big.Int, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, fmt.Errorf("escrow: amount must be positive")
	}
	if feeBps > 10_000 {
		return nil, nil, fmt.Errorf("%w: fee bps %d out of range", ErrInsufficientFunds, feeBps)
	}
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	payout = new(big.Int).Sub(amount, fee)
	return fee, payout, nil
}

// Create initialises and persists a new escrow record in the Created state.
// The worker may be zero; it is then bound by the first Lock caller. The
// configured fee rate is snapshotted onto the record so later fee changes
// never reprice an existing agreement.
func (e *Engine) Create(jobID uint64, employer [20]byte, worker [20]byte, amount *big.Int) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive")
	}
	if employer == ([20]byte{}) {
		return nil, fmt.Errorf("escrow: employer required")
	}
	if worker == employer {
		return nil, fmt.Errorf("escrow: employer and worker must differ")
	}
	id, err := e.state.EscrowNextID()
	if err != nil {
		return nil, err
	}
	esc := &Escrow{
		ID:        id,
		JobID:     jobID,
		Employer:  employer,
		Worker:    worker,
		Amount:    amt,
		FeeBps:    e.feeBps,
		Status:    StatusCreated,
		CreatedAt: e.now(),
	}
	sanitized, err := Sanitize(esc)
	if err != nil {
		return nil, err
	}
	if err := e.state.EscrowCreate(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// Fund moves the escrow amount from the employer into the module vault.
// The offered value must cover the custodied amount; any excess stays with
// the employer so a later refund returns exactly the amount.
func (e *Engine) Fund(id uint64, from [20]byte, value *big.Int) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusCreated {
		return fmt.Errorf("%w: cannot fund from %s", ErrInvalidState, esc.Status)
	}
	if from != esc.Employer {
		return fmt.Errorf("%w: only the employer may fund", ErrUnauthorized)
	}
	if cloneBigInt(value).Cmp(esc.Amount) < 0 {
		return fmt.Errorf("%w: offered value below escrow amount", ErrInsufficientFunds)
	}
	if err := e.transfer(esc.Employer, e.state.EscrowVaultAddress(), esc.Amount); err != nil {
		return err
	}
	esc.Status = StatusFunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewFundedEvent(esc))
	return nil
}

// Lock binds the worker to a funded escrow. The employer cannot take their
// own job; when the record already names a worker, only that worker may lock.
func (e *Engine) Lock(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusFunded {
		return fmt.Errorf("%w: cannot lock from %s", ErrInvalidState, esc.Status)
	}
	if caller == esc.Employer {
		return fmt.Errorf("%w: employer cannot lock own escrow", ErrUnauthorized)
	}
	if esc.HasWorker() && caller != esc.Worker {
		return fmt.Errorf("%w: escrow reserved for another worker", ErrUnauthorized)
	}
	if caller == ([20]byte{}) {
		return fmt.Errorf("%w: worker address required", ErrUnauthorized)
	}
	esc.Worker = caller
	esc.Status = StatusLocked
	esc.LockedAt = e.now()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewLockedEvent(esc))
	return nil
}

// Confirm records one party's completion confirmation. Confirm is idempotent
// per caller; the instant both flags are true the same call releases the
// funds, so there is no separate release step.
func (e *Engine) Confirm(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusLocked {
		return fmt.Errorf("%w: cannot confirm from %s", ErrInvalidState, esc.Status)
	}
	if !esc.party(caller) {
		return fmt.Errorf("%w: confirm restricted to escrow parties", ErrUnauthorized)
	}
	switch caller {
	case esc.Employer:
		if esc.EmployerConfirmed {
			return nil
		}
		esc.EmployerConfirmed = true
	case esc.Worker:
		if esc.WorkerConfirmed {
			return nil
		}
		esc.WorkerConfirmed = true
	}
	if esc.EmployerConfirmed && esc.WorkerConfirmed {
		return e.release(esc)
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewConfirmedEvent(esc, caller))
	return nil
}

// Dispute flags a locked escrow as disputed. Only the employer or worker may
// raise; pre-lock records have no contested work so disputes are rejected
// until the lock happens.
func (e *Engine) Dispute(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusLocked {
		return fmt.Errorf("%w: cannot dispute from %s", ErrInvalidState, esc.Status)
	}
	if !esc.party(caller) {
		return fmt.Errorf("%w: dispute restricted to escrow parties", ErrUnauthorized)
	}
	esc.Status = StatusDisputed
	esc.DisputeRaisedAt = e.now()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(esc, caller))
	return nil
}

// Resolve settles a disputed escrow according to the administrator's
// decision. releaseToWorker pays out with the standard fee split; otherwise
// the full amount returns to the employer and no fee is charged. The
// authorization check runs before any state inspection, so a non-admin
// caller always observes ErrUnauthorized regardless of the record's state.
func (e *Engine) Resolve(id uint64, caller [20]byte, releaseToWorker bool) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if e.admin == ([20]byte{}) || caller != e.admin {
		return fmt.Errorf("%w: resolve restricted to administrator", ErrUnauthorized)
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusDisputed {
		return fmt.Errorf("%w: cannot resolve from %s", ErrInvalidState, esc.Status)
	}
	if releaseToWorker {
		if err := e.release(esc); err != nil {
			return err
		}
		e.emit(NewResolvedEvent(esc, "release"))
		return nil
	}
	if err := e.refund(esc); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(esc, "refund"))
	return nil
}

// AutoRelease is the time-gated extension path: once the configured window
// has elapsed after lock, any involved party or the administrator may force
// the standard payout without the counterparty's confirmation. The engine has
// no ambient clock scheduling, so an external trigger must invoke this.
func (e *Engine) AutoRelease(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if e.releaseDelay <= 0 {
		return fmt.Errorf("%w: auto-release disabled", ErrInvalidState)
	}
	if esc.Status.Terminal() {
		return fmt.Errorf("%w: id %d", ErrAlreadyReleased, id)
	}
	if esc.Status != StatusLocked {
		return fmt.Errorf("%w: cannot auto-release from %s", ErrInvalidState, esc.Status)
	}
	if !esc.party(caller) && caller != e.admin {
		return fmt.Errorf("%w: auto-release restricted to parties and administrator", ErrUnauthorized)
	}
	if e.now() < esc.LockedAt+e.releaseDelay {
		return fmt.Errorf("%w: locked at %d, window %ds", ErrDisputeTimeout, esc.LockedAt, e.releaseDelay)
	}
	return e.release(esc)
}

// release pays the worker minus the platform fee and moves the record to
// Completed. Called with every guard already satisfied.
func (e *Engine) release(esc *Escrow) error {
	if esc == nil {
		return fmt.Errorf("escrow: nil escrow")
	}
	if e.feeCollector == ([20]byte{}) {
		return errNilFeeCollector
	}
	if !esc.HasWorker() {
		return fmt.Errorf("%w: no worker bound", ErrInvalidState)
	}
	fee, payout, err := Split(esc.Amount, esc.FeeBps)
	if err != nil {
		return err
	}
	vault := e.state.EscrowVaultAddress()
	if err := e.transfer(vault, esc.Worker, payout); err != nil {
		return err
	}
	if err := e.transfer(vault, e.feeCollector, fee); err != nil {
		return err
	}
	esc.Status = StatusCompleted
	esc.CompletedAt = e.now()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewCompletedEvent(esc, fee, payout))
	return nil
}

// refund returns the full custodied amount to the employer with no fee and
// moves the record to Refunded.
func (e *Engine) refund(esc *Escrow) error {
	if esc == nil {
		return fmt.Errorf("escrow: nil escrow")
	}
	amount := cloneBigInt(esc.Amount)
	if amount.Sign() <= 0 {
		return fmt.Errorf("escrow: amount must be positive")
	}
	if err := e.transfer(e.state.EscrowVaultAddress(), esc.Employer, amount); err != nil {
		return err
	}
	esc.Status = StatusRefunded
	esc.CompletedAt = e.now()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(esc))
	return nil
}

// Get returns a clone of the stored record.
func (e *Engine) Get(id uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Count returns the total number of records ever created.
func (e *Engine) Count() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.EscrowCount(), nil
}
