// Package escrow implements the ledger-side escrow state machine: one
// record per ride, funds held in a custody account, transitions
// Active → Released/Refunded/Disputed with a basis-point fee split on
// release. Storage and value transfer are injected so the same semantics
// run inside the in-process node and in tests.
package escrow

import (
	"fmt"
	"sync"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
)

// Store is the contract's keyed storage.
type Store interface {
	Get(escrowID int64) (*model.EscrowRecord, bool)
	Put(rec *model.EscrowRecord)
	IDByRide(rideID string) (int64, bool)
	BindRide(rideID string, escrowID int64)
	NextID() int64
}

// Bank moves value between ledger accounts. TransferBatch is atomic: all
// transfers apply or none do. This is what makes release/refund
// both-transfers-or-neither.
type Bank interface {
	TransferBatch(transfers []ledger.Transfer) error
	Balance(party model.Party) int64
}

// EventSink receives contract events for the ledger's append-only log.
type EventSink func(name, key string, data any)

// Config fixes the contract's accounts and fee policy at deployment.
type Config struct {
	Custody  model.Party // holds escrowed funds
	FeeSink  model.Party // receives the platform fee
	Operator model.Party // privileged operator account
	FeeBps   int64       // capped at model.MaxFeeBps
}

// Contract is the escrow state machine. The mutex is the ledger-side
// mutual exclusion backstop: exactly one transition wins per record even
// when clients race.
type Contract struct {
	mu    sync.Mutex
	store Store
	bank  Bank
	cfg   Config
	emit  EventSink
	now   func() time.Time
}

func New(store Store, bank Bank, cfg Config, emit EventSink, now func() time.Time) (*Contract, error) {
	if cfg.FeeBps < 0 || cfg.FeeBps > model.MaxFeeBps {
		return nil, fmt.Errorf("fee bps %d out of range [0, %d]", cfg.FeeBps, model.MaxFeeBps)
	}
	if cfg.Custody == model.ZeroParty || cfg.FeeSink == model.ZeroParty || cfg.Operator == model.ZeroParty {
		return nil, fmt.Errorf("custody, fee sink and operator accounts are required")
	}
	if emit == nil {
		emit = func(string, string, any) {}
	}
	if now == nil {
		now = time.Now
	}
	return &Contract{store: store, bank: bank, cfg: cfg, emit: emit, now: now}, nil
}

// Create opens an escrow for rideID and funds it from the passenger in the
// same call. There is no two-phase funding: if the transfer into custody
// fails, no record exists.
func (c *Contract) Create(rideID string, driver, passenger model.Party, amount int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.IDByRide(rideID); ok {
		return 0, ledger.ErrDuplicateRide
	}
	if driver == model.ZeroParty || passenger == model.ZeroParty || driver == passenger {
		return 0, ledger.ErrInvalidParties
	}
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}

	if err := c.bank.TransferBatch([]ledger.Transfer{
		{From: passenger, To: c.cfg.Custody, Amount: amount},
	}); err != nil {
		return 0, fmt.Errorf("%w: fund escrow: %v", ledger.ErrTransferFailed, err)
	}

	now := c.now()
	rec := &model.EscrowRecord{
		EscrowID:       c.store.NextID(),
		RideID:         rideID,
		DriverParty:    driver,
		PassengerParty: passenger,
		Amount:         amount,
		Status:         model.EscrowActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.store.Put(rec)
	c.store.BindRide(rideID, rec.EscrowID)

	c.emit("escrow.created", rideID, map[string]any{
		"escrow_id": rec.EscrowID,
		"driver":    driver,
		"passenger": passenger,
		"amount":    amount,
	})
	return rec.EscrowID, nil
}

// Release pays the driver minus the platform fee. Only valid from Active;
// the caller must be the passenger or the operator. Transitions are
// computed first and committed only after the transfers succeed, so a
// transfer failure leaves the record Active and retryable.
func (c *Contract) Release(escrowID int64, caller model.Party) (model.FeeSplit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return model.FeeSplit{}, ledger.ErrNotFound
	}
	if rec.Status != model.EscrowActive {
		return model.FeeSplit{}, ledger.ErrNotActive
	}
	if caller != rec.PassengerParty && caller != c.cfg.Operator {
		return model.FeeSplit{}, ledger.ErrUnauthorized
	}
	return c.settleRelease(rec)
}

// Refund returns the full amount to the passenger. Only valid from Active;
// the caller must be the driver or the operator.
func (c *Contract) Refund(escrowID int64, caller model.Party) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.EscrowActive {
		return ledger.ErrNotActive
	}
	if caller != rec.DriverParty && caller != c.cfg.Operator {
		return ledger.ErrUnauthorized
	}
	return c.settleRefund(rec)
}

// SettleSplit pays a caller-decided cancellation fee to the driver and
// refunds the remainder to the passenger, conserving the escrowed amount.
// Operator-only; the fee policy itself lives with the caller.
func (c *Contract) SettleSplit(escrowID, driverFee int64, caller model.Party) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.EscrowActive {
		return ledger.ErrNotActive
	}
	if caller != c.cfg.Operator {
		return ledger.ErrUnauthorized
	}
	driverShare, passengerShare, err := model.SplitCancellation(rec.Amount, driverFee)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}

	var transfers []ledger.Transfer
	if driverShare > 0 {
		transfers = append(transfers, ledger.Transfer{From: c.cfg.Custody, To: rec.DriverParty, Amount: driverShare})
	}
	if passengerShare > 0 {
		transfers = append(transfers, ledger.Transfer{From: c.cfg.Custody, To: rec.PassengerParty, Amount: passengerShare})
	}
	if err := c.bank.TransferBatch(transfers); err != nil {
		return fmt.Errorf("%w: settle split: %v", ledger.ErrTransferFailed, err)
	}

	rec.DriverShare = driverShare
	rec.PassengerShare = passengerShare
	if driverShare > 0 {
		rec.Status = model.EscrowReleased
	} else {
		rec.Status = model.EscrowRefunded
	}
	rec.UpdatedAt = c.now()
	c.store.Put(rec)

	c.emit("escrow.split_settled", rec.RideID, map[string]any{
		"escrow_id":       rec.EscrowID,
		"driver_share":    driverShare,
		"passenger_share": passengerShare,
	})
	return nil
}

// Dispute freezes an active escrow. Caller must be a ride party.
func (c *Contract) Dispute(escrowID int64, caller model.Party) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.EscrowActive {
		return ledger.ErrNotActive
	}
	if caller != rec.DriverParty && caller != rec.PassengerParty {
		return ledger.ErrUnauthorized
	}

	rec.Status = model.EscrowDisputed
	rec.UpdatedAt = c.now()
	c.store.Put(rec)

	c.emit("escrow.disputed", rec.RideID, map[string]any{"escrow_id": rec.EscrowID, "raised_by": caller})
	return nil
}

// ResolveDispute settles a disputed escrow. Operator-only. releaseToDriver
// selects the release fee split or the full refund.
func (c *Contract) ResolveDispute(escrowID int64, releaseToDriver bool, caller model.Party) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.EscrowDisputed {
		return ledger.ErrNotDisputed
	}
	if caller != c.cfg.Operator {
		return ledger.ErrUnauthorized
	}

	if releaseToDriver {
		_, err := c.settleRelease(rec)
		return err
	}
	return c.settleRefund(rec)
}

// Details returns a copy of the record.
func (c *Contract) Details(escrowID int64) (*model.EscrowRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(escrowID)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// DetailsByRide resolves the reverse index ride_id → escrow_id.
func (c *Contract) DetailsByRide(rideID string) (*model.EscrowRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.store.IDByRide(rideID)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	rec, ok := c.store.Get(id)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// settleRelease performs the fee split and both payout transfers, then
// commits Released. Callers hold c.mu.
func (c *Contract) settleRelease(rec *model.EscrowRecord) (model.FeeSplit, error) {
	split, err := model.ComputeFeeSplit(rec.Amount, c.cfg.FeeBps)
	if err != nil {
		return model.FeeSplit{}, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}

	transfers := []ledger.Transfer{
		{From: c.cfg.Custody, To: rec.DriverParty, Amount: split.DriverShare},
	}
	if split.PlatformFee > 0 {
		transfers = append(transfers, ledger.Transfer{From: c.cfg.Custody, To: c.cfg.FeeSink, Amount: split.PlatformFee})
	}
	if err := c.bank.TransferBatch(transfers); err != nil {
		return model.FeeSplit{}, fmt.Errorf("%w: release payout: %v", ledger.ErrTransferFailed, err)
	}

	rec.Status = model.EscrowReleased
	rec.DriverShare = split.DriverShare
	rec.PlatformFee = split.PlatformFee
	rec.UpdatedAt = c.now()
	c.store.Put(rec)

	c.emit("escrow.released", rec.RideID, map[string]any{
		"escrow_id":    rec.EscrowID,
		"driver_share": split.DriverShare,
		"platform_fee": split.PlatformFee,
	})
	return split, nil
}

// settleRefund transfers the full amount back and commits Refunded.
// Callers hold c.mu.
func (c *Contract) settleRefund(rec *model.EscrowRecord) error {
	if err := c.bank.TransferBatch([]ledger.Transfer{
		{From: c.cfg.Custody, To: rec.PassengerParty, Amount: rec.Amount},
	}); err != nil {
		return fmt.Errorf("%w: refund payout: %v", ledger.ErrTransferFailed, err)
	}

	rec.Status = model.EscrowRefunded
	rec.PassengerShare = rec.Amount
	rec.UpdatedAt = c.now()
	c.store.Put(rec)

	c.emit("escrow.refunded", rec.RideID, map[string]any{
		"escrow_id": rec.EscrowID,
		"amount":    rec.Amount,
	})
	return nil
}
