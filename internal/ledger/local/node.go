// Package local runs the escrow and verification contracts in-process
// behind the ledger.Client interface: an embedded ledger node with a
// monotonic entry sequence and an append-only event log. It is the default
// backend for development and tests; production points the gateway at an
// external node via ledger/rpc instead.
package local

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/ledger/escrow"
	"github.com/veloride/settlement-core/internal/ledger/verification"
)

// Node implements ledger.Client over in-process contracts.
type Node struct {
	mu       sync.Mutex
	seq      int64
	events   []ledger.Event
	escrow   *escrow.Contract
	registry *verification.Registry
	bank     *MemBank
	now      func() time.Time
}

// Config mirrors the contract deployment parameters.
type Config struct {
	Custody  model.Party
	FeeSink  model.Party
	Operator model.Party
	Owner    model.Party // verification registry owner
	FeeBps   int64
	Now      func() time.Time // defaults to time.Now
}

func NewNode(cfg Config) (*Node, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	n := &Node{bank: NewMemBank(), now: cfg.Now}

	esc, err := escrow.New(escrow.NewMemStore(), n.bank, escrow.Config{
		Custody:  cfg.Custody,
		FeeSink:  cfg.FeeSink,
		Operator: cfg.Operator,
		FeeBps:   cfg.FeeBps,
	}, n.appendEvent, cfg.Now)
	if err != nil {
		return nil, err
	}
	reg, err := verification.New(verification.NewMemStore(), cfg.Owner, n.appendEvent, cfg.Now)
	if err != nil {
		return nil, err
	}
	n.escrow = esc
	n.registry = reg
	return n, nil
}

// Bank exposes the embedded bank for seeding and balance assertions.
func (n *Node) Bank() *MemBank {
	return n.bank
}

// appendEvent records a contract event at the sequence reserved for the
// transition in flight.
func (n *Node) appendEvent(name, key string, data any) {
	raw, _ := json.Marshal(data)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ledger.Event{
		Sequence: n.seq,
		Name:     name,
		Key:      key,
		Data:     raw,
		Time:     n.now(),
	})
}

// submit reserves the next sequence, runs the transition, and produces a
// receipt on success.
func (n *Node) submit(ctx context.Context, fn func() (int64, error)) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}
	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.mu.Unlock()

	escrowID, err := fn()
	if err != nil {
		return ledger.Receipt{}, err
	}
	return ledger.Receipt{
		Sequence: seq,
		TxHash:   uuid.NewString(),
		EscrowID: escrowID,
		Time:     n.now(),
	}, nil
}

// Tick appends an empty ledger entry, advancing confirmation depth for
// everything before it.
func (n *Node) Tick() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
}

func (n *Node) CreateEscrow(ctx context.Context, rideID string, driver, passenger model.Party, amount int64) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return n.escrow.Create(rideID, driver, passenger, amount)
	})
}

func (n *Node) Release(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		_, err := n.escrow.Release(escrowID, caller)
		return escrowID, err
	})
}

func (n *Node) Refund(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return escrowID, n.escrow.Refund(escrowID, caller)
	})
}

func (n *Node) SettleSplit(ctx context.Context, escrowID int64, driverFee int64, caller model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return escrowID, n.escrow.SettleSplit(escrowID, driverFee, caller)
	})
}

func (n *Node) Dispute(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return escrowID, n.escrow.Dispute(escrowID, caller)
	})
}

func (n *Node) ResolveDispute(ctx context.Context, escrowID int64, releaseToDriver bool, caller model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return escrowID, n.escrow.ResolveDispute(escrowID, releaseToDriver, caller)
	})
}

func (n *Node) GetEscrow(ctx context.Context, escrowID int64) (*model.EscrowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.escrow.Details(escrowID)
}

func (n *Node) GetEscrowByRide(ctx context.Context, rideID string) (*model.EscrowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.escrow.DetailsByRide(rideID)
}

func (n *Node) AddVerifier(ctx context.Context, caller, address model.Party, name string) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.AddVerifier(caller, address, name)
	})
}

func (n *Node) RemoveVerifier(ctx context.Context, caller, address model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.RemoveVerifier(caller, address)
	})
}

func (n *Node) VerifyDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, documentHash, offLedgerRef string) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.VerifyDriver(verifier, driverAddress, driverID, documentHash, offLedgerRef)
	})
}

func (n *Node) RejectDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, reason string) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.RejectDriver(verifier, driverAddress, driverID, reason)
	})
}

func (n *Node) SuspendDriver(ctx context.Context, verifier, driverAddress model.Party, reason string) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.SuspendDriver(verifier, driverAddress, reason)
	})
}

func (n *Node) UpdateReputationScore(ctx context.Context, verifier, driverAddress model.Party, newScore int) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.UpdateReputationScore(verifier, driverAddress, newScore)
	})
}

func (n *Node) RenewVerification(ctx context.Context, verifier, driverAddress model.Party) (ledger.Receipt, error) {
	return n.submit(ctx, func() (int64, error) {
		return 0, n.registry.RenewVerification(verifier, driverAddress)
	})
}

func (n *Node) IsDriverVerified(ctx context.Context, driverAddress model.Party) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return n.registry.IsVerified(driverAddress), nil
}

func (n *Node) GetVerification(ctx context.Context, driverAddress model.Party) (*model.VerificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.registry.Get(driverAddress)
}

func (n *Node) HeadSequence(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq, nil
}

// transitionCosts is a static unit table; an external node would meter
// these from actual execution.
var transitionCosts = map[model.Transition]int64{
	model.TransitionCreateEscrow:   21000,
	model.TransitionRelease:        32000,
	model.TransitionRefund:         27000,
	model.TransitionCancelSplit:    38000,
	model.TransitionDispute:        18000,
	model.TransitionResolveDispute: 35000,
	model.TransitionVerifyDriver:   24000,
	model.TransitionRejectDriver:   19000,
}

func (n *Node) EstimateCost(ctx context.Context, transition model.Transition) (ledger.Cost, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Cost{}, err
	}
	units, ok := transitionCosts[transition]
	if !ok {
		units = 21000
	}
	return ledger.Cost{Transition: transition, Units: units}, nil
}

func (n *Node) Events(ctx context.Context, fromSeq, toSeq int64) ([]ledger.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []ledger.Event
	for _, ev := range n.events {
		if ev.Sequence >= fromSeq && ev.Sequence <= toSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}
