// Package ledger defines the types shared between the escrow and
// verification contracts, the in-process ledger node, and the RPC client
// for an external node. The gateway talks to any of these through the
// Client interface.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
)

// Precondition failures. Deterministic: the ledger rejected the transition
// because its business precondition was false. Never retried.
var (
	ErrDuplicateRide    = errors.New("ride already has an escrow")
	ErrInvalidParties   = errors.New("invalid escrow parties")
	ErrInvalidAmount    = errors.New("invalid escrow amount")
	ErrNotActive        = errors.New("escrow is not active")
	ErrNotDisputed      = errors.New("escrow is not disputed")
	ErrUnauthorized     = errors.New("caller not authorized")
	ErrNotFound         = errors.New("record not found")
	ErrDriverIDTaken    = errors.New("driver id bound to a different address")
	ErrNotVerified      = errors.New("driver is not verified")
	ErrScoreOutOfRange  = errors.New("reputation score out of range")
	ErrTransferFailed   = errors.New("value transfer failed")
)

// Receipt is the deterministic result of a confirmed transition.
type Receipt struct {
	Sequence int64     // ledger entry sequence of the transition
	TxHash   string    // transition identifier on the ledger
	EscrowID int64     // populated for escrow transitions
	Time     time.Time // ledger timestamp
}

// Event is one entry of the ledger's append-only event log, replayable by
// sequence range to rebuild local state after an outage.
type Event struct {
	Sequence int64           `json:"sequence"`
	Name     string          `json:"name"`
	Key      string          `json:"key"` // ride_id or driver_id
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`
}

// Cost is the estimated submission cost of a transition, in the ledger's
// native fee unit.
type Cost struct {
	Transition model.Transition
	Units      int64
}

// Transfer moves value between two ledger accounts. Batches are atomic:
// the ledger applies all transfers of a batch or none of them.
type Transfer struct {
	From   model.Party
	To     model.Party
	Amount int64
}

//go:generate mockgen -source=ledger.go -destination=mocks/mock_client.go -package=mocks

// Client is the full surface the gateway submits against. Implementations:
// local.Node (in-process, dev/test) and rpc.Client (external node).
//
// All mutating calls return the precondition sentinel errors above on
// deterministic rejection. Transport-level failures come back as whatever
// error the transport produced; classification is the gateway's job.
type Client interface {
	// Escrow transitions.
	CreateEscrow(ctx context.Context, rideID string, driver, passenger model.Party, amount int64) (Receipt, error)
	Release(ctx context.Context, escrowID int64, caller model.Party) (Receipt, error)
	Refund(ctx context.Context, escrowID int64, caller model.Party) (Receipt, error)
	SettleSplit(ctx context.Context, escrowID int64, driverFee int64, caller model.Party) (Receipt, error)
	Dispute(ctx context.Context, escrowID int64, caller model.Party) (Receipt, error)
	ResolveDispute(ctx context.Context, escrowID int64, releaseToDriver bool, caller model.Party) (Receipt, error)

	// Escrow reads. Side-effect free, safe to retry.
	GetEscrow(ctx context.Context, escrowID int64) (*model.EscrowRecord, error)
	GetEscrowByRide(ctx context.Context, rideID string) (*model.EscrowRecord, error)

	// Verification transitions.
	AddVerifier(ctx context.Context, caller, address model.Party, name string) (Receipt, error)
	RemoveVerifier(ctx context.Context, caller, address model.Party) (Receipt, error)
	VerifyDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, documentHash, offLedgerRef string) (Receipt, error)
	RejectDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, reason string) (Receipt, error)
	SuspendDriver(ctx context.Context, verifier, driverAddress model.Party, reason string) (Receipt, error)
	UpdateReputationScore(ctx context.Context, verifier, driverAddress model.Party, newScore int) (Receipt, error)
	RenewVerification(ctx context.Context, verifier, driverAddress model.Party) (Receipt, error)

	// Verification reads.
	IsDriverVerified(ctx context.Context, driverAddress model.Party) (bool, error)
	GetVerification(ctx context.Context, driverAddress model.Party) (*model.VerificationRecord, error)

	// Chain metadata.
	HeadSequence(ctx context.Context) (int64, error)
	EstimateCost(ctx context.Context, transition model.Transition) (Cost, error)
	Events(ctx context.Context, fromSeq, toSeq int64) ([]Event, error)
}
