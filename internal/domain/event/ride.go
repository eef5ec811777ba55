// Package event defines the ride-lifecycle events exchanged with the
// surrounding CRUD services. Inbound events trigger ledger effects through
// the reconciliation coordinator; outbound events report settlement and
// verification outcomes and are delivered at least once, keyed by
// ride_id / driver_id.
package event

import (
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
)

// RideAccepted asks for the ride's payment to be escrowed.
type RideAccepted struct {
	RideID         string      `json:"ride_id"`
	DriverParty    model.Party `json:"driver_party"`
	PassengerParty model.Party `json:"passenger_party"`
	Amount         int64       `json:"amount"`
}

// RideCompleted asks for the escrow to be released to the driver.
// FinalAmount is informational: the core releases the escrowed amount and
// echoes both values back; any top-up or partial refund is a separate call.
type RideCompleted struct {
	RideID      string `json:"ride_id"`
	FinalAmount int64  `json:"final_amount"`
}

// RideCancelled asks for a cancellation split: DriverFee (decided by the
// caller's fee policy) goes to the driver, the remainder back to the
// passenger. DriverFee == 0 is a plain refund.
type RideCancelled struct {
	RideID      string `json:"ride_id"`
	CancelledBy string `json:"cancelled_by"`
	DriverFee   int64  `json:"driver_fee"`
}

// DisputeRaised freezes the escrow pending resolution.
type DisputeRaised struct {
	RideID   string `json:"ride_id"`
	RaisedBy string `json:"raised_by"`
}

// DisputeResolved settles a disputed escrow one way or the other.
type DisputeResolved struct {
	RideID      string `json:"ride_id"`
	FavorDriver bool   `json:"favor_driver"`
}

// DriverDocumentsSubmitted carries the raw verification documents. The core
// hashes the blob, stores an encrypted off-ledger reference, and records the
// verifier's decision on the ledger.
type DriverDocumentsSubmitted struct {
	DriverID      string      `json:"driver_id"`
	DriverAddress model.Party `json:"driver_address"`
	DocumentBlob  []byte      `json:"document_blob"`
	Approve       bool        `json:"approve"`
	Reason        string      `json:"reason,omitempty"` // required on rejection
	Verifier      model.Party `json:"verifier"`
}

// EscrowSettled reports a terminal escrow outcome.
type EscrowSettled struct {
	RideID         string             `json:"ride_id"`
	Status         model.EscrowStatus `json:"status"`
	DriverShare    int64              `json:"driver_share"`
	PlatformFee    int64              `json:"platform_fee"`
	PassengerShare int64              `json:"passenger_share"`
	FinalAmount    int64              `json:"final_amount,omitempty"`
	SettledAt      time.Time          `json:"settled_at"`
}

// EscrowFailed reports a terminally failed escrow operation.
type EscrowFailed struct {
	RideID   string    `json:"ride_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// DriverVerificationChanged reports a verification status change.
type DriverVerificationChanged struct {
	DriverID  string                   `json:"driver_id"`
	Status    model.VerificationStatus `json:"status"`
	ExpiresAt time.Time                `json:"expires_at,omitempty"`
	ChangedAt time.Time                `json:"changed_at"`
}
