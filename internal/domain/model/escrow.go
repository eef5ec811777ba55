package model

import (
	"time"
)

// EscrowStatus is the lifecycle state of an escrow on the ledger.
// Released and Refunded are terminal; Disputed can only leave via
// a dispute resolution.
type EscrowStatus string

const (
	EscrowActive   EscrowStatus = "active"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
	EscrowDisputed EscrowStatus = "disputed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

func (s EscrowStatus) String() string {
	return string(s)
}

// Party is an opaque ledger account identifier.
type Party string

// ZeroParty is the null account. It is never a valid escrow participant.
const ZeroParty Party = ""

// EscrowRecord mirrors one ledger escrow, one per ride.
// Amount is immutable after creation; status only moves forward along the
// state machine. Records are never deleted (audit trail).
type EscrowRecord struct {
	EscrowID       int64        `db:"escrow_id"` // ledger-assigned, monotonic
	RideID         string       `db:"ride_id"`   // caller-supplied, unique
	DriverParty    Party        `db:"driver_party"`
	PassengerParty Party        `db:"passenger_party"`
	Amount         int64        `db:"amount"` // smallest unit, fixed point
	Status         EscrowStatus `db:"status"`
	DriverShare    int64        `db:"driver_share"`    // set on settlement
	PlatformFee    int64        `db:"platform_fee"`    // set on settlement
	PassengerShare int64        `db:"passenger_share"` // set on settlement
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}
