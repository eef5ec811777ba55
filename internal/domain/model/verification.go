package model

import "time"

// VerificationStatus is the stored state of a driver verification record.
// Expiry is a derived predicate, not a stored state: a record keeps
// status Verified after expires_at passes until a verifier acts on it.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationVerified  VerificationStatus = "verified"
	VerificationRejected  VerificationStatus = "rejected"
	VerificationSuspended VerificationStatus = "suspended"
)

func (s VerificationStatus) String() string {
	return string(s)
}

// ValidityPeriod is how long a verification stays trustworthy after the
// verifier action.
const ValidityPeriod = 365 * 24 * time.Hour

// InitialReputationScore is assigned on first verification.
const InitialReputationScore = 100

// MaxReputationScore bounds updateReputationScore input.
const MaxReputationScore = 1000

// VerificationRecord mirrors one ledger driver-verification entry.
// DriverID and DriverAddress map 1:1 both ways; neither side is ever
// reassigned. Records are never deleted.
type VerificationRecord struct {
	DriverAddress      Party              `db:"driver_address"`
	DriverID           string             `db:"driver_id"`
	DocumentHash       string             `db:"document_hash"`
	OffLedgerReference string             `db:"off_ledger_reference"` // encrypted blob pointer
	Status             VerificationStatus `db:"status"`
	VerifiedAt         time.Time          `db:"verified_at"`
	ExpiresAt          time.Time          `db:"expires_at"`
	Verifier           Party              `db:"verifier"`
	ReputationScore    int                `db:"reputation_score"`
	CreatedAt          time.Time          `db:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at"`
}

// VerifiedNow reports whether the record authorizes the driver at the
// given instant. Stored status alone is not enough past expires_at.
func (r *VerificationRecord) VerifiedNow(now time.Time) bool {
	return r.Status == VerificationVerified && now.Before(r.ExpiresAt)
}

// VerifierRecord is one entry of the owner-governed verifier allow-list.
type VerifierRecord struct {
	Address      Party     `db:"address"`
	Name         string    `db:"name"`
	AddedAt      time.Time `db:"added_at"`
	IsAuthorized bool      `db:"is_authorized"`
}
