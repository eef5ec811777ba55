package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a reconciliation job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobSubmitted JobState = "submitted"
	JobConfirmed JobState = "confirmed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled" // only reachable from pending
)

func (s JobState) String() string {
	return string(s)
}

// Transition names the ledger-side effect a job is responsible for.
type Transition string

const (
	TransitionCreateEscrow   Transition = "create_escrow"
	TransitionRelease        Transition = "release"
	TransitionRefund         Transition = "refund"
	TransitionCancelSplit    Transition = "cancel_split"
	TransitionDispute        Transition = "dispute"
	TransitionResolveDispute Transition = "resolve_dispute"
	TransitionVerifyDriver   Transition = "verify_driver"
	TransitionRejectDriver   Transition = "reject_driver"
)

// ReconciliationJob is the durable record that guarantees at-most-one net
// ledger effect per logical event. The idempotency key is ride_id for
// escrow transitions and driver_id for verification transitions.
//
// The job must be persisted before the ledger submission so that a crash
// between submit and confirm is recoverable by reading ledger state, never
// by resubmitting blindly.
type ReconciliationJob struct {
	ID             uuid.UUID       `db:"id"`
	IdempotencyKey string          `db:"idempotency_key"`
	Transition     Transition      `db:"transition"`
	Payload        json.RawMessage `db:"payload"` // transition-specific arguments
	State          JobState        `db:"state"`
	AttemptCount   int             `db:"attempt_count"`
	LastError      string          `db:"last_error"`
	EscrowID       *int64          `db:"escrow_id"` // set once known
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	ConfirmedAt    *time.Time      `db:"confirmed_at"`
}

// InFlight reports whether the job still owns its idempotency key: a new
// event for the same key must queue behind it rather than submit.
func (j *ReconciliationJob) InFlight() bool {
	return j.State == JobPending || j.State == JobSubmitted
}
