package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// EscrowRepository provides access to the local escrow mirror.
type EscrowRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, rec *model.EscrowRecord) error
	GetByRideID(ctx context.Context, rideID string) (*model.EscrowRecord, error)
	GetByEscrowID(ctx context.Context, escrowID int64) (*model.EscrowRecord, error)
	List(ctx context.Context, status model.EscrowStatus, limit, offset int) ([]model.EscrowRecord, error)
}

// VerificationRepository provides access to the local verification mirror.
type VerificationRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, rec *model.VerificationRecord) error
	GetByDriverID(ctx context.Context, driverID string) (*model.VerificationRecord, error)
	GetByAddress(ctx context.Context, address model.Party) (*model.VerificationRecord, error)
	List(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.VerificationRecord, error)
}

// JobRepository provides access to the reconciliation job table. A partial
// unique index guarantees at most one in-flight job per idempotency key;
// ClaimPending is the compare-and-set that keeps two workers from
// double-submitting the same job.
type JobRepository interface {
	Create(ctx context.Context, job *model.ReconciliationJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReconciliationJob, error)
	// GetInFlightByKey returns the pending or submitted job holding the
	// key, or nil.
	GetInFlightByKey(ctx context.Context, key string) (*model.ReconciliationJob, error)
	// GetLatestByKeyTransition returns the newest job for (key, transition)
	// in any state, or nil. Used for the duplicate-submission guard.
	GetLatestByKeyTransition(ctx context.Context, key string, transition model.Transition) (*model.ReconciliationJob, error)
	// ClaimPending atomically moves the job from pending to submitted.
	// Returns false if another worker got there first or the job was
	// cancelled.
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)
	MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, escrowID *int64) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	// CancelPending atomically cancels a job that has not been submitted.
	// Returns false if the job already left pending.
	CancelPending(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementAttempt(ctx context.Context, id uuid.UUID, lastError string) error
	// Requeue moves a submitted job back to pending for a retry after
	// reconciliation-by-read showed the transition did not land.
	Requeue(ctx context.Context, id uuid.UUID) error
	ListByState(ctx context.Context, state model.JobState, limit int) ([]model.ReconciliationJob, error)
	PurgeConfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRepository provides access to the outbound event outbox.
type OutboxRepository interface {
	AppendTx(ctx context.Context, tx *sql.Tx, ev *model.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
	CountUnpublished(ctx context.Context) (int, error)
}
