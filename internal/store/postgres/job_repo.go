package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/domain/model"
)

const jobColumns = `id, idempotency_key, transition, payload, state, attempt_count,
	last_error, escrow_id, created_at, updated_at, confirmed_at`

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, job *model.ReconciliationJob) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_jobs (id, idempotency_key, transition, payload, state, attempt_count, last_error, escrow_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, job.ID, job.IdempotencyKey, job.Transition, job.Payload, job.State,
		job.AttemptCount, job.LastError, job.EscrowID, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ReconciliationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM reconciliation_jobs WHERE id = $1", id)
	return scanJob(row)
}

func (r *JobRepo) GetInFlightByKey(ctx context.Context, key string) (*model.ReconciliationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM reconciliation_jobs
		WHERE idempotency_key = $1 AND state IN ('pending', 'submitted')
	`, key)
	return scanJob(row)
}

func (r *JobRepo) GetLatestByKeyTransition(ctx context.Context, key string, transition model.Transition) (*model.ReconciliationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM reconciliation_jobs
		WHERE idempotency_key = $1 AND transition = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, key, transition)
	return scanJob(row)
}

func (r *JobRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET state = 'submitted', updated_at = now()
		WHERE id = $1 AND state = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job rows: %w", err)
	}
	return n == 1, nil
}

func (r *JobRepo) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, escrowID *int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET state = 'confirmed', escrow_id = COALESCE($2, escrow_id),
			confirmed_at = now(), updated_at = now()
		WHERE id = $1
	`, id, escrowID)
	if err != nil {
		return fmt.Errorf("confirm job: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET state = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (r *JobRepo) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET state = 'cancelled', updated_at = now()
		WHERE id = $1 AND state = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel job rows: %w", err)
	}
	return n == 1, nil
}

func (r *JobRepo) IncrementAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET attempt_count = attempt_count + 1, last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("increment attempt: %w", err)
	}
	return nil
}

func (r *JobRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_jobs
		SET state = 'pending', updated_at = now()
		WHERE id = $1 AND state = 'submitted'
	`, id)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

func (r *JobRepo) ListByState(ctx context.Context, state model.JobState, limit int) ([]model.ReconciliationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM reconciliation_jobs
		WHERE state = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, state, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []model.ReconciliationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (r *JobRepo) PurgeConfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM reconciliation_jobs
		WHERE state = 'confirmed' AND confirmed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ReconciliationJob, error) {
	var job model.ReconciliationJob
	var escrowID sql.NullInt64
	var confirmedAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.IdempotencyKey, &job.Transition, &job.Payload, &job.State,
		&job.AttemptCount, &job.LastError, &escrowID, &job.CreatedAt, &job.UpdatedAt, &confirmedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if escrowID.Valid {
		job.EscrowID = &escrowID.Int64
	}
	if confirmedAt.Valid {
		job.ConfirmedAt = &confirmedAt.Time
	}
	return &job, nil
}
