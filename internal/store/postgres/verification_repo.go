package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
)

type VerificationRepo struct {
	db *DB
}

func NewVerificationRepo(db *DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

func (r *VerificationRepo) UpsertTx(ctx context.Context, tx *sql.Tx, rec *model.VerificationRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO driver_verifications (driver_address, driver_id, document_hash, off_ledger_reference,
			status, verified_at, expires_at, verifier, reputation_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (driver_address) DO UPDATE SET
			document_hash = EXCLUDED.document_hash,
			off_ledger_reference = EXCLUDED.off_ledger_reference,
			status = EXCLUDED.status,
			verified_at = EXCLUDED.verified_at,
			expires_at = EXCLUDED.expires_at,
			verifier = EXCLUDED.verifier,
			reputation_score = EXCLUDED.reputation_score,
			updated_at = now()
	`, rec.DriverAddress, rec.DriverID, rec.DocumentHash, rec.OffLedgerReference,
		rec.Status, nullTime(rec.VerifiedAt), nullTime(rec.ExpiresAt), rec.Verifier,
		rec.ReputationScore, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert verification: %w", err)
	}
	return nil
}

func (r *VerificationRepo) GetByDriverID(ctx context.Context, driverID string) (*model.VerificationRecord, error) {
	return r.get(ctx, "driver_id = $1", driverID)
}

func (r *VerificationRepo) GetByAddress(ctx context.Context, address model.Party) (*model.VerificationRecord, error) {
	return r.get(ctx, "driver_address = $1", string(address))
}

func (r *VerificationRepo) get(ctx context.Context, where string, arg any) (*model.VerificationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var rec model.VerificationRecord
	var verifiedAt, expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT driver_address, driver_id, document_hash, off_ledger_reference,
			status, verified_at, expires_at, verifier, reputation_score, created_at, updated_at
		FROM driver_verifications
		WHERE `+where, arg).Scan(
		&rec.DriverAddress, &rec.DriverID, &rec.DocumentHash, &rec.OffLedgerReference,
		&rec.Status, &verifiedAt, &expiresAt, &rec.Verifier, &rec.ReputationScore,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if verifiedAt.Valid {
		rec.VerifiedAt = verifiedAt.Time
	}
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return &rec, nil
}

func (r *VerificationRepo) List(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.VerificationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT driver_address, driver_id, document_hash, off_ledger_reference,
			status, verified_at, expires_at, verifier, reputation_score, created_at, updated_at
		FROM driver_verifications
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []model.VerificationRecord
	for rows.Next() {
		var rec model.VerificationRecord
		var verifiedAt, expiresAt sql.NullTime
		if err := rows.Scan(
			&rec.DriverAddress, &rec.DriverID, &rec.DocumentHash, &rec.OffLedgerReference,
			&rec.Status, &verifiedAt, &expiresAt, &rec.Verifier, &rec.ReputationScore,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		if verifiedAt.Valid {
			rec.VerifiedAt = verifiedAt.Time
		}
		if expiresAt.Valid {
			rec.ExpiresAt = expiresAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
