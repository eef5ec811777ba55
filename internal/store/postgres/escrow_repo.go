package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veloride/settlement-core/internal/domain/model"
)

type EscrowRepo struct {
	db *DB
}

func NewEscrowRepo(db *DB) *EscrowRepo {
	return &EscrowRepo{db: db}
}

func (r *EscrowRepo) UpsertTx(ctx context.Context, tx *sql.Tx, rec *model.EscrowRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO escrows (escrow_id, ride_id, driver_party, passenger_party, amount, status,
			driver_share, platform_fee, passenger_share, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (escrow_id) DO UPDATE SET
			status = EXCLUDED.status,
			driver_share = EXCLUDED.driver_share,
			platform_fee = EXCLUDED.platform_fee,
			passenger_share = EXCLUDED.passenger_share,
			updated_at = now()
	`, rec.EscrowID, rec.RideID, rec.DriverParty, rec.PassengerParty, rec.Amount, rec.Status,
		rec.DriverShare, rec.PlatformFee, rec.PassengerShare, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert escrow: %w", err)
	}
	return nil
}

func (r *EscrowRepo) GetByRideID(ctx context.Context, rideID string) (*model.EscrowRecord, error) {
	return r.get(ctx, "ride_id = $1", rideID)
}

func (r *EscrowRepo) GetByEscrowID(ctx context.Context, escrowID int64) (*model.EscrowRecord, error) {
	return r.get(ctx, "escrow_id = $1", escrowID)
}

func (r *EscrowRepo) get(ctx context.Context, where string, arg any) (*model.EscrowRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var rec model.EscrowRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT escrow_id, ride_id, driver_party, passenger_party, amount, status,
			driver_share, platform_fee, passenger_share, created_at, updated_at
		FROM escrows
		WHERE `+where, arg).Scan(
		&rec.EscrowID, &rec.RideID, &rec.DriverParty, &rec.PassengerParty, &rec.Amount, &rec.Status,
		&rec.DriverShare, &rec.PlatformFee, &rec.PassengerShare, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	return &rec, nil
}

func (r *EscrowRepo) List(ctx context.Context, status model.EscrowStatus, limit, offset int) ([]model.EscrowRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT escrow_id, ride_id, driver_party, passenger_party, amount, status,
			driver_share, platform_fee, passenger_share, created_at, updated_at
		FROM escrows
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var out []model.EscrowRecord
	for rows.Next() {
		var rec model.EscrowRecord
		if err := rows.Scan(
			&rec.EscrowID, &rec.RideID, &rec.DriverParty, &rec.PassengerParty, &rec.Amount, &rec.Status,
			&rec.DriverShare, &rec.PlatformFee, &rec.PassengerShare, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan escrow: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
