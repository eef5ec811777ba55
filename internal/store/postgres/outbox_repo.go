package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/veloride/settlement-core/internal/domain/model"
)

type OutboxRepo struct {
	db *DB
}

func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) AppendTx(ctx context.Context, tx *sql.Tx, ev *model.OutboxEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, kind, key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.Kind, ev.Key, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepo) ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, key, payload, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished: %w", err)
	}
	defer rows.Close()

	var out []model.OutboxEvent
	for rows.Next() {
		var ev model.OutboxEvent
		var publishedAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Key, &ev.Payload, &ev.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if publishedAt.Valid {
			ev.PublishedAt = &publishedAt.Time
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, pq.Array(strIDs))
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r *OutboxRepo) CountUnpublished(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unpublished: %w", err)
	}
	return n, nil
}
