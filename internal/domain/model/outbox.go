package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one outbound notification written in the same database
// transaction as the mirror update that caused it. A drainer publishes
// rows to the transport and marks them; delivery is at-least-once, so
// consumers deduplicate on (kind, key).
type OutboxEvent struct {
	ID          uuid.UUID       `db:"id"`
	Kind        string          `db:"kind"` // escrow_settled, escrow_failed, driver_verification_changed
	Key         string          `db:"key"`  // ride_id or driver_id
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
	PublishedAt *time.Time      `db:"published_at"`
}

// Outbound event kinds.
const (
	KindEscrowSettled             = "escrow_settled"
	KindEscrowFailed              = "escrow_failed"
	KindDriverVerificationChanged = "driver_verification_changed"
)
