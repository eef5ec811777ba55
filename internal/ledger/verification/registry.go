// Package verification implements the ledger-side driver identity
// registry: an owner-governed verifier allow-list and per-driver records
// with expiry and reputation. Expiry is derived from expires_at at read
// time; the stored status stays Verified until a verifier acts.
package verification

import (
	"fmt"
	"sync"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
)

// Store is the registry's keyed storage.
type Store interface {
	Get(address model.Party) (*model.VerificationRecord, bool)
	Put(rec *model.VerificationRecord)
	AddressByDriverID(driverID string) (model.Party, bool)
	BindDriverID(driverID string, address model.Party)
	GetVerifier(address model.Party) (*model.VerifierRecord, bool)
	PutVerifier(rec *model.VerifierRecord)
	Verifiers() []model.VerifierRecord
}

// EventSink receives registry events for the ledger's append-only log.
type EventSink func(name, key string, data any)

// Registry is the verification state machine.
type Registry struct {
	mu       sync.Mutex
	store    Store
	owner    model.Party
	validity time.Duration
	emit     EventSink
	now      func() time.Time
}

func New(store Store, owner model.Party, emit EventSink, now func() time.Time) (*Registry, error) {
	if owner == model.ZeroParty {
		return nil, fmt.Errorf("owner account is required")
	}
	if emit == nil {
		emit = func(string, string, any) {}
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:    store,
		owner:    owner,
		validity: model.ValidityPeriod,
		emit:     emit,
		now:      now,
	}, nil
}

// AddVerifier puts address on the allow-list. Owner-only; there is no
// self-registration.
func (r *Registry) AddVerifier(caller, address model.Party, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ledger.ErrUnauthorized
	}
	if address == model.ZeroParty {
		return ledger.ErrInvalidParties
	}
	r.store.PutVerifier(&model.VerifierRecord{
		Address:      address,
		Name:         name,
		AddedAt:      r.now(),
		IsAuthorized: true,
	})
	r.emit("verifier.added", string(address), map[string]any{"name": name})
	return nil
}

// RemoveVerifier revokes authorization. Removing an unknown or already
// revoked verifier succeeds as a no-op so retries stay simple.
func (r *Registry) RemoveVerifier(caller, address model.Party) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ledger.ErrUnauthorized
	}
	rec, ok := r.store.GetVerifier(address)
	if !ok || !rec.IsAuthorized {
		return nil
	}
	rec.IsAuthorized = false
	r.store.PutVerifier(rec)
	r.emit("verifier.removed", string(address), nil)
	return nil
}

// VerifyDriver records a successful identity verification. The driver_id
// binding is permanent: once bound to an address it may never point at a
// different one. First verification seeds the reputation score; a
// re-verify of an existing driver keeps the score it has.
func (r *Registry) VerifyDriver(verifier, driverAddress model.Party, driverID, documentHash, offLedgerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireVerifier(verifier); err != nil {
		return err
	}
	if err := r.checkBinding(driverAddress, driverID); err != nil {
		return err
	}

	now := r.now()
	rec, ok := r.store.Get(driverAddress)
	if !ok {
		rec = &model.VerificationRecord{
			DriverAddress:   driverAddress,
			DriverID:        driverID,
			ReputationScore: model.InitialReputationScore,
			CreatedAt:       now,
		}
		r.store.BindDriverID(driverID, driverAddress)
	}
	rec.DocumentHash = documentHash
	rec.OffLedgerReference = offLedgerRef
	rec.Status = model.VerificationVerified
	rec.VerifiedAt = now
	rec.ExpiresAt = now.Add(r.validity)
	rec.Verifier = verifier
	rec.UpdatedAt = now
	r.store.Put(rec)

	r.emit("driver.verified", driverID, map[string]any{
		"address":    driverAddress,
		"expires_at": rec.ExpiresAt,
	})
	return nil
}

// RejectDriver records a failed verification.
func (r *Registry) RejectDriver(verifier, driverAddress model.Party, driverID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireVerifier(verifier); err != nil {
		return err
	}
	if err := r.checkBinding(driverAddress, driverID); err != nil {
		return err
	}

	now := r.now()
	rec, ok := r.store.Get(driverAddress)
	if !ok {
		rec = &model.VerificationRecord{
			DriverAddress: driverAddress,
			DriverID:      driverID,
			CreatedAt:     now,
		}
		r.store.BindDriverID(driverID, driverAddress)
	}
	rec.Status = model.VerificationRejected
	rec.Verifier = verifier
	rec.UpdatedAt = now
	r.store.Put(rec)

	r.emit("driver.rejected", driverID, map[string]any{"address": driverAddress, "reason": reason})
	return nil
}

// SuspendDriver takes a currently Verified driver out of service.
func (r *Registry) SuspendDriver(verifier, driverAddress model.Party, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireVerifier(verifier); err != nil {
		return err
	}
	rec, ok := r.store.Get(driverAddress)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.VerificationVerified {
		return ledger.ErrNotVerified
	}
	rec.Status = model.VerificationSuspended
	rec.Verifier = verifier
	rec.UpdatedAt = r.now()
	r.store.Put(rec)

	r.emit("driver.suspended", rec.DriverID, map[string]any{"address": driverAddress, "reason": reason})
	return nil
}

// UpdateReputationScore sets a new score in [0, 1000] and emits the old
// and new values so every change is auditable.
func (r *Registry) UpdateReputationScore(verifier, driverAddress model.Party, newScore int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireVerifier(verifier); err != nil {
		return err
	}
	if newScore < 0 || newScore > model.MaxReputationScore {
		return ledger.ErrScoreOutOfRange
	}
	rec, ok := r.store.Get(driverAddress)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.VerificationVerified {
		return ledger.ErrNotVerified
	}
	old := rec.ReputationScore
	rec.ReputationScore = newScore
	rec.UpdatedAt = r.now()
	r.store.Put(rec)

	r.emit("driver.reputation_updated", rec.DriverID, map[string]any{
		"old_score": old,
		"new_score": newScore,
	})
	return nil
}

// RenewVerification extends expires_at for a stored-Verified driver. A
// driver past expiry but not yet re-flagged still counts as Verified here.
func (r *Registry) RenewVerification(verifier, driverAddress model.Party) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireVerifier(verifier); err != nil {
		return err
	}
	rec, ok := r.store.Get(driverAddress)
	if !ok {
		return ledger.ErrNotFound
	}
	if rec.Status != model.VerificationVerified {
		return ledger.ErrNotVerified
	}
	now := r.now()
	rec.ExpiresAt = now.Add(r.validity)
	rec.Verifier = verifier
	rec.UpdatedAt = now
	r.store.Put(rec)

	r.emit("driver.renewed", rec.DriverID, map[string]any{"expires_at": rec.ExpiresAt})
	return nil
}

// IsVerified is the authorization predicate: stored status Verified and
// not yet expired.
func (r *Registry) IsVerified(driverAddress model.Party) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store.Get(driverAddress)
	if !ok {
		return false
	}
	return rec.VerifiedNow(r.now())
}

// Get returns a copy of the record.
func (r *Registry) Get(driverAddress model.Party) (*model.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store.Get(driverAddress)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *Registry) requireVerifier(caller model.Party) error {
	rec, ok := r.store.GetVerifier(caller)
	if !ok || !rec.IsAuthorized {
		return ledger.ErrUnauthorized
	}
	return nil
}

// checkBinding enforces the 1:1 driver_id ↔ address mapping in both
// directions.
func (r *Registry) checkBinding(driverAddress model.Party, driverID string) error {
	if driverAddress == model.ZeroParty || driverID == "" {
		return ledger.ErrInvalidParties
	}
	if bound, ok := r.store.AddressByDriverID(driverID); ok && bound != driverAddress {
		return ledger.ErrDriverIDTaken
	}
	if rec, ok := r.store.Get(driverAddress); ok && rec.DriverID != driverID {
		return ledger.ErrDriverIDTaken
	}
	return nil
}
