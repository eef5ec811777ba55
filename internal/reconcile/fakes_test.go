package reconcile

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/alert"
	"github.com/veloride/settlement-core/internal/domain/model"
)

// fakeJobs is an in-memory JobRepository mirroring the semantics of the
// postgres implementation, including the one-in-flight-job-per-key rule.
type fakeJobs struct {
	mu   sync.Mutex
	jobs []*model.ReconciliationJob
}

func (f *fakeJobs) Create(_ context.Context, job *model.ReconciliationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs = append(f.jobs, &cp)
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*model.ReconciliationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) GetInFlightByKey(_ context.Context, key string) (*model.ReconciliationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.IdempotencyKey == key && j.InFlight() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) GetLatestByKeyTransition(_ context.Context, key string, transition model.Transition) (*model.ReconciliationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.jobs) - 1; i >= 0; i-- {
		j := f.jobs[i]
		if j.IdempotencyKey == key && j.Transition == transition {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) ClaimPending(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id && j.State == model.JobPending {
			j.State = model.JobSubmitted
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobs) MarkConfirmedTx(_ context.Context, _ *sql.Tx, id uuid.UUID, escrowID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, j := range f.jobs {
		if j.ID == id {
			j.State = model.JobConfirmed
			j.ConfirmedAt = &now
			if escrowID != nil {
				j.EscrowID = escrowID
			}
		}
	}
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			j.State = model.JobFailed
			j.LastError = lastError
		}
	}
	return nil
}

func (f *fakeJobs) CancelPending(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id && j.State == model.JobPending {
			j.State = model.JobCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobs) IncrementAttempt(_ context.Context, id uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			j.AttemptCount++
			j.LastError = lastError
		}
	}
	return nil
}

func (f *fakeJobs) Requeue(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id && j.State == model.JobSubmitted {
			j.State = model.JobPending
		}
	}
	return nil
}

func (f *fakeJobs) ListByState(_ context.Context, state model.JobState, limit int) ([]model.ReconciliationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ReconciliationJob
	for _, j := range f.jobs {
		if j.State == state {
			out = append(out, *j)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeJobs) PurgeConfirmedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*model.ReconciliationJob
	var purged int64
	for _, j := range f.jobs {
		if j.State == model.JobConfirmed && j.ConfirmedAt != nil && j.ConfirmedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, j)
	}
	f.jobs = kept
	return purged, nil
}

func (f *fakeJobs) byID(id uuid.UUID) *model.ReconciliationJob {
	j, _ := f.GetByID(context.Background(), id)
	return j
}

func (f *fakeJobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeEscrows and fakeVerifications are in-memory mirror repositories
// recording every upsert so tests can assert on what the confirm path
// wrote.
type fakeEscrows struct {
	mu   sync.Mutex
	recs map[string]model.EscrowRecord // keyed by ride id
}

func (f *fakeEscrows) UpsertTx(_ context.Context, _ *sql.Tx, rec *model.EscrowRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recs == nil {
		f.recs = make(map[string]model.EscrowRecord)
	}
	f.recs[rec.RideID] = *rec
	return nil
}

func (f *fakeEscrows) GetByRideID(_ context.Context, rideID string) (*model.EscrowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recs[rideID]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeEscrows) GetByEscrowID(_ context.Context, escrowID int64) (*model.EscrowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.EscrowID == escrowID {
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeEscrows) List(context.Context, model.EscrowStatus, int, int) ([]model.EscrowRecord, error) {
	return nil, nil
}

func (f *fakeEscrows) byRide(rideID string) *model.EscrowRecord {
	rec, _ := f.GetByRideID(context.Background(), rideID)
	return rec
}

type fakeVerifications struct {
	mu   sync.Mutex
	recs map[model.Party]model.VerificationRecord
}

func (f *fakeVerifications) UpsertTx(_ context.Context, _ *sql.Tx, rec *model.VerificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recs == nil {
		f.recs = make(map[model.Party]model.VerificationRecord)
	}
	f.recs[rec.DriverAddress] = *rec
	return nil
}

func (f *fakeVerifications) GetByDriverID(_ context.Context, driverID string) (*model.VerificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.DriverID == driverID {
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeVerifications) GetByAddress(_ context.Context, addr model.Party) (*model.VerificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recs[addr]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeVerifications) List(context.Context, model.VerificationStatus, int, int) ([]model.VerificationRecord, error) {
	return nil, nil
}

func (f *fakeVerifications) byAddress(addr model.Party) *model.VerificationRecord {
	rec, _ := f.GetByAddress(context.Background(), addr)
	return rec
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []model.OutboxEvent
}

func (f *fakeOutbox) AppendTx(_ context.Context, _ *sql.Tx, ev *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeOutbox) ListUnpublished(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(f.events))
	for _, ev := range f.events {
		if ev.PublishedAt == nil {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error { return nil }

func (f *fakeOutbox) CountUnpublished(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events), nil
}

// recordingAlerter captures alerts for assertions.
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (a *recordingAlerter) Send(_ context.Context, al alert.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
	return nil
}

func (a *recordingAlerter) sent() []alert.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]alert.Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

// stubDriver backs a *sql.DB whose transactions commit and roll back as
// no-ops. The in-memory repositories ignore the *sql.Tx they receive, so
// the confirm path runs end to end without a database.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("reconcilestub", stubDriver{})
}

func stubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("reconcilestub", "")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
