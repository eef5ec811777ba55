// Package reconcile owns the bridge between inbound ride events and the
// ledger. Every event becomes a durable job before anything is submitted,
// so the net effect per logical event is at most one even across crashes.
// Jobs for the same key are processed strictly in order; an indeterminate
// submission is never blindly retried — ground truth is read first.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/veloride/settlement-core/internal/alert"
	"github.com/veloride/settlement-core/internal/domain/event"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/gateway"
	"github.com/veloride/settlement-core/internal/metrics"
	"github.com/veloride/settlement-core/internal/privacy"
	"github.com/veloride/settlement-core/internal/store"
)

var (
	// ErrKeyBusy means another transition for the same ride or driver is
	// still in flight. The caller retries after it settles; ordering per
	// key is strict.
	ErrKeyBusy = errors.New("key has an in-flight job")

	ErrUnknownTransition = errors.New("unknown transition")
)

// Config tunes the coordinator.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int           // submission attempts before the job fails and pages
	BaseBackoff time.Duration // doubled per attempt
	MaxBackoff  time.Duration
	Operator    model.Party // platform account used for operator-authorized transitions
}

// verificationPayload is what a driver-documents event becomes once the
// raw blob has been hashed and encrypted. The blob itself never reaches
// the job table or the ledger.
type verificationPayload struct {
	DriverID      string      `json:"driver_id"`
	DriverAddress model.Party `json:"driver_address"`
	DocumentHash  string      `json:"document_hash"`
	OffLedgerRef  string      `json:"off_ledger_ref"`
	Approve       bool        `json:"approve"`
	Reason        string      `json:"reason,omitempty"`
	Verifier      model.Party `json:"verifier"`
}

type Coordinator struct {
	cfg           Config
	db            store.TxBeginner
	escrows       store.EscrowRepository
	verifications store.VerificationRepository
	jobs          store.JobRepository
	outbox        store.OutboxRepository
	gw            *gateway.Gateway
	codec         *privacy.Codec
	alerter       alert.Alerter
	logger        *slog.Logger

	queues []chan uuid.UUID
}

func New(
	cfg Config,
	db store.TxBeginner,
	escrows store.EscrowRepository,
	verifications store.VerificationRepository,
	jobs store.JobRepository,
	outbox store.OutboxRepository,
	gw *gateway.Gateway,
	codec *privacy.Codec,
	alerter alert.Alerter,
	logger *slog.Logger,
) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Minute
	}
	c := &Coordinator{
		cfg:           cfg,
		db:            db,
		escrows:       escrows,
		verifications: verifications,
		jobs:          jobs,
		outbox:        outbox,
		gw:            gw,
		codec:         codec,
		alerter:       alerter,
		logger:        logger.With("component", "coordinator"),
	}
	c.queues = make([]chan uuid.UUID, cfg.Workers)
	for i := range c.queues {
		c.queues[i] = make(chan uuid.UUID, cfg.QueueSize)
	}
	return c
}

// Run blocks processing jobs until ctx is cancelled. Jobs with the same
// idempotency key always land on the same worker, which gives per-key
// FIFO without any cross-worker locking.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started",
		"workers", c.cfg.Workers,
		"max_attempts", c.cfg.MaxAttempts,
	)
	done := make(chan struct{})
	for i, q := range c.queues {
		go c.worker(ctx, i, q, done)
	}
	<-ctx.Done()
	for range c.queues {
		<-done
	}
	c.logger.Info("coordinator stopped")
	return ctx.Err()
}

func (c *Coordinator) worker(ctx context.Context, id int, queue chan uuid.UUID, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	logger := c.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-queue:
			metrics.KeyQueueDepth.Dec()
			if err := c.processJob(ctx, jobID); err != nil && ctx.Err() == nil {
				logger.Error("job processing failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// queueFor maps a key to the worker queue owning it.
func (c *Coordinator) queueFor(key string) chan uuid.UUID {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.queues[h.Sum32()%uint32(len(c.queues))]
}

// enqueue routes a job to the worker owning its key.
func (c *Coordinator) enqueue(key string, jobID uuid.UUID) {
	metrics.KeyQueueDepth.Inc()
	c.queueFor(key) <- jobID
}

// createJob persists a job for (key, transition) and hands it to a
// worker. Duplicate events are suppressed: if the newest job for the same
// key and transition is in flight or confirmed, the event already had (or
// will have) its effect.
func (c *Coordinator) createJob(ctx context.Context, key string, transition model.Transition, payload any) (uuid.UUID, error) {
	latest, err := c.jobs.GetLatestByKeyTransition(ctx, key, transition)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup latest job: %w", err)
	}
	if latest != nil && (latest.InFlight() || latest.State == model.JobConfirmed) {
		metrics.JobsDuplicateSuppressed.WithLabelValues(string(transition)).Inc()
		c.logger.Info("duplicate event suppressed",
			"key", key, "transition", transition, "existing_job", latest.ID, "state", latest.State)
		return latest.ID, nil
	}

	inflight, err := c.jobs.GetInFlightByKey(ctx, key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup in-flight job: %w", err)
	}
	if inflight != nil {
		return uuid.Nil, fmt.Errorf("%w: %s holds %s", ErrKeyBusy, inflight.Transition, key)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &model.ReconciliationJob{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Transition:     transition,
		Payload:        raw,
		State:          model.JobPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		// Lost the race for the partial unique index on in-flight keys.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrKeyBusy, key)
		}
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	metrics.JobsCreatedTotal.WithLabelValues(string(transition)).Inc()
	c.logger.Info("job created", "job_id", job.ID, "key", key, "transition", transition)
	c.enqueue(key, job.ID)
	return job.ID, nil
}

// OnRideAccepted escrows the ride payment.
func (c *Coordinator) OnRideAccepted(ctx context.Context, ev event.RideAccepted) (uuid.UUID, error) {
	if ev.RideID == "" {
		return uuid.Nil, fmt.Errorf("ride_id is required")
	}
	if ev.Amount <= 0 {
		return uuid.Nil, fmt.Errorf("amount must be positive, got %d", ev.Amount)
	}
	if ev.DriverParty == model.ZeroParty || ev.PassengerParty == model.ZeroParty || ev.DriverParty == ev.PassengerParty {
		return uuid.Nil, fmt.Errorf("driver and passenger must be distinct non-zero parties")
	}
	return c.createJob(ctx, ev.RideID, model.TransitionCreateEscrow, ev)
}

// OnRideCompleted releases the escrow to the driver, minus the platform fee.
func (c *Coordinator) OnRideCompleted(ctx context.Context, ev event.RideCompleted) (uuid.UUID, error) {
	if ev.RideID == "" {
		return uuid.Nil, fmt.Errorf("ride_id is required")
	}
	return c.createJob(ctx, ev.RideID, model.TransitionRelease, ev)
}

// OnRideCancelled splits the escrow: the caller-decided driver fee to the
// driver, the remainder back to the passenger. A zero fee is a full refund.
func (c *Coordinator) OnRideCancelled(ctx context.Context, ev event.RideCancelled) (uuid.UUID, error) {
	if ev.RideID == "" {
		return uuid.Nil, fmt.Errorf("ride_id is required")
	}
	if ev.DriverFee < 0 {
		return uuid.Nil, fmt.Errorf("driver_fee must not be negative, got %d", ev.DriverFee)
	}
	if ev.DriverFee == 0 {
		return c.createJob(ctx, ev.RideID, model.TransitionRefund, ev)
	}
	return c.createJob(ctx, ev.RideID, model.TransitionCancelSplit, ev)
}

// OnDisputeRaised freezes the escrow.
func (c *Coordinator) OnDisputeRaised(ctx context.Context, ev event.DisputeRaised) (uuid.UUID, error) {
	if ev.RideID == "" || ev.RaisedBy == "" {
		return uuid.Nil, fmt.Errorf("ride_id and raised_by are required")
	}
	return c.createJob(ctx, ev.RideID, model.TransitionDispute, ev)
}

// OnDisputeResolved settles a disputed escrow.
func (c *Coordinator) OnDisputeResolved(ctx context.Context, ev event.DisputeResolved) (uuid.UUID, error) {
	if ev.RideID == "" {
		return uuid.Nil, fmt.Errorf("ride_id is required")
	}
	return c.createJob(ctx, ev.RideID, model.TransitionResolveDispute, ev)
}

// OnDriverDocumentsSubmitted records a verification decision. The raw
// document blob is reduced to a content hash plus an encrypted off-ledger
// reference before anything durable sees it.
func (c *Coordinator) OnDriverDocumentsSubmitted(ctx context.Context, ev event.DriverDocumentsSubmitted) (uuid.UUID, error) {
	if ev.DriverID == "" || ev.DriverAddress == model.ZeroParty {
		return uuid.Nil, fmt.Errorf("driver_id and driver_address are required")
	}
	if ev.Verifier == model.ZeroParty {
		return uuid.Nil, fmt.Errorf("verifier is required")
	}
	if !ev.Approve && ev.Reason == "" {
		return uuid.Nil, fmt.Errorf("rejection requires a reason")
	}

	payload := verificationPayload{
		DriverID:      ev.DriverID,
		DriverAddress: ev.DriverAddress,
		Approve:       ev.Approve,
		Reason:        ev.Reason,
		Verifier:      ev.Verifier,
	}
	if ev.Approve {
		payload.DocumentHash = privacy.HashDocument(ev.DocumentBlob)
		sealed, err := c.codec.Encrypt(ev.DocumentBlob)
		if err != nil {
			return uuid.Nil, fmt.Errorf("seal document blob: %w", err)
		}
		payload.OffLedgerRef = fmt.Sprintf("%x", sealed)
	}

	transition := model.TransitionVerifyDriver
	if !ev.Approve {
		transition = model.TransitionRejectDriver
	}
	return c.createJob(ctx, ev.DriverID, transition, payload)
}

// CancelJob withdraws a job that has not yet been submitted. Once a job is
// submitted the ledger may already hold its effect, so cancellation is
// refused and the job runs to a terminal state.
func (c *Coordinator) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	return c.jobs.CancelPending(ctx, id)
}

// RetryJob clones a terminally failed job into a fresh pending job with a
// zeroed attempt budget. Used by operators after fixing whatever made the
// original fail.
func (c *Coordinator) RetryJob(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	job, err := c.jobs.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return uuid.Nil, fmt.Errorf("job %s not found", id)
	}
	if job.State != model.JobFailed {
		return uuid.Nil, fmt.Errorf("job %s is %s, only failed jobs can be retried", id, job.State)
	}

	clone := &model.ReconciliationJob{
		ID:             uuid.New(),
		IdempotencyKey: job.IdempotencyKey,
		Transition:     job.Transition,
		Payload:        job.Payload,
		State:          model.JobPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.jobs.Create(ctx, clone); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrKeyBusy, job.IdempotencyKey)
		}
		return uuid.Nil, fmt.Errorf("create retry job: %w", err)
	}
	metrics.JobsCreatedTotal.WithLabelValues(string(clone.Transition)).Inc()
	c.logger.Info("failed job retried by operator",
		"original_job", job.ID, "job_id", clone.ID, "key", clone.IdempotencyKey, "transition", clone.Transition)
	c.enqueue(clone.IdempotencyKey, clone.ID)
	return clone.ID, nil
}
