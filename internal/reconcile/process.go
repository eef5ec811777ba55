package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/alert"
	"github.com/veloride/settlement-core/internal/domain/event"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/gateway"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/metrics"
)

func (c *Coordinator) processJob(ctx context.Context, id uuid.UUID) error {
	job, err := c.jobs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		c.logger.Warn("queued job no longer exists", "job_id", id)
		return nil
	}

	started := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(string(job.Transition)).Observe(time.Since(started).Seconds())
	}()

	switch job.State {
	case model.JobPending:
		claimed, err := c.jobs.ClaimPending(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		if !claimed {
			// Cancelled, or another worker got it.
			c.logger.Info("job claim lost", "job_id", job.ID, "key", job.IdempotencyKey)
			return nil
		}
		job.State = model.JobSubmitted
		return c.submit(ctx, job)
	case model.JobSubmitted:
		// Recovery path: submitted before a crash, outcome unknown.
		return c.reconcileByRead(ctx, job, fmt.Errorf("recovered in submitted state"))
	default:
		return nil
	}
}

func (c *Coordinator) submit(ctx context.Context, job *model.ReconciliationJob) error {
	fn, err := c.buildSubmit(job)
	if err != nil {
		// Unparseable payload is terminal, never transient.
		return c.fail(ctx, job, "bad_payload", err)
	}

	out := c.gw.Submit(ctx, job.Transition, fn)
	switch out.Status {
	case gateway.OutcomeConfirmed:
		c.logger.Info("transition confirmed",
			"job_id", job.ID, "key", job.IdempotencyKey, "transition", job.Transition,
			"sequence", out.Receipt.Sequence, "tx_hash", out.Receipt.TxHash)
		if err := c.confirm(ctx, job); err != nil {
			// Ledger effect landed but the mirror write failed. Hold the
			// job in submitted so the next pass converges by reading the
			// ledger instead of resubmitting an applied transition.
			return c.holdForReconcile(ctx, job, fmt.Errorf("mirror confirmed transition: %w", err))
		}
		return nil
	case gateway.OutcomeRejected:
		c.logger.Warn("transition rejected by ledger",
			"job_id", job.ID, "key", job.IdempotencyKey, "transition", job.Transition,
			"reason", out.Reason)
		return c.fail(ctx, job, "ledger_revert", out.Reason)
	default:
		return c.reconcileByRead(ctx, job, out.Err)
	}
}

// buildSubmit turns a job into a single ledger call. Escrow ids are
// resolved from ride ids inside the call so the lookup shares the
// submission timeout.
func (c *Coordinator) buildSubmit(job *model.ReconciliationJob) (gateway.SubmitFunc, error) {
	switch job.Transition {
	case model.TransitionCreateEscrow:
		var ev event.RideAccepted
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
			return client.CreateEscrow(ctx, ev.RideID, ev.DriverParty, ev.PassengerParty, ev.Amount)
		}, nil

	case model.TransitionRelease:
		var ev event.RideCompleted
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return c.escrowCall(ev.RideID, func(ctx context.Context, client ledger.Client, escrowID int64) (ledger.Receipt, error) {
			return client.Release(ctx, escrowID, c.cfg.Operator)
		}), nil

	case model.TransitionRefund:
		var ev event.RideCancelled
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return c.escrowCall(ev.RideID, func(ctx context.Context, client ledger.Client, escrowID int64) (ledger.Receipt, error) {
			return client.Refund(ctx, escrowID, c.cfg.Operator)
		}), nil

	case model.TransitionCancelSplit:
		var ev event.RideCancelled
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return c.escrowCall(ev.RideID, func(ctx context.Context, client ledger.Client, escrowID int64) (ledger.Receipt, error) {
			return client.SettleSplit(ctx, escrowID, ev.DriverFee, c.cfg.Operator)
		}), nil

	case model.TransitionDispute:
		var ev event.DisputeRaised
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return c.escrowCall(ev.RideID, func(ctx context.Context, client ledger.Client, escrowID int64) (ledger.Receipt, error) {
			return client.Dispute(ctx, escrowID, model.Party(ev.RaisedBy))
		}), nil

	case model.TransitionResolveDispute:
		var ev event.DisputeResolved
		if err := json.Unmarshal(job.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return c.escrowCall(ev.RideID, func(ctx context.Context, client ledger.Client, escrowID int64) (ledger.Receipt, error) {
			return client.ResolveDispute(ctx, escrowID, ev.FavorDriver, c.cfg.Operator)
		}), nil

	case model.TransitionVerifyDriver:
		var p verificationPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
			return client.VerifyDriver(ctx, p.Verifier, p.DriverAddress, p.DriverID, p.DocumentHash, p.OffLedgerRef)
		}, nil

	case model.TransitionRejectDriver:
		var p verificationPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
			return client.RejectDriver(ctx, p.Verifier, p.DriverAddress, p.DriverID, p.Reason)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTransition, job.Transition)
}

func (c *Coordinator) escrowCall(rideID string, call func(context.Context, ledger.Client, int64) (ledger.Receipt, error)) gateway.SubmitFunc {
	return func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		rec, err := client.GetEscrowByRide(ctx, rideID)
		if err != nil {
			return ledger.Receipt{}, fmt.Errorf("resolve escrow for ride %s: %w", rideID, err)
		}
		if rec == nil {
			return ledger.Receipt{}, fmt.Errorf("resolve escrow for ride %s: %w", rideID, ledger.ErrNotFound)
		}
		return call(ctx, client, rec.EscrowID)
	}
}

// reconcileByRead resolves an indeterminate outcome by reading ledger
// ground truth. If the transition landed, the job confirms off the read;
// if it did not, the submission is retried with backoff until the attempt
// budget runs out.
func (c *Coordinator) reconcileByRead(ctx context.Context, job *model.ReconciliationJob, cause error) error {
	landed, err := c.checkLanded(ctx, job)
	if err != nil {
		// The outcome is still unknown; resubmitting could double the
		// ledger effect, so stay submitted and read again later.
		metrics.ReconcileReadsTotal.WithLabelValues(string(job.Transition), "error").Inc()
		return c.holdForReconcile(ctx, job, fmt.Errorf("reconcile read: %w", err))
	}
	if landed {
		metrics.ReconcileReadsTotal.WithLabelValues(string(job.Transition), "landed").Inc()
		c.logger.Info("indeterminate submission had landed",
			"job_id", job.ID, "key", job.IdempotencyKey, "transition", job.Transition)
		if err := c.confirm(ctx, job); err != nil {
			return c.holdForReconcile(ctx, job, fmt.Errorf("mirror reconciled transition: %w", err))
		}
		return nil
	}
	metrics.ReconcileReadsTotal.WithLabelValues(string(job.Transition), "not_landed").Inc()
	return c.retryLater(ctx, job, cause)
}

// checkLanded reads the record the transition would have produced and
// reports whether the ledger shows the transition's effect.
func (c *Coordinator) checkLanded(ctx context.Context, job *model.ReconciliationJob) (bool, error) {
	switch job.Transition {
	case model.TransitionCreateEscrow, model.TransitionRelease, model.TransitionRefund,
		model.TransitionCancelSplit, model.TransitionDispute, model.TransitionResolveDispute:
		rec, err := c.gw.GetEscrowByRide(ctx, job.IdempotencyKey)
		if gateway.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if rec == nil {
			return false, nil
		}
		switch job.Transition {
		case model.TransitionCreateEscrow:
			return true, nil
		case model.TransitionRelease:
			return rec.Status == model.EscrowReleased, nil
		case model.TransitionRefund:
			return rec.Status == model.EscrowRefunded, nil
		case model.TransitionCancelSplit, model.TransitionResolveDispute:
			return rec.Status.IsTerminal(), nil
		case model.TransitionDispute:
			// Resolution may already have moved it past Disputed.
			return rec.Status == model.EscrowDisputed || rec.Status.IsTerminal(), nil
		}
		return false, nil

	case model.TransitionVerifyDriver, model.TransitionRejectDriver:
		var p verificationPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return false, fmt.Errorf("decode payload: %w", err)
		}
		rec, err := c.gw.GetVerification(ctx, p.DriverAddress)
		if gateway.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if rec == nil {
			return false, nil
		}
		if job.Transition == model.TransitionVerifyDriver {
			return rec.Status == model.VerificationVerified, nil
		}
		return rec.Status == model.VerificationRejected, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownTransition, job.Transition)
}

// confirm mirrors the confirmed ledger state locally and emits the
// outbound event, all in one database transaction with the job's state
// change. Ground truth comes from a fresh ledger read, never from the
// submission arguments.
func (c *Coordinator) confirm(ctx context.Context, job *model.ReconciliationJob) error {
	switch job.Transition {
	case model.TransitionVerifyDriver, model.TransitionRejectDriver:
		return c.confirmVerification(ctx, job)
	default:
		return c.confirmEscrow(ctx, job)
	}
}

func (c *Coordinator) confirmEscrow(ctx context.Context, job *model.ReconciliationJob) error {
	rec, err := c.gw.GetEscrowByRide(ctx, job.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("read confirmed escrow: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("confirmed escrow missing for ride %s", job.IdempotencyKey)
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := c.escrows.UpsertTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := c.jobs.MarkConfirmedTx(ctx, tx, job.ID, &rec.EscrowID); err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		settled := event.EscrowSettled{
			RideID:         rec.RideID,
			Status:         rec.Status,
			DriverShare:    rec.DriverShare,
			PlatformFee:    rec.PlatformFee,
			PassengerShare: rec.PassengerShare,
			SettledAt:      time.Now().UTC(),
		}
		if job.Transition == model.TransitionRelease {
			var ev event.RideCompleted
			if json.Unmarshal(job.Payload, &ev) == nil {
				settled.FinalAmount = ev.FinalAmount
			}
		}
		if err := c.appendOutboxTx(ctx, tx, model.KindEscrowSettled, rec.RideID, settled); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	metrics.JobsConfirmedTotal.WithLabelValues(string(job.Transition)).Inc()
	c.logger.Info("job confirmed",
		"job_id", job.ID, "ride_id", rec.RideID, "transition", job.Transition,
		"escrow_id", rec.EscrowID, "status", rec.Status)
	return nil
}

func (c *Coordinator) confirmVerification(ctx context.Context, job *model.ReconciliationJob) error {
	var p verificationPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	rec, err := c.gw.GetVerification(ctx, p.DriverAddress)
	if err != nil {
		return fmt.Errorf("read confirmed verification: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("confirmed verification missing for driver %s", p.DriverID)
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := c.verifications.UpsertTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := c.jobs.MarkConfirmedTx(ctx, tx, job.ID, nil); err != nil {
		return err
	}
	changed := event.DriverVerificationChanged{
		DriverID:  rec.DriverID,
		Status:    rec.Status,
		ExpiresAt: rec.ExpiresAt,
		ChangedAt: time.Now().UTC(),
	}
	if err := c.appendOutboxTx(ctx, tx, model.KindDriverVerificationChanged, rec.DriverID, changed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	metrics.JobsConfirmedTotal.WithLabelValues(string(job.Transition)).Inc()
	c.logger.Info("job confirmed",
		"job_id", job.ID, "driver_id", rec.DriverID, "transition", job.Transition,
		"status", rec.Status)
	return nil
}

func (c *Coordinator) appendOutboxTx(ctx context.Context, tx *sql.Tx, kind, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	return c.outbox.AppendTx(ctx, tx, &model.OutboxEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Key:       key,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
}

// retryLater books the failed attempt and requeues the job to pending so
// the next pass resubmits, or, with the budget spent, fails it and pages
// an operator. Funds stay wherever the ledger last put them. Only for
// submissions the ledger verifiably never saw.
func (c *Coordinator) retryLater(ctx context.Context, job *model.ReconciliationJob, cause error) error {
	return c.scheduleRetry(ctx, job, cause, true)
}

// holdForReconcile schedules a retry that leaves the job in submitted:
// the ledger effect landed, or may have landed, and only a reconcile
// read may settle it. Requeueing to pending here would resubmit a
// transition that already took effect.
func (c *Coordinator) holdForReconcile(ctx context.Context, job *model.ReconciliationJob, cause error) error {
	return c.scheduleRetry(ctx, job, cause, false)
}

func (c *Coordinator) scheduleRetry(ctx context.Context, job *model.ReconciliationJob, cause error, resubmit bool) error {
	attempts := job.AttemptCount + 1
	if err := c.jobs.IncrementAttempt(ctx, job.ID, cause.Error()); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if attempts >= c.cfg.MaxAttempts {
		return c.exhaust(ctx, job, cause)
	}
	if resubmit {
		if err := c.jobs.Requeue(ctx, job.ID); err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
	}

	backoff := c.backoff(attempts)
	metrics.JobRetriesTotal.WithLabelValues(string(job.Transition)).Inc()
	c.logger.Warn("job will retry",
		"job_id", job.ID, "key", job.IdempotencyKey, "transition", job.Transition,
		"attempt", attempts, "backoff", backoff.String(), "resubmit", resubmit, "cause", cause)

	c.enqueueAfter(ctx, backoff, job.IdempotencyKey, job.ID)
	return nil
}

// enqueueAfter re-enqueues a job once the backoff elapses. The wait and
// the channel send both give up when the run context ends, so a backoff
// armed before shutdown cannot block on a drained queue afterwards.
func (c *Coordinator) enqueueAfter(ctx context.Context, backoff time.Duration, key string, id uuid.UUID) {
	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		metrics.KeyQueueDepth.Inc()
		select {
		case c.queueFor(key) <- id:
		case <-ctx.Done():
			metrics.KeyQueueDepth.Dec()
		}
	}()
}

func (c *Coordinator) backoff(attempt int) time.Duration {
	d := c.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.MaxBackoff {
			return c.cfg.MaxBackoff
		}
	}
	return d
}

// fail marks a job terminally failed after a deterministic ledger revert.
func (c *Coordinator) fail(ctx context.Context, job *model.ReconciliationJob, reason string, cause error) error {
	if err := c.emitFailure(ctx, job, cause); err != nil {
		return err
	}
	if err := c.jobs.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	metrics.JobsFailedTotal.WithLabelValues(string(job.Transition), reason).Inc()
	return nil
}

// exhaust fails a job whose retry budget ran out and pages an operator.
func (c *Coordinator) exhaust(ctx context.Context, job *model.ReconciliationJob, cause error) error {
	if err := c.fail(ctx, job, "retries_exhausted", cause); err != nil {
		return err
	}
	c.logger.Error("job retries exhausted, operator intervention required",
		"job_id", job.ID, "key", job.IdempotencyKey, "transition", job.Transition,
		"attempts", job.AttemptCount+1, "cause", cause)

	alertErr := c.alerter.Send(ctx, alert.Alert{
		Type:    alert.TypeJobExhausted,
		Key:     job.IdempotencyKey,
		Title:   "Reconciliation job exhausted its retry budget",
		Message: fmt.Sprintf("transition %s for %s could not be confirmed or ruled out", job.Transition, job.IdempotencyKey),
		Fields: map[string]string{
			"job_id":     job.ID.String(),
			"transition": string(job.Transition),
			"attempts":   fmt.Sprintf("%d", job.AttemptCount+1),
			"last_error": cause.Error(),
		},
	})
	if alertErr != nil {
		c.logger.Error("exhaustion alert failed", "job_id", job.ID, "error", alertErr)
	}
	return nil
}

// emitFailure writes the escrow_failed outbox event for failed escrow
// transitions. Verification failures are reported through logs and the
// job table only.
func (c *Coordinator) emitFailure(ctx context.Context, job *model.ReconciliationJob, cause error) error {
	switch job.Transition {
	case model.TransitionVerifyDriver, model.TransitionRejectDriver:
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	failed := event.EscrowFailed{
		RideID:   job.IdempotencyKey,
		Reason:   cause.Error(),
		FailedAt: time.Now().UTC(),
	}
	if err := c.appendOutboxTx(ctx, tx, model.KindEscrowFailed, job.IdempotencyKey, failed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
