package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/veloride/settlement-core/internal/alert"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/metrics"
)

const (
	recoveryBatch          = 1000
	recoveryBacklogAlertAt = 50
)

// Recover requeues the jobs a previous process left behind. Submitted
// jobs have an unknown outcome and go through reconciliation-by-read;
// pending jobs simply resume. Must run before Run starts accepting new
// events so recovered jobs keep their place at the head of each key's
// queue.
func (c *Coordinator) Recover(ctx context.Context) error {
	submitted, err := c.jobs.ListByState(ctx, model.JobSubmitted, recoveryBatch)
	if err != nil {
		return fmt.Errorf("list submitted jobs: %w", err)
	}
	pending, err := c.jobs.ListByState(ctx, model.JobPending, recoveryBatch)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}

	for _, job := range submitted {
		metrics.RecoveryJobsScanned.Inc()
		c.enqueue(job.IdempotencyKey, job.ID)
	}
	for _, job := range pending {
		c.enqueue(job.IdempotencyKey, job.ID)
	}

	if len(submitted) > 0 || len(pending) > 0 {
		c.logger.Info("recovery scan complete",
			"submitted", len(submitted), "pending", len(pending))
	}
	if len(submitted) >= recoveryBacklogAlertAt {
		if err := c.alerter.Send(ctx, alert.Alert{
			Type:    alert.TypeRecoveryBacklog,
			Title:   "Large recovery backlog",
			Message: fmt.Sprintf("%d jobs were in flight when the previous process died", len(submitted)),
			Fields:  map[string]string{"submitted": fmt.Sprintf("%d", len(submitted))},
		}); err != nil {
			c.logger.Error("recovery backlog alert failed", "error", err)
		}
	}
	return nil
}

// PurgeConfirmed deletes confirmed jobs older than the retention window.
// Terminal failed jobs are kept indefinitely for the audit trail.
func (c *Coordinator) PurgeConfirmed(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := c.jobs.PurgeConfirmedBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge confirmed jobs: %w", err)
	}
	if n > 0 {
		c.logger.Info("purged confirmed jobs", "count", n, "retention", retention.String())
	}
	return n, nil
}
