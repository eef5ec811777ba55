package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/metrics"
	"github.com/veloride/settlement-core/internal/store"
)

// Drainer moves events from the durable outbox to the transport. The
// outbox row is only marked published after the transport accepts the
// event, so a crash between the two produces a duplicate, never a loss.
type Drainer struct {
	outbox    store.OutboxRepository
	transport Transport
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewDrainer(outbox store.OutboxRepository, transport Transport, interval time.Duration, batchSize int, logger *slog.Logger) *Drainer {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Drainer{
		outbox:    outbox,
		transport: transport,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "outbox_drainer"),
	}
}

func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("outbox drainer started", "interval", d.interval.String(), "batch_size", d.batchSize)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox drainer stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := d.drainOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (d *Drainer) drainOnce(ctx context.Context) error {
	evs, err := d.outbox.ListUnpublished(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		metrics.OutboxPendingDepth.Set(0)
		return nil
	}

	published := make([]uuid.UUID, 0, len(evs))
	for _, ev := range evs {
		if err := d.transport.Publish(ctx, ev); err != nil {
			metrics.OutboxPublishErrors.Inc()
			d.logger.Warn("publish failed, will retry", "event_id", ev.ID, "kind", ev.Kind, "error", err)
			break
		}
		published = append(published, ev.ID)
		metrics.OutboxPublishedTotal.WithLabelValues(ev.Kind).Inc()
	}

	if len(published) > 0 {
		if err := d.outbox.MarkPublished(ctx, published); err != nil {
			return err
		}
	}

	pending, err := d.outbox.CountUnpublished(ctx)
	if err == nil {
		metrics.OutboxPendingDepth.Set(float64(pending))
	}
	return nil
}
