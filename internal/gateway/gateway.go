// Package gateway adapts the rest of the system to the external ledger.
// It owns the connection, submits transitions, waits for confirmation
// depth, and reports exactly one of three outcomes: Confirmed, Rejected
// (deterministic revert), or Indeterminate (unknown whether the transition
// landed — the caller must reconcile by reading before retrying). It never
// invents outcomes and holds no business rules.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/veloride/settlement-core/internal/circuitbreaker"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/metrics"
	"github.com/veloride/settlement-core/internal/retry"
)

// OutcomeStatus is the tri-state result of a submission.
type OutcomeStatus string

const (
	OutcomeConfirmed     OutcomeStatus = "confirmed"
	OutcomeRejected      OutcomeStatus = "rejected"
	OutcomeIndeterminate OutcomeStatus = "indeterminate"
)

// Outcome is what a submission produced. Exactly one of Receipt (on
// Confirmed), Reason (on Rejected), or Err (on Indeterminate) is
// meaningful.
type Outcome struct {
	Status  OutcomeStatus
	Receipt ledger.Receipt
	Reason  error // the ledger revert, on Rejected
	Err     error // the transport failure, on Indeterminate
}

// SubmitFunc performs one transition against the ledger client.
type SubmitFunc func(ctx context.Context, client ledger.Client) (ledger.Receipt, error)

// Config tunes the gateway.
type Config struct {
	SubmitTimeout     time.Duration // whole submission incl. confirmation wait
	ReadTimeout       time.Duration // side-effect-free reads
	ConfirmationDepth int64         // ledger entries after the transition before it is final
	ConfirmPoll       time.Duration // head polling interval while waiting for depth
	SubmitRate        rate.Limit    // submissions per second (0 = unlimited)
	SubmitBurst       int
}

type Gateway struct {
	client  ledger.Client
	cfg     Config
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

func New(client ledger.Client, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.ConfirmPoll <= 0 {
		cfg.ConfirmPoll = 500 * time.Millisecond
	}
	limit := cfg.SubmitRate
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.SubmitBurst
	if burst <= 0 {
		burst = 1
	}
	g := &Gateway{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "gateway"),
	}
	g.breaker = circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			g.logger.Warn("ledger circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.GatewayBreakerState.Set(float64(to))
		},
	})
	return g
}

// Submit runs one transition with the configured timeout and waits until
// it is buried under the confirmation depth.
func (g *Gateway) Submit(ctx context.Context, transition model.Transition, fn SubmitFunc) Outcome {
	started := time.Now()
	out := g.submit(ctx, fn)
	metrics.GatewaySubmissionsTotal.WithLabelValues(string(transition), string(out.Status)).Inc()
	metrics.GatewaySubmitLatency.WithLabelValues(string(transition)).Observe(time.Since(started).Seconds())
	return out
}

func (g *Gateway) submit(ctx context.Context, fn SubmitFunc) Outcome {
	if err := g.breaker.Allow(); err != nil {
		// Nothing was submitted, but the caller's protocol is the same
		// either way: reconcile by read, then retry.
		return Outcome{Status: OutcomeIndeterminate, Err: err}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return Outcome{Status: OutcomeIndeterminate, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	subCtx, cancel := context.WithTimeout(ctx, g.cfg.SubmitTimeout)
	defer cancel()

	receipt, err := fn(subCtx, g.client)
	if err != nil {
		decision := retry.Classify(err)
		if decision.IsTransient() {
			g.breaker.RecordFailure()
			return Outcome{Status: OutcomeIndeterminate, Err: err}
		}
		// Deterministic revert: the node answered, so it is healthy.
		g.breaker.RecordSuccess()
		return Outcome{Status: OutcomeRejected, Reason: err}
	}

	if err := g.awaitDepth(subCtx, receipt.Sequence); err != nil {
		g.breaker.RecordFailure()
		return Outcome{Status: OutcomeIndeterminate, Err: fmt.Errorf("await confirmation: %w", err)}
	}
	g.breaker.RecordSuccess()
	return Outcome{Status: OutcomeConfirmed, Receipt: receipt}
}

// awaitDepth polls the head sequence until the transition has the
// configured number of entries on top of it.
func (g *Gateway) awaitDepth(ctx context.Context, seq int64) error {
	if g.cfg.ConfirmationDepth <= 0 {
		return nil
	}
	ticker := time.NewTicker(g.cfg.ConfirmPoll)
	defer ticker.Stop()
	for {
		head, err := g.client.HeadSequence(ctx)
		if err == nil && head >= seq+g.cfg.ConfirmationDepth {
			return nil
		}
		if err != nil {
			g.logger.Debug("head sequence poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetEscrowByRide reads ledger ground truth for a ride. Reads are
// side-effect free and safe to retry immediately.
func (g *Gateway) GetEscrowByRide(ctx context.Context, rideID string) (*model.EscrowRecord, error) {
	readCtx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	return g.client.GetEscrowByRide(readCtx, rideID)
}

// GetEscrow reads ledger ground truth for an escrow id.
func (g *Gateway) GetEscrow(ctx context.Context, escrowID int64) (*model.EscrowRecord, error) {
	readCtx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	return g.client.GetEscrow(readCtx, escrowID)
}

// GetVerification reads ledger ground truth for a driver address.
func (g *Gateway) GetVerification(ctx context.Context, driverAddress model.Party) (*model.VerificationRecord, error) {
	readCtx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	return g.client.GetVerification(readCtx, driverAddress)
}

// IsDriverVerified evaluates the ledger-side verification predicate.
func (g *Gateway) IsDriverVerified(ctx context.Context, driverAddress model.Party) (bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	return g.client.IsDriverVerified(readCtx, driverAddress)
}

// EstimateCost passes a cost estimation through to the ledger.
func (g *Gateway) EstimateCost(ctx context.Context, transition model.Transition) (ledger.Cost, error) {
	readCtx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()
	return g.client.EstimateCost(readCtx, transition)
}

// ReplayEvents returns the raw ledger event log for a sequence range,
// used to rebuild the local mirror after an outage.
func (g *Gateway) ReplayEvents(ctx context.Context, fromSeq, toSeq int64) ([]ledger.Event, error) {
	events, err := g.client.Events(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("replay events [%d, %d]: %w", fromSeq, toSeq, err)
	}
	return events, nil
}

// IsNotFound reports whether a read failed because the record does not
// exist on the ledger (as opposed to a transport failure).
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
