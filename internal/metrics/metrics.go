package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Coordinator and gateway instrumentation, partitioned by transition.

var (
	// Coordinator
	JobsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "jobs_created_total",
		Help:      "Total reconciliation jobs created",
	}, []string{"transition"})

	JobsConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "jobs_confirmed_total",
		Help:      "Total jobs confirmed against the ledger",
	}, []string{"transition"})

	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "jobs_failed_total",
		Help:      "Total jobs terminally failed",
	}, []string{"transition", "reason"})

	JobsDuplicateSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "duplicate_events_suppressed_total",
		Help:      "Events dropped because an in-flight or confirmed job already owned the key",
	}, []string{"transition"})

	JobRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "job_retries_total",
		Help:      "Submission retries after an indeterminate outcome",
	}, []string{"transition"})

	ReconcileReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "reconcile_reads_total",
		Help:      "Ground-truth ledger reads performed to resolve indeterminate outcomes",
	}, []string{"transition", "result"})

	RecoveryJobsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "recovery_jobs_scanned_total",
		Help:      "Submitted jobs reconciled during startup recovery",
	})

	KeyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "key_queue_depth",
		Help:      "Events queued behind in-flight jobs across all keys",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "settlement",
		Subsystem: "coordinator",
		Name:      "job_duration_seconds",
		Help:      "Job processing duration from claim to terminal state",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"transition"})

	// Gateway
	GatewaySubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "gateway",
		Name:      "submissions_total",
		Help:      "Ledger submissions by outcome (confirmed, rejected, indeterminate)",
	}, []string{"transition", "outcome"})

	GatewaySubmitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "settlement",
		Subsystem: "gateway",
		Name:      "submit_duration_seconds",
		Help:      "Submission duration including confirmation wait",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"transition"})

	GatewayBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "gateway",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	})

	// Outbound events
	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "events",
		Name:      "outbox_published_total",
		Help:      "Outbox events published to the transport",
	}, []string{"kind"})

	OutboxPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "events",
		Name:      "outbox_publish_errors_total",
		Help:      "Outbox publish attempts that failed",
	})

	OutboxPendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "events",
		Name:      "outbox_pending_depth",
		Help:      "Unpublished rows in the outbox table",
	})

	// Alerting
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered per channel",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"channel", "type"})

	// Privacy codec
	DecryptFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "privacy",
		Name:      "decrypt_failures_total",
		Help:      "Authenticated decryption failures (tampered or wrong-key ciphertext)",
	})
)
