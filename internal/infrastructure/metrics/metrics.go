// Package metrics holds the Prometheus collectors of the service. They register with the
// default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Webhook deliveries by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	WebhooksUnmatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_unmatched_total",
			Help: "Verified webhooks that matched no transaction",
		},
		[]string{"provider"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_transitions_total",
			Help: "Applied transaction status changes",
		},
		[]string{"type", "from", "to"},
	)

	TransitionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_transitions_skipped_total",
			Help: "Events that did not change a transaction status",
		},
		[]string{"type", "from", "to"},
	)

	CoinsCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_credited_total",
			Help: "Coins credited to wallets by kind",
		},
		[]string{"kind"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of outbound provider calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation", "outcome"},
	)

	TransactionsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_expired_total",
			Help: "Stale pending transactions closed by the reconciler",
		},
		[]string{"status"},
	)

	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_collaborator_failures_total",
			Help: "Post-commit steps that failed after every retry",
		},
		[]string{"step"},
	)

	DuplicateDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_duplicate_deliveries_total",
			Help: "Deliveries dropped by the dedupe cache",
		},
		[]string{"provider"},
	)
)

// Outcome maps an error to the label used by the counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
