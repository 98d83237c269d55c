package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checkout sessions started, partitioned by provider, purpose and result
	paymentInitiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_payment_initiations_total",
			Help: "Total number of payment initiations",
		},
		[]string{"provider", "purpose", "result"},
	)

	// Provider callbacks partitioned by what the activation engine did with them
	paymentCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_payment_callbacks_total",
			Help: "Total number of provider callbacks by processing outcome",
		},
		[]string{"provider", "outcome"},
	)

	// Entitlement changes: activated, premium_granted, premium_expired
	entitlementChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_entitlement_changes_total",
			Help: "Total number of entitlement changes applied to accounts",
		},
		[]string{"change"},
	)

	// Confirmed revenue in whole shillings
	paymentRevenueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_payment_revenue_kes_total",
			Help: "Confirmed payment revenue in KES",
		},
		[]string{"purpose"},
	)

	// Pending attempts older than the stale threshold at the last sweep
	stalePendingAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anchor_payment_stale_pending_attempts",
			Help: "Number of pending payment attempts without a callback past the stale threshold",
		},
	)
)
