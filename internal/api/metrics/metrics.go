// Package metrics defines and registers all custom Prometheus metrics for
// the entitlement engine. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry at init time via
// promauto; the /metrics route exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entitlement"

// ── Policy metrics ────────────────────────────────────────────────────────────

// DecisionsTotal counts entitlement decisions by variant.
// Labels:
//   - decision: "available", "signup_required", "verification_required", "upgrade_required"
//   - caller: "anonymous" or "authenticated"
var DecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Total number of entitlement decisions, by variant and caller kind.",
	},
	[]string{"decision", "caller"},
)

// ConsumptionsTotal counts recorded feature consumptions.
// Label:
//   - caller: "anonymous" or "authenticated"
var ConsumptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumptions_total",
		Help:      "Total number of metered feature invocations recorded against a counter.",
	},
	[]string{"caller"},
)

// TrackingFailuresTotal counts completed invocations that could not be
// billed and require manual reconciliation.
var TrackingFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracking_failures_total",
		Help:      "Total number of completed invocations that could not be billed against quota.",
	},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsIssuedTotal counts issued sessions.
// Label:
//   - method: "signup", "verify", or "login"
var SessionsIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_issued_total",
		Help:      "Total number of sessions issued, by issuance method.",
	},
	[]string{"method"},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// BillingEventsTotal counts processed billing callbacks.
// Labels:
//   - kind: "payment_succeeded", "payment_failed", "subscription.deleted"
//   - result: "ok" or "error"
var BillingEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_events_total",
		Help:      "Total number of billing events processed, by kind and result.",
	},
	[]string{"kind", "result"},
)

// BillingQueueDepth tracks the events waiting in each dispatcher worker
// channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var BillingQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "billing_queue_depth",
		Help:      "Current number of billing events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Admin metrics ─────────────────────────────────────────────────────────────

// TierOverridesTotal counts explicit administrative tier overrides.
// Label:
//   - to_tier: the tier the principal was moved to
var TierOverridesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tier_overrides_total",
		Help:      "Total number of audited administrative tier overrides.",
	},
	[]string{"to_tier"},
)
