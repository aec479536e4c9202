package domain

import "time"

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	// SubscriptionNone is the implicit state of a principal without a
	// subscription record; it never appears on a persisted Subscription.
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// BillingCycle is the renewal period of a subscription.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// validTransitions defines the allowed state machine transitions.
// active → active is renewal; cancelled is terminal except for a fresh
// upgrade, which creates a new subscription rather than reviving the record.
var validTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionNone:      {SubscriptionActive},
	SubscriptionActive:    {SubscriptionActive, SubscriptionCancelled},
	SubscriptionCancelled: {SubscriptionActive},
}

// CanTransitionTo reports whether a transition from the current status to
// next is valid.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Subscription is a principal's paid plan. At most one is active at a time.
type Subscription struct {
	ID                 string             `json:"id"`
	Plan               Tier               `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	BillingCycle       BillingCycle       `json:"billing_cycle"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
}

// PeriodLength returns the calendar span of one billing period.
func (c BillingCycle) PeriodLength() (years, months int) {
	if c == BillingYearly {
		return 1, 0
	}
	return 0, 1
}

// BillingEventKind identifies a billing-system callback type.
type BillingEventKind string

const (
	EventPaymentSucceeded    BillingEventKind = "payment_succeeded"
	EventPaymentFailed       BillingEventKind = "payment_failed"
	EventSubscriptionDeleted BillingEventKind = "subscription.deleted"
)

// Known reports whether the kind is one the engine processes.
func (k BillingEventKind) Known() bool {
	switch k {
	case EventPaymentSucceeded, EventPaymentFailed, EventSubscriptionDeleted:
		return true
	}
	return false
}
