package domain

import "time"

// Principal models one account. Anonymous callers are identified only by
// fingerprint and never persisted as a Principal.
type Principal struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	PasswordHash  string `json:"-"`

	Tier Tier `json:"tier"`

	// MonthlyUsage counts metered invocations in the current billing cycle.
	// Storage does not clamp it to the tier limit; the entitlement policy and
	// the conditional increment enforce that at decision time.
	MonthlyUsage      int        `json:"monthly_usage"`
	BillingCycleEnd   *time.Time `json:"billing_cycle_end,omitempty"`
	LastUsageReset    *time.Time `json:"last_usage_reset,omitempty"`
	LastFeatureUsed   string     `json:"last_feature_used,omitempty"`
	LastFeatureUsedAt *time.Time `json:"last_feature_used_at,omitempty"`

	// VerificationToken is set at signup and cleared once the email is
	// verified. Opaque to callers.
	VerificationToken string `json:"-"`

	Subscription *Subscription `json:"subscription,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasActiveSubscription reports whether the principal currently holds an
// active (non-cancelled) subscription.
func (p *Principal) HasActiveSubscription() bool {
	return p.Subscription != nil && p.Subscription.Status == SubscriptionActive
}
