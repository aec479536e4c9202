package ports

import (
	"context"
	"time"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// CheckInput identifies a caller for an entitlement decision. SessionToken
// may be empty (anonymous caller); Fingerprint must always be present so the
// anonymous path has a rate-limiting key.
type CheckInput struct {
	SessionToken string
	Fingerprint  string
}

// ConsumeInput reports a completed feature invocation for metering.
type ConsumeInput struct {
	SessionToken string
	Fingerprint  string
	Feature      string
}

// ConsumeResult is the outcome of a consume call.
type ConsumeResult struct {
	Decision domain.Decision
	// Recorded is true when consumption was billed against a counter.
	Recorded bool
	// TrackingFailed marks an invocation that ran but could not be billed
	// (for example the session was revoked between check and record). It is
	// flagged for reconciliation, never surfaced as a user failure.
	TrackingFailed bool
}

// UsageSnapshot is the resolved usage view for one principal, rollover
// already applied.
type UsageSnapshot struct {
	Used      int
	Limit     int
	Remaining int
	CycleEnd  *time.Time
}

// EntitlementService is the decision surface called before and after every
// metered feature invocation.
type EntitlementService interface {
	// Check runs the entitlement policy. Denials are ordinary Decision
	// values; only storage failures return errors.
	Check(ctx context.Context, in CheckInput) (domain.Decision, error)
	// Consume re-runs the policy and, when allowed, records consumption
	// against the appropriate counter. A denial returns the Decision along
	// with domain.ErrNotEntitled.
	Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error)
	// Usage returns the current metered usage for an authenticated caller.
	Usage(ctx context.Context, sessionToken string) (*UsageSnapshot, *domain.Principal, error)
}

// UsageMeter resolves and records per-principal monthly consumption.
type UsageMeter interface {
	// Current resolves billing-cycle rollover, persists any correction, and
	// returns the usage view. Idempotent after the cycle boundary.
	Current(ctx context.Context, p *domain.Principal) (*UsageSnapshot, error)
	// Record bills one invocation under the atomic-increment discipline.
	Record(ctx context.Context, principalID string, limit int, feature string) (int, error)
}
