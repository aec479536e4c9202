package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// UsageMeterService tracks per-principal monthly consumption against a
// rolling billing-cycle boundary.
type UsageMeterService struct {
	principals ports.PrincipalRepository
	log        zerolog.Logger
	now        func() time.Time
}

func NewUsageMeterService(principals ports.PrincipalRepository, log zerolog.Logger) *UsageMeterService {
	return &UsageMeterService{
		principals: principals,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Current resolves billing-cycle rollover and returns the usage view, so
// callers never observe stale usage from a closed cycle. Any correction is
// persisted before returning.
func (m *UsageMeterService) Current(ctx context.Context, p *domain.Principal) (*ports.UsageSnapshot, error) {
	if change, ok := m.resolveRollover(p); ok {
		applied, err := m.principals.AdvanceCycle(ctx, p.ID, change.prev, change.next, change.resetUsage, m.now())
		if err != nil {
			return nil, fmt.Errorf("persist cycle rollover: %w", err)
		}
		if applied {
			end := change.next
			p.BillingCycleEnd = &end
			if change.resetUsage {
				p.MonthlyUsage = 0
				reset := m.now()
				p.LastUsageReset = &reset
			}
			p.UpdatedAt = m.now()
			m.log.Info().
				Str("principal_id", p.ID).
				Time("billing_cycle_end", change.next).
				Msg("billing cycle rolled over")
		} else {
			// Another writer advanced the cycle between our read and the
			// conditional update. Adopt the stored state instead of
			// overwriting increments that landed after our snapshot.
			fresh, err := m.principals.FindByID(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("reload after rollover race: %w", err)
			}
			*p = *fresh
		}
	}

	limit := p.Tier.MonthlyLimit()
	remaining := limit - p.MonthlyUsage
	if remaining < 0 {
		remaining = 0
	}
	return &ports.UsageSnapshot{
		Used:      p.MonthlyUsage,
		Limit:     limit,
		Remaining: remaining,
		CycleEnd:  p.BillingCycleEnd,
	}, nil
}

// cycleChange is a pending boundary correction: prev is the boundary the
// snapshot was read with, next the corrected one.
type cycleChange struct {
	prev       *time.Time
	next       time.Time
	resetUsage bool
}

// resolveRollover computes the state p's cycle should be in at now and
// reports whether a correction is needed. It does not mutate p; the caller
// applies the change only after the conditional write lands. It is
// idempotent: repeated calls after a boundary converge to the same corrected
// state.
func (m *UsageMeterService) resolveRollover(p *domain.Principal) (cycleChange, bool) {
	now := m.now()

	var end time.Time
	prev := p.BillingCycleEnd
	if prev == nil {
		// Free-tier principals get their first cycle end lazily, derived
		// from activity rather than signup, so dormant accounts never
		// accrue phantom cycles.
		anchor := p.CreatedAt
		if p.LastUsageReset != nil && p.LastUsageReset.After(anchor) {
			anchor = *p.LastUsageReset
		}
		end = anchor.AddDate(0, 1, 0)
		if end.After(now) {
			return cycleChange{prev: nil, next: end}, true
		}
	} else {
		if !now.After(*prev) {
			return cycleChange{}, false
		}
		end = *prev
	}

	// Advance from the previous boundary, not from now, so delayed checks
	// do not drift the cycle.
	for !end.After(now) {
		end = end.AddDate(0, 1, 0)
	}
	return cycleChange{prev: prev, next: end, resetUsage: true}, true
}

// Record bills exactly one invocation using the repository's conditional
// atomic increment and returns the post-increment usage. A principal that
// can no longer be resolved (session revoked between check and record) maps
// to ErrUsageTrackingFailed: the feature already ran, so the caller must
// surface the gap for reconciliation rather than fail the user.
func (m *UsageMeterService) Record(ctx context.Context, principalID string, limit int, feature string) (int, error) {
	used, err := m.principals.IncrementUsage(ctx, principalID, limit, feature, m.now())
	if err != nil {
		if err == domain.ErrQuotaExhausted {
			return 0, err
		}
		m.log.Error().Err(err).
			Str("principal_id", principalID).
			Str("feature", feature).
			Msg("completed invocation could not be billed, needs reconciliation")
		return 0, fmt.Errorf("%w: %v", domain.ErrUsageTrackingFailed, err)
	}
	return used, nil
}
