package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// EntitlementPolicyService composes sessions, the anonymous quota tracker,
// and the tiered usage meter into a single decision for every attempted
// feature invocation.
type EntitlementPolicyService struct {
	sessions   ports.SessionService
	principals ports.PrincipalRepository
	anonQuota  ports.AnonymousQuotaStore
	meter      ports.UsageMeter
	log        zerolog.Logger
	now        func() time.Time
}

func NewEntitlementPolicyService(
	sessions ports.SessionService,
	principals ports.PrincipalRepository,
	anonQuota ports.AnonymousQuotaStore,
	meter ports.UsageMeter,
	log zerolog.Logger,
) *EntitlementPolicyService {
	return &EntitlementPolicyService{
		sessions:   sessions,
		principals: principals,
		anonQuota:  anonQuota,
		meter:      meter,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Check evaluates the policy in order, first match wins:
//
//  1. No valid session → anonymous daily quota: Available or SignupRequired.
//  2. Valid session, unverified email → VerificationRequired, even when
//     numerically under quota.
//  3. Valid session, verified → tiered meter: Available(remaining) or
//     UpgradeRequired(next tier up).
//
// The ordering is policy, not plumbing: unverified accounts never consume
// tiered quota, and anonymous counts never migrate into an account.
func (s *EntitlementPolicyService) Check(ctx context.Context, in ports.CheckInput) (domain.Decision, error) {
	_, decision, err := s.resolve(ctx, in)
	return decision, err
}

// resolve runs the shared policy walk and additionally returns the resolved
// principal for the authenticated Available path, which Consume needs for
// the atomic record step.
func (s *EntitlementPolicyService) resolve(ctx context.Context, in ports.CheckInput) (*domain.Principal, domain.Decision, error) {
	// 1. Anonymous path.
	session, err := s.validSession(ctx, in.SessionToken)
	if err != nil {
		return nil, domain.Decision{}, err
	}
	if session == nil {
		decision, err := s.anonymousDecision(ctx, in.Fingerprint)
		return nil, decision, err
	}

	// The session holds a snapshot from issuance; tier and usage must come
	// from the current principal record.
	principal, err := s.principals.FindByID(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			// Account deleted under a live session: treat as anonymous.
			decision, aErr := s.anonymousDecision(ctx, in.Fingerprint)
			return nil, decision, aErr
		}
		return nil, domain.Decision{}, err
	}

	// 2. Verification gates all authenticated usage.
	if !principal.EmailVerified {
		return principal, domain.VerificationRequired(), nil
	}

	// 3. Tiered meter, rollover resolved first.
	usage, err := s.meter.Current(ctx, principal)
	if err != nil {
		return nil, domain.Decision{}, err
	}
	if usage.Remaining <= 0 {
		return principal, domain.UpgradeRequired(principal.Tier.NextAbove()), nil
	}
	return principal, domain.Available(usage.Remaining), nil
}

func (s *EntitlementPolicyService) anonymousDecision(ctx context.Context, fingerprint string) (domain.Decision, error) {
	if fingerprint == "" {
		// No rate-limiting key at all: the cheapest safe answer is to ask
		// for an account rather than hand out unmeterable invocations.
		return domain.SignupRequired(), nil
	}

	count, err := s.anonQuota.Count(ctx, fingerprint, s.today())
	if err != nil {
		return domain.Decision{}, fmt.Errorf("anonymous quota read: %w", err)
	}
	if count >= domain.AnonymousDailyLimit {
		return domain.SignupRequired(), nil
	}
	return domain.Available(domain.AnonymousDailyLimit - count), nil
}

// Consume re-runs the policy and records consumption when allowed. The
// caller invokes it after the gated feature actually ran, so the counters
// record consumption, not attempts. A denial carries the Decision alongside
// ErrNotEntitled; a billing gap after a completed run comes back flagged for
// reconciliation instead of failing the user.
func (s *EntitlementPolicyService) Consume(ctx context.Context, in ports.ConsumeInput) (*ports.ConsumeResult, error) {
	principal, decision, err := s.resolve(ctx, ports.CheckInput{SessionToken: in.SessionToken, Fingerprint: in.Fingerprint})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return &ports.ConsumeResult{Decision: decision}, domain.ErrNotEntitled
	}

	// Anonymous consumption: the daily counter is a plain atomic INCR; the
	// record supersedes itself when the UTC date changes.
	if principal == nil {
		if _, err := s.anonQuota.Increment(ctx, in.Fingerprint, s.today()); err != nil {
			s.log.Error().Err(err).
				Str("fingerprint", in.Fingerprint).
				Str("feature", in.Feature).
				Msg("anonymous consumption not recorded, needs reconciliation")
			return &ports.ConsumeResult{Decision: decision, TrackingFailed: true}, nil
		}
		return &ports.ConsumeResult{Decision: decision, Recorded: true}, nil
	}

	// Authenticated consumption: conditional compare-and-increment, so two
	// concurrent callers can never both spend the last remaining unit.
	used, err := s.meter.Record(ctx, principal.ID, principal.Tier.MonthlyLimit(), in.Feature)
	switch {
	case err == nil:
		remaining := principal.Tier.MonthlyLimit() - used
		if remaining < 0 {
			remaining = 0
		}
		return &ports.ConsumeResult{Decision: domain.Available(remaining), Recorded: true}, nil
	case errors.Is(err, domain.ErrQuotaExhausted):
		// Lost the race for the last unit between check and record.
		return &ports.ConsumeResult{Decision: domain.UpgradeRequired(principal.Tier.NextAbove())}, domain.ErrNotEntitled
	case errors.Is(err, domain.ErrUsageTrackingFailed):
		return &ports.ConsumeResult{Decision: decision, TrackingFailed: true}, nil
	default:
		return nil, err
	}
}

// Usage returns the resolved usage view for an authenticated caller.
func (s *EntitlementPolicyService) Usage(ctx context.Context, sessionToken string) (*ports.UsageSnapshot, *domain.Principal, error) {
	session, err := s.sessions.Validate(ctx, sessionToken)
	if err != nil {
		return nil, nil, err
	}
	principal, err := s.principals.FindByID(ctx, session.PrincipalID)
	if err != nil {
		return nil, nil, err
	}
	usage, err := s.meter.Current(ctx, principal)
	if err != nil {
		return nil, nil, err
	}
	return usage, principal, nil
}

// validSession maps an absent or invalid token to (nil, nil): the policy
// treats both as anonymous rather than erroring, since SignupRequired is the
// correct remediation either way.
func (s *EntitlementPolicyService) validSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *EntitlementPolicyService) today() string {
	return s.now().Format("2006-01-02")
}
