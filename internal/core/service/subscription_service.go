package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// SubscriptionLifecycleService drives tier transitions, both from explicit
// calls (upgrade, cancel) and from asynchronous billing callbacks.
type SubscriptionLifecycleService struct {
	principals ports.PrincipalRepository
	log        zerolog.Logger
	now        func() time.Time
}

func NewSubscriptionLifecycleService(principals ports.PrincipalRepository, log zerolog.Logger) *SubscriptionLifecycleService {
	return &SubscriptionLifecycleService{
		principals: principals,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upgrade activates a paid subscription: none/cancelled → active. The tier
// changes to the plan, usage resets to zero, and the billing cycle restarts
// at now plus one period. An already-active subscription is rejected rather
// than silently double-charging.
func (s *SubscriptionLifecycleService) Upgrade(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error) {
	if !plan.Paid() {
		return nil, fmt.Errorf("%w: plan %q is not a paid tier", domain.ErrInvalidTransition, plan)
	}
	if cycle != domain.BillingMonthly && cycle != domain.BillingYearly {
		cycle = domain.BillingMonthly
	}

	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if principal.HasActiveSubscription() {
		return nil, domain.ErrAlreadySubscribed
	}

	from := subscriptionStatus(principal)
	if !from.CanTransitionTo(domain.SubscriptionActive) {
		return nil, fmt.Errorf("%w: %s -> active", domain.ErrInvalidTransition, from)
	}

	now := s.now()
	years, months := cycle.PeriodLength()
	periodEnd := now.AddDate(years, months, 0)

	principal.Subscription = &domain.Subscription{
		ID:                 uuid.NewString(),
		Plan:               plan,
		Status:             domain.SubscriptionActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	}
	principal.Tier = plan
	principal.MonthlyUsage = 0
	principal.BillingCycleEnd = &periodEnd
	principal.LastUsageReset = &now
	principal.UpdatedAt = now

	if err := s.principals.Update(ctx, principal); err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	s.log.Info().
		Str("principal_id", principal.ID).
		Str("plan", string(plan)).
		Str("billing_cycle", string(cycle)).
		Time("period_end", periodEnd).
		Msg("subscription activated")

	return principal, nil
}

// Cancel moves active → cancelled and downgrades to free immediately (no
// grace period). Cancelling an already-cancelled subscription is a no-op
// success; a principal with no subscription at all gets ErrNotSubscribed.
func (s *SubscriptionLifecycleService) Cancel(ctx context.Context, principalID string) (*domain.Principal, error) {
	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, principal)
}

func (s *SubscriptionLifecycleService) cancel(ctx context.Context, principal *domain.Principal) (*domain.Principal, error) {
	if principal.Subscription == nil {
		return nil, domain.ErrNotSubscribed
	}
	if principal.Subscription.Status == domain.SubscriptionCancelled {
		return principal, nil
	}

	now := s.now()
	principal.Subscription.Status = domain.SubscriptionCancelled
	principal.Subscription.CancelledAt = &now
	principal.Tier = domain.TierFree
	principal.UpdatedAt = now

	if err := s.principals.Update(ctx, principal); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	s.log.Info().
		Str("principal_id", principal.ID).
		Str("subscription_id", principal.Subscription.ID).
		Msg("subscription cancelled, tier downgraded to free")

	return principal, nil
}

// ProcessEvent applies one billing callback. Unknown kinds and payloads that
// reference no subscription are hard errors; the state machine itself never
// throws for events that are valid no-ops.
func (s *SubscriptionLifecycleService) ProcessEvent(ctx context.Context, event ports.BillingEventInput) error {
	if !event.Kind.Known() {
		return fmt.Errorf("billing event: unknown kind %q", event.Kind)
	}
	if event.SubscriptionID == "" {
		return fmt.Errorf("billing event: missing subscription id")
	}

	principal, err := s.principals.FindBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return fmt.Errorf("billing event %s: %w", event.Kind, err)
	}

	switch event.Kind {
	case domain.EventPaymentSucceeded:
		return s.renew(ctx, principal, event)
	case domain.EventPaymentFailed:
		// Flag for operator visibility only. Quota and tier stay untouched;
		// grace periods and dunning are a separate, harder failure mode.
		s.log.Warn().
			Str("principal_id", principal.ID).
			Str("subscription_id", event.SubscriptionID).
			Msg("payment failed, subscription left active")
		return nil
	case domain.EventSubscriptionDeleted:
		if _, err := s.cancel(ctx, principal); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// renew is the active → active self-transition: the period extends and usage
// resets. Renewal of a non-active subscription is rejected.
func (s *SubscriptionLifecycleService) renew(ctx context.Context, principal *domain.Principal, event ports.BillingEventInput) error {
	sub := principal.Subscription
	if sub == nil || sub.Status != domain.SubscriptionActive {
		return fmt.Errorf("billing event %s: %w", event.Kind, domain.ErrNotSubscribed)
	}

	now := s.now()
	periodEnd := event.PeriodEnd
	if periodEnd.IsZero() {
		years, months := sub.BillingCycle.PeriodLength()
		periodEnd = sub.CurrentPeriodEnd.AddDate(years, months, 0)
	}

	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = periodEnd
	principal.MonthlyUsage = 0
	principal.BillingCycleEnd = &periodEnd
	principal.LastUsageReset = &now
	principal.UpdatedAt = now

	if err := s.principals.Update(ctx, principal); err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}

	s.log.Info().
		Str("principal_id", principal.ID).
		Str("subscription_id", sub.ID).
		Time("period_end", periodEnd).
		Msg("subscription renewed, usage reset")
	return nil
}

func subscriptionStatus(p *domain.Principal) domain.SubscriptionStatus {
	if p.Subscription == nil {
		return domain.SubscriptionNone
	}
	return p.Subscription.Status
}
