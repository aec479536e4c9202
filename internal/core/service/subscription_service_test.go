package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

func newLifecycleSvc(repo *memPrincipalRepo) *SubscriptionLifecycleService {
	return NewSubscriptionLifecycleService(repo, zerolog.Nop())
}

func seedFreePrincipal(t *testing.T, repo *memPrincipalRepo, usage int) *domain.Principal {
	t.Helper()
	now := time.Now().UTC()
	cycleEnd := now.AddDate(0, 1, 0)
	p, err := repo.Create(context.Background(), &domain.Principal{
		Email:           "sub@example.com",
		EmailVerified:   true,
		Tier:            domain.TierFree,
		MonthlyUsage:    usage,
		BillingCycleEnd: &cycleEnd,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	return p
}

func TestLifecycle_UpgradeResetsUsageAndSetsTier(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 10)

	upgraded, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if upgraded.Tier != domain.TierPro {
		t.Fatalf("expected pro tier, got %s", upgraded.Tier)
	}
	if upgraded.MonthlyUsage != 0 {
		t.Fatalf("expected usage reset, got %d", upgraded.MonthlyUsage)
	}
	sub := upgraded.Subscription
	if sub == nil || sub.Status != domain.SubscriptionActive || sub.Plan != domain.TierPro {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if upgraded.BillingCycleEnd == nil || !upgraded.BillingCycleEnd.Equal(sub.CurrentPeriodEnd) {
		t.Fatalf("billing cycle end not aligned to period end")
	}
}

func TestLifecycle_UpgradeYearlyPeriod(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	p := seedFreePrincipal(t, repo, 0)

	upgraded, err := svc.Upgrade(context.Background(), p.ID, domain.TierTeam, domain.BillingYearly)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	want := now.AddDate(1, 0, 0)
	if !upgraded.Subscription.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("expected yearly period end %v, got %v", want, upgraded.Subscription.CurrentPeriodEnd)
	}
}

func TestLifecycle_UpgradeWhileActiveRejected(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly); err != nil {
		t.Fatalf("first upgrade: %v", err)
	}
	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierTeam, domain.BillingMonthly); !errors.Is(err, domain.ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestLifecycle_UpgradeToFreeRejected(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierFree, domain.BillingMonthly); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLifecycle_CancelDowngradesImmediately(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Tier != domain.TierFree {
		t.Fatalf("expected immediate downgrade to free, got %s", cancelled.Tier)
	}
	if cancelled.Subscription.Status != domain.SubscriptionCancelled || cancelled.Subscription.CancelledAt == nil {
		t.Fatalf("unexpected subscription state: %+v", cancelled.Subscription)
	}
}

func TestLifecycle_CancelIsIdempotent(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	first, err := svc.Cancel(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	second, err := svc.Cancel(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("second cancel must be a no-op success, got %v", err)
	}
	if second.Subscription.Status != domain.SubscriptionCancelled {
		t.Fatalf("expected cancelled, got %s", second.Subscription.Status)
	}
	if !first.Subscription.CancelledAt.Equal(*second.Subscription.CancelledAt) {
		t.Fatalf("second cancel must not restamp cancelledAt")
	}
}

func TestLifecycle_CancelWithoutSubscription(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Cancel(context.Background(), p.ID); !errors.Is(err, domain.ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

func TestLifecycle_ReupgradeAfterCancel(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := seedFreePrincipal(t, repo, 0)

	if _, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	firstSubID := mustFind(t, repo, p.ID).Subscription.ID
	if _, err := svc.Cancel(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	upgraded, err := svc.Upgrade(context.Background(), p.ID, domain.TierTeam, domain.BillingMonthly)
	if err != nil {
		t.Fatalf("re-upgrade after cancel: %v", err)
	}
	if upgraded.Subscription.ID == firstSubID {
		t.Fatalf("re-upgrade must create a fresh subscription, not revive the cancelled one")
	}
	if upgraded.Tier != domain.TierTeam {
		t.Fatalf("expected team tier, got %s", upgraded.Tier)
	}
}

// ---------------------------------------------------------------------------
// Billing events
// ---------------------------------------------------------------------------

func activeSubscriber(t *testing.T, repo *memPrincipalRepo, svc *SubscriptionLifecycleService) *domain.Principal {
	t.Helper()
	p := seedFreePrincipal(t, repo, 0)
	upgraded, err := svc.Upgrade(context.Background(), p.ID, domain.TierPro, domain.BillingMonthly)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	return upgraded
}

func mustFind(t *testing.T, repo *memPrincipalRepo, id string) *domain.Principal {
	t.Helper()
	p, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find principal: %v", err)
	}
	return p
}

func TestLifecycle_PaymentSucceededRenews(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := activeSubscriber(t, repo, svc)

	// Burn some quota, then renew.
	burned := mustFind(t, repo, p.ID)
	burned.MonthlyUsage = 7
	if err := repo.Update(context.Background(), burned); err != nil {
		t.Fatalf("update: %v", err)
	}

	newEnd := p.Subscription.CurrentPeriodEnd.AddDate(0, 1, 0)
	err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{
		Kind:           domain.EventPaymentSucceeded,
		SubscriptionID: p.Subscription.ID,
		PeriodEnd:      newEnd,
	})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	renewed := mustFind(t, repo, p.ID)
	if renewed.MonthlyUsage != 0 {
		t.Fatalf("renewal must reset usage, got %d", renewed.MonthlyUsage)
	}
	if !renewed.Subscription.CurrentPeriodEnd.Equal(newEnd) {
		t.Fatalf("expected period end %v, got %v", newEnd, renewed.Subscription.CurrentPeriodEnd)
	}
	if renewed.Tier != domain.TierPro {
		t.Fatalf("renewal must not change tier, got %s", renewed.Tier)
	}
}

func TestLifecycle_PaymentFailedLeavesStateUntouched(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := activeSubscriber(t, repo, svc)

	before := mustFind(t, repo, p.ID)
	err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{
		Kind:           domain.EventPaymentFailed,
		SubscriptionID: p.Subscription.ID,
	})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	after := mustFind(t, repo, p.ID)
	if after.Tier != before.Tier || after.Subscription.Status != domain.SubscriptionActive {
		t.Fatalf("payment_failed must not touch tier or status: %+v", after)
	}
}

func TestLifecycle_SubscriptionDeletedCancels(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := activeSubscriber(t, repo, svc)

	err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{
		Kind:           domain.EventSubscriptionDeleted,
		SubscriptionID: p.Subscription.ID,
	})
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	after := mustFind(t, repo, p.ID)
	if after.Subscription.Status != domain.SubscriptionCancelled || after.Tier != domain.TierFree {
		t.Fatalf("expected cancelled + free, got %+v", after)
	}
}

func TestLifecycle_EventValidation(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)

	if err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{Kind: "charge.disputed", SubscriptionID: "sub-1"}); err == nil {
		t.Fatalf("expected error for unknown event kind")
	}
	if err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{Kind: domain.EventPaymentSucceeded}); err == nil {
		t.Fatalf("expected error for missing subscription id")
	}
	if err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{Kind: domain.EventPaymentSucceeded, SubscriptionID: "sub-unknown"}); !errors.Is(err, domain.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestLifecycle_RenewalOfCancelledRejected(t *testing.T) {
	repo := newMemPrincipalRepo()
	svc := newLifecycleSvc(repo)
	p := activeSubscriber(t, repo, svc)

	if _, err := svc.Cancel(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	err := svc.ProcessEvent(context.Background(), ports.BillingEventInput{
		Kind:           domain.EventPaymentSucceeded,
		SubscriptionID: p.Subscription.ID,
	})
	if !errors.Is(err, domain.ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}
