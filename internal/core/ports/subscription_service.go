package ports

import (
	"context"
	"time"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// BillingEventInput is the DTO passed from the transport layer to the
// subscription service for asynchronous billing-system callbacks.
type BillingEventInput struct {
	Kind           domain.BillingEventKind
	SubscriptionID string
	PeriodEnd      time.Time
	ReceivedAt     time.Time
}

// SubscriptionService drives the subscription state machine.
type SubscriptionService interface {
	// Upgrade activates a pro/team subscription for a free principal.
	// An already-active subscription is rejected with
	// domain.ErrAlreadySubscribed rather than silently double-charging.
	Upgrade(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error)
	// Cancel downgrades to free immediately; cancelling an already-cancelled
	// subscription is a no-op success.
	Cancel(ctx context.Context, principalID string) (*domain.Principal, error)
	// ProcessEvent is the sole ingress for billing callbacks.
	ProcessEvent(ctx context.Context, event BillingEventInput) error
}
