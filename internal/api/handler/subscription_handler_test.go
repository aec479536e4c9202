package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

type stubSubscriptionService struct {
	upgradeFn func(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error)
	cancelFn  func(ctx context.Context, principalID string) (*domain.Principal, error)
}

func (s *stubSubscriptionService) Upgrade(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error) {
	return s.upgradeFn(ctx, principalID, plan, cycle)
}

func (s *stubSubscriptionService) Cancel(ctx context.Context, principalID string) (*domain.Principal, error) {
	return s.cancelFn(ctx, principalID)
}

func (s *stubSubscriptionService) ProcessEvent(ctx context.Context, event ports.BillingEventInput) error {
	return nil
}

func proSubscriber() *domain.Principal {
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	return &domain.Principal{
		ID:   "p1",
		Tier: domain.TierPro,
		Subscription: &domain.Subscription{
			ID:               "sub-1",
			Plan:             domain.TierPro,
			Status:           domain.SubscriptionActive,
			BillingCycle:     domain.BillingMonthly,
			CurrentPeriodEnd: periodEnd,
		},
	}
}

func TestSubscriptionHandler_Upgrade_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubSubscriptionService{
		upgradeFn: func(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error) {
			if principalID != "p1" || plan != domain.TierPro || cycle != domain.BillingMonthly {
				t.Fatalf("unexpected args: %s %s %s", principalID, plan, cycle)
			}
			return proSubscriber(), nil
		},
	}
	h := NewSubscriptionHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/subscription/upgrade", `{"plan":"pro"}`), rec)
	c.Set("session", &domain.Session{ID: "s1", PrincipalID: "p1"})

	if err := h.Upgrade(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["plan"] != "pro" || resp["status"] != "active" || resp["monthly_usage"] != float64(0) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestSubscriptionHandler_Upgrade_RequiresSession(t *testing.T) {
	e := newTestEcho()
	h := NewSubscriptionHandler(&stubSubscriptionService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/subscription/upgrade", `{"plan":"pro"}`), rec)

	if err := h.Upgrade(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSubscriptionHandler_Upgrade_InvalidPlan(t *testing.T) {
	e := newTestEcho()
	stub := &stubSubscriptionService{
		upgradeFn: func(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewSubscriptionHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/subscription/upgrade", `{"plan":"free"}`), rec)
	c.Set("session", &domain.Session{ID: "s1", PrincipalID: "p1"})

	if err := h.Upgrade(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSubscriptionHandler_Upgrade_AlreadySubscribed(t *testing.T) {
	e := newTestEcho()
	stub := &stubSubscriptionService{
		upgradeFn: func(ctx context.Context, principalID string, plan domain.Tier, cycle domain.BillingCycle) (*domain.Principal, error) {
			return nil, domain.ErrAlreadySubscribed
		},
	}
	h := NewSubscriptionHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/subscription/upgrade", `{"plan":"team"}`), rec)
	c.Set("session", &domain.Session{ID: "s1", PrincipalID: "p1"})

	if err := h.Upgrade(c); !errors.Is(err, domain.ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed to propagate, got %v", err)
	}
}

func TestSubscriptionHandler_Cancel_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubSubscriptionService{
		cancelFn: func(ctx context.Context, principalID string) (*domain.Principal, error) {
			p := proSubscriber()
			p.Tier = domain.TierFree
			p.Subscription.Status = domain.SubscriptionCancelled
			return p, nil
		},
	}
	h := NewSubscriptionHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/subscription/cancel", nil), rec)
	c.Set("session", &domain.Session{ID: "s1", PrincipalID: "p1"})

	if err := h.Cancel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "cancelled" || resp["tier"] != "free" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}
