package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

type SubscriptionHandler struct {
	subscriptions ports.SubscriptionService
}

func NewSubscriptionHandler(subscriptions ports.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

type upgradeRequest struct {
	Plan         string `json:"plan"          validate:"required,oneof=pro team"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
}

type subscriptionResponse struct {
	ID               string `json:"id"`
	Plan             string `json:"plan"`
	Status           string `json:"status"`
	BillingCycle     string `json:"billing_cycle"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Tier             string `json:"tier"`
	MonthlyUsage     int    `json:"monthly_usage"`
}

// Upgrade handles POST /v1/subscription/upgrade.
//
// @Summary      Activate a paid subscription
// @Tags         subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      upgradeRequest  true  "Plan selection"
// @Success      200   {object}  subscriptionResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/subscription/upgrade [post]
func (h *SubscriptionHandler) Upgrade(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req upgradeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	cycle := domain.BillingCycle(req.BillingCycle)
	if cycle == "" {
		cycle = domain.BillingMonthly
	}

	principal, err := h.subscriptions.Upgrade(c.Request().Context(), session.PrincipalID, domain.Tier(req.Plan), cycle)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSubscriptionResponse(principal))
}

// Cancel handles POST /v1/subscription/cancel. Idempotent: cancelling twice
// returns the same terminal state.
//
// @Summary      Cancel the active subscription
// @Tags         subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  subscriptionResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/subscription/cancel [post]
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	principal, err := h.subscriptions.Cancel(c.Request().Context(), session.PrincipalID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSubscriptionResponse(principal))
}

func toSubscriptionResponse(p *domain.Principal) subscriptionResponse {
	resp := subscriptionResponse{
		Tier:         string(p.Tier),
		MonthlyUsage: p.MonthlyUsage,
	}
	if p.Subscription != nil {
		resp.ID = p.Subscription.ID
		resp.Plan = string(p.Subscription.Plan)
		resp.Status = string(p.Subscription.Status)
		resp.BillingCycle = string(p.Subscription.BillingCycle)
		resp.CurrentPeriodEnd = p.Subscription.CurrentPeriodEnd.Unix()
	}
	return resp
}
