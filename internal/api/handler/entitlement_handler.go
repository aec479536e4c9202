package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/presetstudio/entitlements/internal/api/metrics"
	"github.com/presetstudio/entitlements/internal/api/middleware"
	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
	"github.com/presetstudio/entitlements/internal/core/service"
)

// EntitlementHandler exposes the policy decision surface. Both routes accept
// anonymous callers, so the bearer token is read directly instead of going
// through the strict session middleware.
type EntitlementHandler struct {
	entitlements ports.EntitlementService
}

func NewEntitlementHandler(entitlements ports.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements}
}

// Check handles POST /v1/entitlement/check — the pre-invocation decision.
//
// @Summary      Check entitlement for a feature invocation
// @Tags         entitlement
// @Accept       json
// @Produce      json
// @Param        body  body      checkRequest  true  "Caller environment signals"
// @Success      200   {object}  decisionResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/entitlement/check [post]
func (h *EntitlementHandler) Check(c echo.Context) error {
	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	token := middleware.BearerToken(c)
	decision, err := h.entitlements.Check(c.Request().Context(), ports.CheckInput{
		SessionToken: token,
		Fingerprint:  fingerprintOf(req.Signals),
	})
	if err != nil {
		return err
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Kind), callerKind(token)).Inc()
	return c.JSON(http.StatusOK, toDecisionResponse(decision))
}

// Consume handles POST /v1/entitlement/consume — reports a completed
// invocation for metering. A denial returns 402 with the decision so the UI
// can render the right remediation; a tracking failure still returns 200
// because the feature already ran.
//
// @Summary      Record consumption of a feature invocation
// @Tags         entitlement
// @Accept       json
// @Produce      json
// @Param        body  body      consumeRequest  true  "Completed invocation"
// @Success      200   {object}  consumeResponse
// @Failure      400   {object}  errorResponse
// @Failure      402   {object}  consumeResponse
// @Router       /v1/entitlement/consume [post]
func (h *EntitlementHandler) Consume(c echo.Context) error {
	var req consumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	token := middleware.BearerToken(c)
	result, err := h.entitlements.Consume(c.Request().Context(), ports.ConsumeInput{
		SessionToken: token,
		Fingerprint:  fingerprintOf(req.Signals),
		Feature:      req.Feature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotEntitled) {
			metrics.DecisionsTotal.WithLabelValues(string(result.Decision.Kind), callerKind(token)).Inc()
			return c.JSON(http.StatusPaymentRequired, toConsumeResponse(result))
		}
		return err
	}

	if result.Recorded {
		metrics.ConsumptionsTotal.WithLabelValues(callerKind(token)).Inc()
	}
	if result.TrackingFailed {
		metrics.TrackingFailuresTotal.Inc()
	}
	return c.JSON(http.StatusOK, toConsumeResponse(result))
}

// Usage handles GET /v1/me/usage — requires the session middleware.
//
// @Summary      Current usage for the authenticated principal
// @Tags         entitlement
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  usageResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/me/usage [get]
func (h *EntitlementHandler) Usage(c echo.Context) error {
	if _, err := ctxSession(c); err != nil {
		return err
	}
	token, _ := c.Get("session_token").(string)

	usage, principal, err := h.entitlements.Usage(c.Request().Context(), token)
	if err != nil {
		return err
	}

	resp := usageResponse{
		Tier:      string(principal.Tier),
		Used:      usage.Used,
		Limit:     usage.Limit,
		Remaining: usage.Remaining,
	}
	if usage.CycleEnd != nil {
		resp.CycleEnd = usage.CycleEnd.Unix()
	}
	return c.JSON(http.StatusOK, resp)
}

func fingerprintOf(s signalsRequest) string {
	return service.Fingerprint(service.Signals{
		ScreenResolution: s.ScreenResolution,
		Timezone:         s.Timezone,
		Locale:           s.Locale,
		Platform:         s.Platform,
		RendererDigest:   s.RendererDigest,
		UserAgent:        s.UserAgent,
	})
}

func callerKind(token string) string {
	if token == "" {
		return "anonymous"
	}
	return "authenticated"
}

func toDecisionResponse(d domain.Decision) decisionResponse {
	return decisionResponse{
		Kind:          string(d.Kind),
		Remaining:     d.Remaining,
		SuggestedTier: string(d.SuggestedTier),
	}
}

func toConsumeResponse(r *ports.ConsumeResult) consumeResponse {
	return consumeResponse{
		Decision:       toDecisionResponse(r.Decision),
		Recorded:       r.Recorded,
		TrackingFailed: r.TrackingFailed,
	}
}
