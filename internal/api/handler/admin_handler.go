package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/api/metrics"
	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// AdminHandler hosts the audited administrative surface. There are no hidden
// runtime flags for tier changes: every override is an API call with an
// operator and a note, and lands in the audit trail.
type AdminHandler struct {
	principals ports.PrincipalRepository
	audit      ports.AuditRepository
	log        zerolog.Logger
}

func NewAdminHandler(principals ports.PrincipalRepository, audit ports.AuditRepository, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{principals: principals, audit: audit, log: log}
}

type tierOverrideRequest struct {
	Tier     string `json:"tier"     validate:"required,oneof=free pro team"`
	Operator string `json:"operator" validate:"required"`
	Note     string `json:"note"`
}

// OverrideTier handles POST /v1/admin/principals/:id/tier.
//
// @Summary      Override a principal's tier (audited)
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Principal ID"
// @Param        body  body      tierOverrideRequest  true  "Override details"
// @Success      200   {object}  principalResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/admin/principals/{id}/tier [post]
func (h *AdminHandler) OverrideTier(c echo.Context) error {
	var req tierOverrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	ctx := c.Request().Context()
	principal, err := h.principals.FindByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := &domain.TierOverride{
		PrincipalID: principal.ID,
		FromTier:    principal.Tier,
		ToTier:      domain.Tier(req.Tier),
		Operator:    req.Operator,
		Note:        req.Note,
		Timestamp:   now,
	}

	principal.Tier = entry.ToTier
	principal.UpdatedAt = now
	if err := h.principals.Update(ctx, principal); err != nil {
		return err
	}

	// The audit record is the point of this endpoint; a write failure is a
	// hard error, not a warning.
	if err := h.audit.InsertTierOverride(ctx, entry); err != nil {
		return err
	}

	metrics.TierOverridesTotal.WithLabelValues(string(entry.ToTier)).Inc()
	h.log.Info().
		Str("principal_id", principal.ID).
		Str("from_tier", string(entry.FromTier)).
		Str("to_tier", string(entry.ToTier)).
		Str("operator", entry.Operator).
		Msg("administrative tier override")

	return c.JSON(http.StatusOK, principalResponse{
		ID:            principal.ID,
		Email:         principal.Email,
		EmailVerified: principal.EmailVerified,
		Tier:          string(principal.Tier),
	})
}
