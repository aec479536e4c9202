package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// BillingDispatcher is the interface the handler uses to enqueue billing
// events for asynchronous, per-subscription-ordered processing.
type BillingDispatcher interface {
	Enqueue(event ports.BillingEventInput)
}

// BillingHandler is the sole ingress for billing-system callbacks.
type BillingHandler struct {
	dispatcher BillingDispatcher
}

func NewBillingHandler(dispatcher BillingDispatcher) *BillingHandler {
	return &BillingHandler{dispatcher: dispatcher}
}

type billingEventRequest struct {
	Type string `json:"type" validate:"required"`
	Data struct {
		SubscriptionID string `json:"subscription_id" validate:"required"`
		PeriodEnd      int64  `json:"period_end"`
	} `json:"data"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

// Receive handles POST /v1/billing/events — validates the envelope, enqueues
// the event, returns 202. Unknown event types are rejected up front so the
// billing system sees the misconfiguration immediately instead of the event
// dying in a worker log.
//
// @Summary      Ingest a billing event
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        body  body      billingEventRequest  true  "Billing event"
// @Success      202   {object}  acceptedResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/billing/events [post]
func (h *BillingHandler) Receive(c echo.Context) error {
	var req billingEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	kind := domain.BillingEventKind(req.Type)
	if !kind.Known() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown event type")
	}

	event := ports.BillingEventInput{
		Kind:           kind,
		SubscriptionID: req.Data.SubscriptionID,
		ReceivedAt:     time.Now().UTC(),
	}
	if req.Data.PeriodEnd > 0 {
		event.PeriodEnd = time.Unix(req.Data.PeriodEnd, 0).UTC()
	}

	h.dispatcher.Enqueue(event)
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "event accepted"})
}
