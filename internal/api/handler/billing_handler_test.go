package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

type captureDispatcher struct {
	events []ports.BillingEventInput
}

func (d *captureDispatcher) Enqueue(event ports.BillingEventInput) {
	d.events = append(d.events, event)
}

func TestBillingHandler_Receive_Accepted(t *testing.T) {
	e := newTestEcho()
	dispatcher := &captureDispatcher{}
	h := NewBillingHandler(dispatcher)

	body := `{"type":"payment_succeeded","data":{"subscription_id":"sub-1","period_end":1790812800}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/billing/events", body), rec)

	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	if len(dispatcher.events) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Kind != domain.EventPaymentSucceeded || event.SubscriptionID != "sub-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.PeriodEnd.Unix() != 1790812800 {
		t.Fatalf("period_end not converted: %v", event.PeriodEnd)
	}
	if event.ReceivedAt.IsZero() {
		t.Fatalf("expected ReceivedAt stamp")
	}
}

func TestBillingHandler_Receive_OmittedPeriodEnd(t *testing.T) {
	e := newTestEcho()
	dispatcher := &captureDispatcher{}
	h := NewBillingHandler(dispatcher)

	body := `{"type":"subscription.deleted","data":{"subscription_id":"sub-2"}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/billing/events", body), rec)

	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if !dispatcher.events[0].PeriodEnd.IsZero() {
		t.Fatalf("expected zero PeriodEnd, got %v", dispatcher.events[0].PeriodEnd)
	}
}

func TestBillingHandler_Receive_UnknownType(t *testing.T) {
	e := newTestEcho()
	dispatcher := &captureDispatcher{}
	h := NewBillingHandler(dispatcher)

	body := `{"type":"charge.disputed","data":{"subscription_id":"sub-1"}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/billing/events", body), rec)

	if err := h.Receive(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("unknown event must not be enqueued")
	}
}

func TestBillingHandler_Receive_MissingSubscriptionID(t *testing.T) {
	e := newTestEcho()
	dispatcher := &captureDispatcher{}
	h := NewBillingHandler(dispatcher)

	body := `{"type":"payment_succeeded","data":{}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/billing/events", body), rec)

	if err := h.Receive(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestBillingHandler_Receive_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	dispatcher := &captureDispatcher{}
	h := NewBillingHandler(dispatcher)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/billing/events", "not-json"), rec)

	if err := h.Receive(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
