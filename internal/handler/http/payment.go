package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/payment"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/validator"
)

// maxWebhookBytes caps processor webhook bodies.
const maxWebhookBytes = 64 << 10

// PaymentHandler creates payment intents and receives processor webhooks.
type PaymentHandler struct {
	payments *payment.Service
	webhooks payment.WebhookVerifier
	orders   *service.OrderService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(payments *payment.Service, webhooks payment.WebhookVerifier, orders *service.OrderService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks, orders: orders, logger: logger}
}

// CreateIntentRequest is the JSON request body for creating a payment intent.
// Amount is in minor units. With OrderID the amount defaults to the order
// total and the intent is recorded on that pending order, which the webhook
// later marks paid.
type CreateIntentRequest struct {
	Amount   int64  `json:"amount" validate:"omitempty,gt=0"`
	Currency string `json:"currency" validate:"required,len=3"`
	OrderID  string `json:"order_id,omitempty" validate:"omitempty,max=64"`
}

// CreateIntent handles POST /api/v1/payments/intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req CreateIntentRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	amount := req.Amount
	metadata := map[string]string{"user_id": id.ID}
	if req.OrderID != "" {
		order, err := h.orders.PayableOrder(r.Context(), id, req.OrderID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		if amount != 0 && amount != order.Total {
			httputil.WriteError(w, r, apperrors.Validation("amount does not match the order total"), h.logger)
			return
		}
		amount = order.Total
		metadata["order_id"] = order.ID
	}

	intent, err := h.payments.CreateIntent(r.Context(), amount, req.Currency, metadata)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if req.OrderID != "" {
		if _, err := h.orders.AttachPaymentIntent(r.Context(), id, req.OrderID, intent.ID); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}
	httputil.WriteData(w, http.StatusCreated, intent)
}

// Webhook handles POST /api/v1/payments/webhook. A succeeded payment moves
// its pending order to paid. Events for unknown intents are acknowledged so
// the processor stops retrying them.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, r, apperrors.Validation("could not read webhook body"), h.logger)
		return
	}

	evt, err := h.webhooks.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "rejected payment webhook", slog.String("error", err.Error()))
		httputil.WriteError(w, r, apperrors.Validation("invalid webhook signature"), h.logger)
		return
	}

	if evt.Type == payment.EventPaymentSucceeded && evt.PaymentIntentID != "" {
		_, err := h.orders.ConfirmPayment(r.Context(), evt.PaymentIntentID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			h.logger.WarnContext(r.Context(), "payment webhook for unknown intent",
				slog.String("payment_intent_id", evt.PaymentIntentID),
			)
		case err != nil:
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteData(w, http.StatusOK, map[string]bool{"received": true})
}
