// Package payment creates payment intents with an external processor.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/utafrali/marketplace/pkg/breaker"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Intent is a created payment intent.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Provider is a payment processor.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
}

// WebhookEvent is a verified processor notification.
type WebhookEvent struct {
	Type            string
	PaymentIntentID string
}

// WebhookVerifier authenticates and decodes processor webhooks.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// EventPaymentSucceeded is the webhook type that confirms a payment.
const EventPaymentSucceeded = "payment_intent.succeeded"

// ErrInvalidSignature is returned for webhooks that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ClientError marks processor rejections caused by the request itself.
// They do not count against the circuit breaker.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string { return e.Err.Error() }
func (e *ClientError) Unwrap() error { return e.Err }

var currencyPattern = regexp.MustCompile(`^[a-zA-Z]{3}$`)

// Service validates payment requests and delegates to the provider through a
// circuit breaker.
type Service struct {
	provider Provider
	breaker  *breaker.Breaker[*Intent]
	logger   *slog.Logger
}

// NewService creates a payment service.
func NewService(provider Provider, cfg breaker.Config, logger *slog.Logger) *Service {
	isFailure := func(err error) bool {
		var ce *ClientError
		return !errors.As(err, &ce)
	}
	return &Service{
		provider: provider,
		breaker:  breaker.New[*Intent](cfg, isFailure, logger),
		logger:   logger,
	}
}

// CreateIntent creates a payment intent for amountMinor in currency.
func (s *Service) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, apperrors.Validation("amount must be greater than zero")
	}
	if !currencyPattern.MatchString(currency) {
		return nil, apperrors.Validation("currency must be a 3-letter ISO code")
	}
	currency = strings.ToLower(currency)

	intent, err := s.breaker.Execute(ctx, func(ctx context.Context) (*Intent, error) {
		return s.provider.CreatePaymentIntent(ctx, amountMinor, currency, metadata)
	})
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			return nil, apperrors.Validation(ce.Error())
		}
		s.logger.ErrorContext(ctx, "payment intent creation failed",
			slog.Int64("amount", amountMinor),
			slog.String("currency", currency),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Upstream("payment processor", err)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", intent.ID),
		slog.Int64("amount", amountMinor),
	)
	return intent, nil
}

// BreakerState reports the payment breaker state.
func (s *Service) BreakerState() string {
	return s.breaker.State()
}

// MockProvider returns deterministic intents without network calls.
type MockProvider struct {
	// FailWith, when set, is returned from every call.
	FailWith error
}

func (m *MockProvider) CreatePaymentIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	id := fmt.Sprintf("pi_mock_%d_%s", amountMinor, currency)
	if ref := metadata["user_id"]; ref != "" {
		id += "_" + ref
	}
	return &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amountMinor,
		Currency:     currency,
	}, nil
}

// VerifyWebhook accepts an unsigned {"type", "payment_intent_id"} body so the
// payment flow can be driven locally without a processor account.
func (m *MockProvider) VerifyWebhook(payload []byte, _ string) (*WebhookEvent, error) {
	var body struct {
		Type            string `json:"type"`
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Type == "" {
		return nil, ErrInvalidSignature
	}
	return &WebhookEvent{Type: body.Type, PaymentIntentID: body.PaymentIntentID}, nil
}
