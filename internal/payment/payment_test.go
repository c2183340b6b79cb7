package payment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/pkg/breaker"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) CreatePaymentIntent(_ context.Context, amount int64, currency string, _ map[string]string) (*Intent, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: amount, Currency: currency}, nil
}

func testBreaker(name string) breaker.Config {
	cfg := breaker.DefaultConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = time.Minute
	return cfg
}

func TestService_CreateIntent(t *testing.T) {
	svc := NewService(&MockProvider{}, testBreaker("payment-test-ok"), quietLogger())

	intent, err := svc.CreateIntent(context.Background(), 2599, "EUR", map[string]string{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_mock_2599_eur_u1", intent.ID)
	assert.Equal(t, "pi_mock_2599_eur_u1_secret", intent.ClientSecret)
	assert.Equal(t, "eur", intent.Currency)
}

func TestService_CreateIntent_Validation(t *testing.T) {
	provider := &countingProvider{}
	svc := NewService(provider, testBreaker("payment-test-validation"), quietLogger())

	tests := []struct {
		name     string
		amount   int64
		currency string
	}{
		{"zero amount", 0, "usd"},
		{"negative amount", -5, "usd"},
		{"short currency", 100, "us"},
		{"numeric currency", 100, "12a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateIntent(context.Background(), tc.amount, tc.currency, nil)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
	assert.Zero(t, provider.calls)
}

func TestService_CreateIntent_UpstreamFailureTripsBreaker(t *testing.T) {
	provider := &countingProvider{err: errors.New("connection reset")}
	svc := NewService(provider, testBreaker("payment-test-trip"), quietLogger())

	for range 2 {
		_, err := svc.CreateIntent(context.Background(), 100, "usd", nil)
		assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	}
	assert.Equal(t, "open", svc.BreakerState())

	_, err := svc.CreateIntent(context.Background(), 100, "usd", nil)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	assert.True(t, errors.Is(err, breaker.ErrOpen))
	assert.Equal(t, 2, provider.calls)
}

func TestService_CreateIntent_ClientErrorDoesNotTrip(t *testing.T) {
	provider := &countingProvider{err: &ClientError{Err: errors.New("amount too small")}}
	svc := NewService(provider, testBreaker("payment-test-client"), quietLogger())

	for range 3 {
		_, err := svc.CreateIntent(context.Background(), 1, "usd", nil)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	}
	assert.Equal(t, "closed", svc.BreakerState())
	assert.Equal(t, 3, provider.calls)
}

func TestMockProvider_FailWith(t *testing.T) {
	m := &MockProvider{FailWith: errors.New("down")}
	_, err := m.CreatePaymentIntent(context.Background(), 1, "usd", nil)
	assert.EqualError(t, err, "down")
}

func TestMockProvider_VerifyWebhook(t *testing.T) {
	var v WebhookVerifier = &MockProvider{}

	evt, err := v.VerifyWebhook([]byte(`{"type":"payment_intent.succeeded","payment_intent_id":"pi_1"}`), "")
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, evt.Type)
	assert.Equal(t, "pi_1", evt.PaymentIntentID)

	_, err = v.VerifyWebhook([]byte(`not json`), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
