package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/notify"
	"github.com/utafrali/marketplace/pkg/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSender_LogWhenSMTPDisabled(t *testing.T) {
	h := health.NewHandler(time.Second)

	s, err := newSender(&config.Config{}, testLogger(), h)
	require.NoError(t, err)

	assert.IsType(t, &notify.LogSender{}, s)
	assert.Empty(t, h.Check(context.Background()).Checks)
}

func TestNewSender_SMTPRegistersHealthCheck(t *testing.T) {
	h := health.NewHandler(time.Second)
	cfg := &config.Config{SMTPEnabled: true, SMTPHost: "localhost", SMTPPort: 2525, SMTPFrom: "noreply@example.com"}

	s, err := newSender(cfg, testLogger(), h)
	require.NoError(t, err)

	assert.IsType(t, &notify.SMTPSender{}, s)
	checks := h.Check(context.Background()).Checks
	require.Contains(t, checks, "smtp")
	assert.False(t, checks["smtp"].Critical)
}

func TestOpenStore_InvalidPostgresURL(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StorePostgres, DatabaseURL: "://not-a-url"}

	_, err := OpenStore(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}
