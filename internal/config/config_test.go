package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("PORTAL_BASE_URL", "https://portal.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, 72*time.Hour, cfg.InviteTTL)
	assert.Equal(t, "https://portal.example.com", cfg.PortalBaseURL)
	assert.Equal(t, "https://portal.example.com/issuances/cancelled", cfg.CheckoutCancelURL)
	assert.False(t, cfg.PaymentConfigured())
}

func TestLoad_ProductionDatabaseAndStripe(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_DEV", "postgres://dev")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("INVITE_TTL_HOURS", "24")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.True(t, cfg.PaymentConfigured())
	assert.Equal(t, "eur", cfg.Currency)
	assert.Equal(t, 24*time.Hour, cfg.InviteTTL)
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("FRONTEND_URL_ENDS_WITH", " .acme-ledger.com, ,portal.example.org ")
	t.Setenv("CORS_MAX_AGE_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{".acme-ledger.com", "portal.example.org"}, cfg.FrontendURLEndsWith)
	assert.Equal(t, 10*time.Minute, cfg.CORSMaxAge)
	assert.False(t, cfg.Development())
}
