package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string
	AutoMigrate         bool
	RedisURL            string
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	Currency            string
	FrontendURLEndsWith []string // browser origins allowed by CORS, matched by suffix
	DevPassword         string
	CORSMaxAge          time.Duration
	HealthAdminKey      string
	SendinblueAPIKey    string // Brevo key for shareholder notifications
	MailFrom            string
	MailBrand           string
	PortalBaseURL       string // shareholder portal, used in email links
	InviteSigningSecret string
	InviteTTL           time.Duration
}

// PaymentConfigured reports whether paid issuances can be accepted.
func (c *Config) PaymentConfigured() bool {
	return c.StripeSecretKey != ""
}

// Development reports whether APP_ENV is development; localhost origins are only trusted then.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("MAIL_FROM", "noreply@stocktransfer.local")
	v.SetDefault("MAIL_BRAND", "Stock Transfer Ledger")
	v.SetDefault("PORTAL_BASE_URL", "http://localhost:3000")
	v.SetDefault("INVITE_TTL_HOURS", 72)
	v.SetDefault("CORS_MAX_AGE_SECONDS", 600)

	env := strings.ToLower(v.GetString("APP_ENV"))
	dbURL := v.GetString("DATABASE_URL_DEV")
	switch env {
	case "production":
		dbURL = v.GetString("DATABASE_URL_PROD")
	case "test":
		dbURL = v.GetString("DATABASE_URL_TEST")
	}

	portal := strings.TrimRight(strings.TrimSpace(v.GetString("PORTAL_BASE_URL")), "/")

	return &Config{
		Env:                 env,
		Port:                v.GetString("PORT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		DatabaseURL:         dbURL,
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		RedisURL:            v.GetString("REDIS_URL"),
		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  orDefault(v.GetString("CHECKOUT_SUCCESS_URL"), portal+"/issuances/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   orDefault(v.GetString("CHECKOUT_CANCEL_URL"), portal+"/issuances/cancelled"),
		Currency:            strings.ToLower(v.GetString("CURRENCY")),
		FrontendURLEndsWith: splitList(v.GetString("FRONTEND_URL_ENDS_WITH")),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		CORSMaxAge:          time.Duration(v.GetInt("CORS_MAX_AGE_SECONDS")) * time.Second,
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:    v.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            v.GetString("MAIL_FROM"),
		MailBrand:           v.GetString("MAIL_BRAND"),
		PortalBaseURL:       portal,
		InviteSigningSecret: v.GetString("INVITE_SIGNING_SECRET"),
		InviteTTL:           time.Duration(v.GetInt("INVITE_TTL_HOURS")) * time.Hour,
	}, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// splitList parses a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
