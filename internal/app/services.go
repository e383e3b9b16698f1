// Package app wires the ledger services from configuration. The HTTP router
// and the operator CLI share it so both act through the same code paths.
package app

import (
	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/application/holdings"
	"stocktransfer-backend/internal/application/issuance"
	"stocktransfer-backend/internal/application/notifications"
	"stocktransfer-backend/internal/application/payments"
	"stocktransfer-backend/internal/application/transfers"
	"stocktransfer-backend/internal/config"
	"stocktransfer-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services are the ledger operations bound to one store.
type Services struct {
	DB        *gorm.DB
	Audit     *audit.Recorder
	Holdings  *holdings.Service
	Issuance  *issuance.Service
	Transfers *transfers.Service
	Invites   *notifications.InviteSigner
}

// NewServices builds every service over db.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	rec := &audit.Recorder{DB: db}
	invites := &notifications.InviteSigner{
		Secret: []byte(cfg.InviteSigningSecret),
		TTL:    cfg.InviteTTL,
		Issuer: cfg.MailBrand,
	}
	mailer := &notifications.Mailer{
		Sender: &notifications.BrevoClient{
			APIKey:   cfg.SendinblueAPIKey,
			MailFrom: cfg.MailFrom,
			Brand:    cfg.MailBrand,
		},
		Invites:       invites,
		PortalBaseURL: cfg.PortalBaseURL,
	}
	if cfg.SendinblueAPIKey == "" {
		log.Warn().Msg("SENDINBLUE_API_KEY not set; shareholder emails are disabled")
	}

	var checkout payments.CheckoutCreator
	if cfg.PaymentConfigured() {
		checkout = &payments.StripeCheckout{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
		}
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; paid issuances will be refused")
	}

	return &Services{
		DB:        db,
		Audit:     rec,
		Holdings:  &holdings.Service{DB: db, Audit: rec, Notifier: mailer},
		Issuance:  &issuance.Service{DB: db, Audit: rec, Checkout: checkout, Notifier: mailer, Currency: cfg.Currency},
		Transfers: &transfers.Service{DB: db, Audit: rec},
		Invites:   invites,
	}
}

// OpenStore opens the configured database and migrates it when AUTO_MIGRATE is set.
func OpenStore(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}
