package payments

import (
	"errors"

	issuancesvc "stocktransfer-backend/internal/application/issuance"
	paymentsvc "stocktransfer-backend/internal/application/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type WebhookHandler struct {
	Issuance      *issuancesvc.Service
	WebhookSecret string
}

// HandleWebhook POST /api/v1/stripe/webhook. Raw body, signature verification,
// then reconciliation. Rejected or unknown events are acknowledged with 200 so
// Stripe stops retrying; store failures return 500 so it retries.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if sig == "" || wh.WebhookSecret == "" {
		log.Warn().Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook cannot be verified")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: missing signature or secret")
	}

	event, err := paymentsvc.ParseWebhook(rawBody, sig, wh.WebhookSecret)
	if err != nil {
		if errors.Is(err, paymentsvc.ErrInvalidSignature) {
			log.Warn().Msg("Stripe webhook signature verification failed")
		} else {
			log.Warn().Err(err).Msg("Stripe webhook payload could not be decoded")
		}
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: " + err.Error())
	}
	if event == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	result, err := wh.Issuance.ReconcilePayment(c.UserContext(), *event)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.EventID).Str("session_id", event.SessionID).Msg("payment reconciliation failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Webhook Error: reconciliation failed")
	}
	log.Info().
		Str("event_id", event.EventID).
		Str("type", event.Type).
		Str("action", string(result.Action)).
		Str("reason", result.Reason).
		Msg("payment event processed")
	// The provider only learns that the event arrived; the outcome stays in the log and the audit trail.
	return c.JSON(fiber.Map{"received": true})
}
