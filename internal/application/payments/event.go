package payments

import (
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Checkout events the ledger reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// ErrInvalidSignature means the payload was not signed with the webhook secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event is an untrusted payment outcome reported by the provider.
type Event struct {
	EventID       string
	Type          string
	SessionID     string
	Metadata      map[string]string
	AmountTotal   int64
	PaymentStatus string
}

// Paid reports whether the provider claims the session was paid.
func (e Event) Paid() bool {
	return e.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. It returns a nil Event for other event types.
func ParseWebhook(payload []byte, signature, secret string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	switch string(stripeEvent.Type) {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed:
	default:
		return nil, nil
	}
	if stripeEvent.Data == nil {
		return nil, errors.New("webhook event has no data")
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(stripeEvent.Data.Raw, &cs); err != nil {
		return nil, err
	}
	return &Event{
		EventID:       stripeEvent.ID,
		Type:          string(stripeEvent.Type),
		SessionID:     cs.ID,
		Metadata:      cs.Metadata,
		AmountTotal:   cs.AmountTotal,
		PaymentStatus: string(cs.PaymentStatus),
	}, nil
}
