package payments

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// Stripe refuses hosted checkout sessions that expire outside this window.
const (
	minCheckoutLifetime = 30 * time.Minute
	maxCheckoutLifetime = 24*time.Hour - 5*time.Minute
)

// ErrNotConfigured is returned by a CheckoutCreator without credentials.
var ErrNotConfigured = errors.New("payment provider not configured")

// CheckoutRequest is what the ledger asks the payment provider to collect.
// Metadata is echoed back unmodified on the payment event.
type CheckoutRequest struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	Metadata         map[string]string
	ExpiresAt        time.Time
}

// CheckoutSession is a hosted payment page.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutCreator abstracts hosted checkout creation for testability.
type CheckoutCreator interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// StripeCheckout creates Stripe Checkout sessions in payment mode.
type StripeCheckout struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Now        func() time.Time
}

func (s *StripeCheckout) Configured() bool {
	return s != nil && s.SecretKey != ""
}

func (s *StripeCheckout) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *StripeCheckout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.SuccessURL),
		CancelURL:  stripe.String(s.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ExpiresAt: stripe.Int64(ClampExpiry(s.now(), req.ExpiresAt).Unix()),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	client := session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: s.SecretKey}
	cs, err := client.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{SessionID: cs.ID, CheckoutURL: cs.URL}, nil
}

// ClampExpiry keeps want inside the lifetime window Stripe accepts.
func ClampExpiry(now, want time.Time) time.Time {
	if want.Before(now.Add(minCheckoutLifetime)) {
		return now.Add(minCheckoutLifetime)
	}
	if want.After(now.Add(maxCheckoutLifetime)) {
		return now.Add(maxCheckoutLifetime)
	}
	return want
}
