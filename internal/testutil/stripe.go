package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"stocktransfer-backend/internal/application/payments"

	"github.com/stretchr/testify/require"
)

// SignStripePayload builds a Stripe-Signature header for payload.
func SignStripePayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// CheckoutEventPayload renders a checkout.session.* event body.
func CheckoutEventPayload(t *testing.T, eventType, sessionID string, amountTotal int64, paymentStatus string, metadata map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + sessionID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             sessionID,
				"object":         "checkout.session",
				"amount_total":   amountTotal,
				"payment_status": paymentStatus,
				"metadata":       metadata,
			},
		},
	})
	require.NoError(t, err)
	return body
}

// Checkout is a payments.CheckoutCreator that hands out sequential session ids.
type Checkout struct {
	mu       sync.Mutex
	Disabled bool
	Err      error
	Requests []payments.CheckoutRequest
}

func (c *Checkout) Configured() bool {
	return !c.Disabled
}

func (c *Checkout) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Requests = append(c.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(c.Requests))
	return &payments.CheckoutSession{SessionID: id, CheckoutURL: "https://checkout.stripe.test/" + id}, nil
}
