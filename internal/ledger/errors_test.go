package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("execute: %w", ErrInsufficientShares)
	assert.True(t, errors.Is(err, ErrInsufficientShares))
	assert.False(t, errors.Is(err, ErrSellerHoldingNotFound))
	assert.Equal(t, KindInsufficientShares, KindOf(err))
}

func TestKindOf_ForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("stripe down")
	err := Wrap(KindPaymentProvider, "Failed to create checkout session", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to create checkout session: stripe down", err.Error())
}

func TestValidation_FormatsMessage(t *testing.T) {
	err := Validation("share_quantity must be greater than zero, got %s", "-1")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Contains(t, err.Error(), "-1")
}
