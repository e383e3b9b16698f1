package testutil

import (
	"context"
	"sync"

	"stocktransfer-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Notification is one call captured by Notifier.
type Notification struct {
	ShareholderID string
	Email         string
	Additional    decimal.Decimal
	Total         decimal.Decimal
}

// Notifier records share update / invitation calls. A non-nil Err is returned from every call.
type Notifier struct {
	mu    sync.Mutex
	Calls []Notification
	Err   error
}

func (n *Notifier) SendShareUpdateOrInvitation(ctx context.Context, holder *domain.Shareholder, issuer *domain.Issuer, additional, total decimal.Decimal) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls = append(n.Calls, Notification{
		ShareholderID: holder.ShareholderID.String(),
		Email:         holder.Email,
		Additional:    additional,
		Total:         total,
	})
	if n.Err != nil {
		return false, n.Err
	}
	return true, nil
}

// Count returns the number of captured calls.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Calls)
}
