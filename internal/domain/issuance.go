package domain

import (
	"time"

	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvestmentType string

const (
	InvestmentFounderShares InvestmentType = "FOUNDER_SHARES"
	InvestmentSeedRound     InvestmentType = "SEED_ROUND"
	InvestmentRetail        InvestmentType = "RETAIL"
	InvestmentFriendsFamily InvestmentType = "FRIENDS_FAMILY"
)

// ParseInvestmentType accepts only the four known investment types.
func ParseInvestmentType(s string) (InvestmentType, error) {
	switch t := InvestmentType(s); t {
	case InvestmentFounderShares, InvestmentSeedRound, InvestmentRetail, InvestmentFriendsFamily:
		return t, nil
	}
	return "", ledger.Validation("Invalid investment_type %q", s)
}

// RequiresPayment reports whether shares of this type exist only after a confirmed payment.
func (t InvestmentType) RequiresPayment() bool {
	return t == InvestmentRetail || t == InvestmentFriendsFamily
}

type IssuanceStatus string

const (
	IssuancePendingPayment    IssuanceStatus = "PENDING_PAYMENT"
	IssuancePaymentProcessing IssuanceStatus = "PAYMENT_PROCESSING"
	IssuanceCompleted         IssuanceStatus = "COMPLETED"
	IssuanceFailed            IssuanceStatus = "FAILED"
)

// IssuanceRequestTTL is how long a paid issuance waits for its payment.
const IssuanceRequestTTL = 24 * time.Hour

// ShareIssuanceRequest records one issuance attempt. HoldingID is set exactly once, on completion.
type ShareIssuanceRequest struct {
	RequestID               uuid.UUID           `gorm:"column:request_id;type:uuid;primaryKey" json:"request_id"`
	TenantID                uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	ShareholderID           uuid.UUID           `gorm:"column:shareholder_id;type:uuid;not null;index" json:"shareholder_id"`
	IssuerID                uuid.UUID           `gorm:"column:issuer_id;type:uuid;not null" json:"issuer_id"`
	SecurityClassID         uuid.UUID           `gorm:"column:security_class_id;type:uuid;not null" json:"security_class_id"`
	InvestmentType          InvestmentType      `gorm:"column:investment_type;type:varchar(20);not null" json:"investment_type"`
	HoldingType             HoldingType         `gorm:"column:holding_type;type:varchar(20);not null;default:'DRS'" json:"holding_type"`
	IsRestricted            bool                `gorm:"column:is_restricted;not null;default:false" json:"is_restricted"`
	NotifyByEmail           bool                `gorm:"column:notify_by_email;not null;default:false" json:"notify_by_email"`
	ShareQuantity           decimal.Decimal     `gorm:"column:share_quantity;type:decimal(20,4);not null" json:"share_quantity"`
	PricePerShare           decimal.Decimal     `gorm:"column:price_per_share;type:decimal(20,4);not null;default:0" json:"price_per_share"`
	TotalAmount             decimal.Decimal     `gorm:"column:total_amount;type:decimal(20,2);not null;default:0" json:"total_amount"`
	CostBasis               decimal.NullDecimal `gorm:"column:cost_basis;type:decimal(20,4)" json:"cost_basis"`
	Currency                string              `gorm:"column:currency;type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                  IssuanceStatus      `gorm:"column:status;type:varchar(30);not null" json:"status"`
	StripeCheckoutSessionID *string             `gorm:"column:stripe_checkout_session_id;index" json:"stripe_checkout_session_id"`
	HoldingID               *uuid.UUID          `gorm:"column:holding_id;type:uuid" json:"holding_id"`
	Notes                   string              `gorm:"column:notes" json:"notes"`
	CreatedBy               string              `gorm:"column:created_by;not null" json:"created_by"`
	ExpiresAt               *time.Time          `gorm:"column:expires_at" json:"expires_at"`
	CompletedAt             *time.Time          `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt               time.Time           `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt               time.Time           `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ShareIssuanceRequest) TableName() string {
	return "ShareIssuanceRequests"
}

func (r *ShareIssuanceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.RequestID == uuid.Nil {
		r.RequestID = uuid.New()
	}
	return nil
}

// AmountMinorUnits is TotalAmount in cents, rounded half away from zero.
func (r *ShareIssuanceRequest) AmountMinorUnits() int64 {
	return r.TotalAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Settled reports whether the request already produced its holding.
func (r *ShareIssuanceRequest) Settled() bool {
	return r.Status == IssuanceCompleted || r.HoldingID != nil
}

// Expired is advisory; reconciliation still honours late payments.
func (r *ShareIssuanceRequest) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
