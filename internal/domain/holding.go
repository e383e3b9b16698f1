package domain

import (
	"time"

	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type HoldingStatus string

const (
	// HoldingHeld is the administrative bucket for shares issued without notifying the holder.
	HoldingHeld   HoldingStatus = "HELD"
	HoldingActive HoldingStatus = "ACTIVE"
)

type HoldingType string

const (
	HoldingTypeDRS         HoldingType = "DRS"
	HoldingTypeCertificate HoldingType = "CERTIFICATE"
)

// ParseHoldingType defaults to DRS when s is empty.
func ParseHoldingType(s string) (HoldingType, error) {
	switch HoldingType(s) {
	case "":
		return HoldingTypeDRS, nil
	case HoldingTypeDRS, HoldingTypeCertificate:
		return HoldingType(s), nil
	}
	return "", ledger.Validation("Invalid holding_type %q", s)
}

// Holding is a shareholder's position in one security class of one issuer.
// HELD and ACTIVE shares of the same position live in separate rows, so a
// shareholder has at most one row per status. Rows are adjusted in place and
// never deleted.
type Holding struct {
	HoldingID        uuid.UUID           `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	TenantID         uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	ShareholderID    uuid.UUID           `gorm:"column:shareholder_id;type:uuid;not null;uniqueIndex:idx_holding_bucket,priority:1" json:"shareholder_id"`
	IssuerID         uuid.UUID           `gorm:"column:issuer_id;type:uuid;not null;uniqueIndex:idx_holding_bucket,priority:2" json:"issuer_id"`
	SecurityClassID  uuid.UUID           `gorm:"column:security_class_id;type:uuid;not null;uniqueIndex:idx_holding_bucket,priority:3" json:"security_class_id"`
	ShareQuantity    decimal.Decimal     `gorm:"column:share_quantity;type:decimal(20,4);not null;default:0" json:"share_quantity"`
	Status           HoldingStatus       `gorm:"column:status;type:varchar(20);not null;uniqueIndex:idx_holding_bucket,priority:4" json:"status"`
	HoldingType      HoldingType         `gorm:"column:holding_type;type:varchar(20);not null;default:'DRS'" json:"holding_type"`
	AcquisitionDate  time.Time           `gorm:"column:acquisition_date" json:"acquisition_date"`
	AcquisitionPrice decimal.NullDecimal `gorm:"column:acquisition_price;type:decimal(20,4)" json:"acquisition_price"`
	IsRestricted     bool                `gorm:"column:is_restricted;not null;default:false" json:"is_restricted"`
	CreatedAt        time.Time           `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Holding) TableName() string {
	return "Holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}

// BeforeSave rejects any write that would leave the position negative.
func (h *Holding) BeforeSave(tx *gorm.DB) error {
	if h.ShareQuantity.IsNegative() {
		return ledger.ErrInsufficientShares
	}
	return nil
}
