package domain

import (
	"time"

	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CertificateStatus string

const (
	CertificateOutstanding CertificateStatus = "OUTSTANDING"
	CertificateCancelled   CertificateStatus = "CANCELLED"
	CertificateReplaced    CertificateStatus = "REPLACED"
	CertificateLost        CertificateStatus = "LOST"
)

// Certificate is a physical or book-entry instrument. The number is unique per issuer.
type Certificate struct {
	CertificateID     uuid.UUID         `gorm:"column:certificate_id;type:uuid;primaryKey" json:"certificate_id"`
	TenantID          uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	IssuerID          uuid.UUID         `gorm:"column:issuer_id;type:uuid;not null;uniqueIndex:idx_certificate_number,priority:1" json:"issuer_id"`
	CertificateNumber string            `gorm:"column:certificate_number;not null;uniqueIndex:idx_certificate_number,priority:2" json:"certificate_number"`
	ShareholderID     uuid.UUID         `gorm:"column:shareholder_id;type:uuid;not null;index" json:"shareholder_id"`
	SecurityClassID   uuid.UUID         `gorm:"column:security_class_id;type:uuid;not null" json:"security_class_id"`
	HoldingID         *uuid.UUID        `gorm:"column:holding_id;type:uuid" json:"holding_id"`
	Shares            decimal.Decimal   `gorm:"column:shares;type:decimal(20,4);not null" json:"shares"`
	Status            CertificateStatus `gorm:"column:status;type:varchar(20);not null;default:'OUTSTANDING'" json:"status"`
	IssueDate         time.Time         `gorm:"column:issue_date;not null" json:"issue_date"`
	CancellationDate  *time.Time        `gorm:"column:cancellation_date" json:"cancellation_date"`
	CreatedAt         time.Time         `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time         `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Certificate) TableName() string {
	return "Certificates"
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.CertificateID == uuid.Nil {
		c.CertificateID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CertificateOutstanding
	}
	return nil
}

// Cancel marks the certificate cancelled as of at. A cancelled certificate stays cancelled.
func (c *Certificate) Cancel(at time.Time) error {
	if c.Status == CertificateCancelled {
		return ledger.ErrCertificateCancelled
	}
	c.Status = CertificateCancelled
	c.CancellationDate = &at
	return nil
}
