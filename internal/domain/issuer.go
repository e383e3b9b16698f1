package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issuer is the company whose shares are administered. Owned by a tenant.
type Issuer struct {
	IssuerID          uuid.UUID `gorm:"column:issuer_id;type:uuid;primaryKey" json:"issuer_id"`
	TenantID          uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	Name              string    `gorm:"column:name;not null" json:"name"`
	CertificatePrefix string    `gorm:"column:certificate_prefix;type:varchar(10);not null;default:'CS'" json:"certificate_prefix"`
	CreatedAt         time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Issuer) TableName() string {
	return "Issuers"
}

func (i *Issuer) BeforeCreate(tx *gorm.DB) error {
	if i.IssuerID == uuid.Nil {
		i.IssuerID = uuid.New()
	}
	return nil
}

// SecurityClass is a class or series of shares of one issuer (Common, Series A Preferred).
type SecurityClass struct {
	SecurityClassID uuid.UUID `gorm:"column:security_class_id;type:uuid;primaryKey" json:"security_class_id"`
	IssuerID        uuid.UUID `gorm:"column:issuer_id;type:uuid;not null;index" json:"issuer_id"`
	Name            string    `gorm:"column:name;not null" json:"name"`
	ClassType       string    `gorm:"column:class_type;type:varchar(20);not null;default:'COMMON'" json:"class_type"`
	CreatedAt       time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (SecurityClass) TableName() string {
	return "SecurityClasses"
}

func (s *SecurityClass) BeforeCreate(tx *gorm.DB) error {
	if s.SecurityClassID == uuid.Nil {
		s.SecurityClassID = uuid.New()
	}
	return nil
}

// Shareholder is a holder of record. UserID is set once the shareholder has a portal account.
type Shareholder struct {
	ShareholderID uuid.UUID  `gorm:"column:shareholder_id;type:uuid;primaryKey" json:"shareholder_id"`
	TenantID      uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	FullName      string     `gorm:"column:full_name;not null" json:"full_name"`
	Email         string     `gorm:"column:email" json:"email"`
	UserID        *uuid.UUID `gorm:"column:user_id;type:uuid" json:"user_id"`
	CreatedAt     time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Shareholder) TableName() string {
	return "Shareholders"
}

func (s *Shareholder) BeforeCreate(tx *gorm.DB) error {
	if s.ShareholderID == uuid.Nil {
		s.ShareholderID = uuid.New()
	}
	return nil
}

// HasAccount reports whether the shareholder can sign in to the portal.
func (s *Shareholder) HasAccount() bool {
	return s.UserID != nil && *s.UserID != uuid.Nil
}
