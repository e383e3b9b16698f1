package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferExecuted  TransferStatus = "EXECUTED"
	TransferRejected  TransferStatus = "REJECTED"
	TransferCancelled TransferStatus = "CANCELLED"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:  {TransferApproved, TransferRejected},
	TransferApproved: {TransferExecuted, TransferCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s.
// EXECUTED, REJECTED and CANCELLED have no successors.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s TransferStatus) Terminal() bool {
	return len(transferTransitions[s]) == 0
}

// Transfer is a requested movement of shares between two shareholders of one security class.
type Transfer struct {
	TransferID              uuid.UUID       `gorm:"column:transfer_id;type:uuid;primaryKey" json:"transfer_id"`
	TenantID                uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	FromShareholderID       uuid.UUID       `gorm:"column:from_shareholder_id;type:uuid;not null;index" json:"from_shareholder_id"`
	ToShareholderID         uuid.UUID       `gorm:"column:to_shareholder_id;type:uuid;not null;index" json:"to_shareholder_id"`
	IssuerID                uuid.UUID       `gorm:"column:issuer_id;type:uuid;not null" json:"issuer_id"`
	SecurityClassID         uuid.UUID       `gorm:"column:security_class_id;type:uuid;not null" json:"security_class_id"`
	ShareQuantity           decimal.Decimal `gorm:"column:share_quantity;type:decimal(20,4);not null" json:"share_quantity"`
	Status                  TransferStatus  `gorm:"column:status;type:varchar(20);not null;default:'PENDING'" json:"status"`
	TransferDate            time.Time       `gorm:"column:transfer_date;not null" json:"transfer_date"`
	SurrenderedCertificates datatypes.JSON  `gorm:"column:surrendered_certificates;type:json" json:"surrendered_certificates"`
	Notes                   string          `gorm:"column:notes" json:"notes"`
	CreatedBy               string          `gorm:"column:created_by;not null" json:"created_by"`
	ApprovedBy              *string         `gorm:"column:approved_by" json:"approved_by"`
	ApprovedDate            *time.Time      `gorm:"column:approved_date" json:"approved_date"`
	ProcessedBy             *string         `gorm:"column:processed_by" json:"processed_by"`
	ProcessedDate           *time.Time      `gorm:"column:processed_date" json:"processed_date"`
	CreatedAt               time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt               time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Transfer) TableName() string {
	return "Transfers"
}

func (t *Transfer) BeforeCreate(tx *gorm.DB) error {
	if t.TransferID == uuid.Nil {
		t.TransferID = uuid.New()
	}
	if len(t.SurrenderedCertificates) == 0 {
		t.SurrenderedCertificates = datatypes.JSON("[]")
	}
	return nil
}

// CertificateNumbers decodes SurrenderedCertificates.
func (t *Transfer) CertificateNumbers() ([]string, error) {
	if len(t.SurrenderedCertificates) == 0 {
		return nil, nil
	}
	var numbers []string
	if err := json.Unmarshal(t.SurrenderedCertificates, &numbers); err != nil {
		return nil, err
	}
	return numbers, nil
}

// SetCertificateNumbers encodes numbers into SurrenderedCertificates.
func (t *Transfer) SetCertificateNumbers(numbers []string) {
	if numbers == nil {
		numbers = []string{}
	}
	b, _ := json.Marshal(numbers)
	t.SurrenderedCertificates = datatypes.JSON(b)
}
