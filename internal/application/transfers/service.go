package transfers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/application/holdings"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service moves shares between shareholders through the
// PENDING -> APPROVED -> EXECUTED workflow.
type Service struct {
	DB    *gorm.DB
	Audit *audit.Recorder
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateInput requests a transfer. TransferDate defaults to now and is also
// the cancellation date of surrendered certificates.
type CreateInput struct {
	TenantID                uuid.UUID
	Actor                   string
	FromShareholderID       uuid.UUID
	ToShareholderID         uuid.UUID
	IssuerID                uuid.UUID
	SecurityClassID         uuid.UUID
	ShareQuantity           decimal.Decimal
	TransferDate            *time.Time
	SurrenderedCertificates []string
	Notes                   string
}

// ExecutionResult reports both sides of an executed transfer.
type ExecutionResult struct {
	Transfer              *domain.Transfer `json:"transfer"`
	SellerHoldingID       uuid.UUID        `json:"seller_holding_id"`
	BuyerHoldingID        uuid.UUID        `json:"buyer_holding_id"`
	SellerBefore          decimal.Decimal  `json:"seller_before"`
	SellerAfter           decimal.Decimal  `json:"seller_after"`
	BuyerBefore           decimal.Decimal  `json:"buyer_before"`
	BuyerAfter            decimal.Decimal  `json:"buyer_after"`
	CancelledCertificates []string         `json:"cancelled_certificates"`
}

// Create records a PENDING transfer after checking the parties exist in the tenant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Transfer, error) {
	if in.TenantID == uuid.Nil {
		return nil, ledger.Validation("tenant_id is required")
	}
	if in.FromShareholderID == uuid.Nil || in.ToShareholderID == uuid.Nil || in.IssuerID == uuid.Nil || in.SecurityClassID == uuid.Nil {
		return nil, ledger.Validation("from_shareholder_id, to_shareholder_id, issuer_id and security_class_id are required")
	}
	if in.FromShareholderID == in.ToShareholderID {
		return nil, ledger.Validation("Cannot transfer to the same shareholder")
	}
	if !in.ShareQuantity.IsPositive() {
		return nil, ledger.Validation("share_quantity must be greater than 0")
	}
	numbers := make([]string, 0, len(in.SurrenderedCertificates))
	for _, n := range in.SurrenderedCertificates {
		if n = strings.TrimSpace(n); n != "" {
			numbers = append(numbers, n)
		}
	}
	date := s.now()
	if in.TransferDate != nil {
		date = in.TransferDate.UTC()
	}

	t := &domain.Transfer{
		TenantID:          in.TenantID,
		FromShareholderID: in.FromShareholderID,
		ToShareholderID:   in.ToShareholderID,
		IssuerID:          in.IssuerID,
		SecurityClassID:   in.SecurityClassID,
		ShareQuantity:     in.ShareQuantity,
		Status:            domain.TransferPending,
		TransferDate:      date,
		Notes:             in.Notes,
		CreatedBy:         in.Actor,
	}
	t.SetCertificateNumbers(numbers)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkParties(tx, in); err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return s.record(ctx, tx, t, in.Actor, audit.ActionTransferCreated, nil, transferSnapshot(t))
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func checkParties(tx *gorm.DB, in CreateInput) error {
	var n int64
	if err := tx.Model(&domain.Shareholder{}).
		Where("shareholder_id IN ? AND tenant_id = ?", []uuid.UUID{in.FromShareholderID, in.ToShareholderID}, in.TenantID).
		Count(&n).Error; err != nil {
		return err
	}
	if n != 2 {
		return ledger.NotFound("Shareholder not found")
	}
	var issuer domain.Issuer
	if err := tx.Where("issuer_id = ? AND tenant_id = ?", in.IssuerID, in.TenantID).First(&issuer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.NotFound("Issuer not found")
		}
		return err
	}
	var class domain.SecurityClass
	if err := tx.Where("security_class_id = ?", in.SecurityClassID).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.NotFound("Security class not found")
		}
		return err
	}
	if class.IssuerID != issuer.IssuerID {
		return ledger.Validation("Security class does not belong to issuer")
	}
	return nil
}

// Get returns one transfer of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, transferID uuid.UUID) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := s.DB.WithContext(ctx).Where("transfer_id = ? AND tenant_id = ?", transferID, tenantID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Approve moves a PENDING transfer to APPROVED.
func (s *Service) Approve(ctx context.Context, tenantID, transferID uuid.UUID, actor string) (*domain.Transfer, error) {
	return s.transition(ctx, tenantID, transferID, actor, domain.TransferApproved, audit.ActionTransferApproved, func(t *domain.Transfer, now time.Time) {
		t.ApprovedBy = &actor
		t.ApprovedDate = &now
	})
}

// Reject moves a PENDING transfer to REJECTED and keeps the reason in Notes.
func (s *Service) Reject(ctx context.Context, tenantID, transferID uuid.UUID, actor, reason string) (*domain.Transfer, error) {
	return s.transition(ctx, tenantID, transferID, actor, domain.TransferRejected, audit.ActionTransferRejected, func(t *domain.Transfer, now time.Time) {
		if reason = strings.TrimSpace(reason); reason != "" {
			t.Notes = reason
		}
	})
}

// Cancel withdraws an APPROVED transfer that has not been executed.
func (s *Service) Cancel(ctx context.Context, tenantID, transferID uuid.UUID, actor, reason string) (*domain.Transfer, error) {
	return s.transition(ctx, tenantID, transferID, actor, domain.TransferCancelled, audit.ActionTransferCancelled, func(t *domain.Transfer, now time.Time) {
		if reason = strings.TrimSpace(reason); reason != "" {
			t.Notes = reason
		}
	})
}

func (s *Service) transition(ctx context.Context, tenantID, transferID uuid.UUID, actor string, next domain.TransferStatus, action string, stamp func(*domain.Transfer, time.Time)) (*domain.Transfer, error) {
	var out *domain.Transfer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransfer(tx, tenantID, transferID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(next) {
			if t.Status == domain.TransferExecuted {
				return ledger.ErrTransferAlreadyExecuted
			}
			return ledger.Wrap(ledger.KindConflict, ledger.ErrInvalidTransition.Message,
				fmt.Errorf("%s -> %s", t.Status, next))
		}
		before := transferSnapshot(t)
		t.Status = next
		stamp(t, s.now())
		if err := tx.Save(t).Error; err != nil {
			return err
		}
		out = t
		return s.record(ctx, tx, t, actor, action, before, transferSnapshot(t))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Execute applies an APPROVED transfer: the seller is debited, the buyer
// credited, surrendered certificates cancelled and one audit entry written,
// all in one transaction. Business failures roll back and leave the
// transfer APPROVED so it can be retried.
func (s *Service) Execute(ctx context.Context, tenantID, transferID uuid.UUID, actor string) (*ExecutionResult, error) {
	var res *ExecutionResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTransfer(tx, tenantID, transferID)
		if err != nil {
			return err
		}
		switch t.Status {
		case domain.TransferApproved:
		case domain.TransferExecuted:
			return ledger.ErrTransferAlreadyExecuted
		default:
			return ledger.ErrTransferNotExecutable
		}
		before := transferSnapshot(t)

		seller, buyer, err := lockPair(tx, t)
		if err != nil {
			return err
		}
		if seller.ShareQuantity.LessThan(t.ShareQuantity) {
			return ledger.ErrInsufficientShares
		}

		res = &ExecutionResult{
			SellerHoldingID: seller.HoldingID,
			BuyerHoldingID:  buyer.HoldingID,
			SellerBefore:    seller.ShareQuantity,
			BuyerBefore:     buyer.ShareQuantity,
		}
		seller.ShareQuantity = seller.ShareQuantity.Sub(t.ShareQuantity)
		if err := tx.Save(seller).Error; err != nil {
			return err
		}
		buyer.ShareQuantity = buyer.ShareQuantity.Add(t.ShareQuantity)
		if err := tx.Save(buyer).Error; err != nil {
			return err
		}
		res.SellerAfter = seller.ShareQuantity
		res.BuyerAfter = buyer.ShareQuantity

		cancelled, err := cancelCertificates(tx, t)
		if err != nil {
			return err
		}
		res.CancelledCertificates = cancelled

		now := s.now()
		t.Status = domain.TransferExecuted
		t.ProcessedBy = &actor
		t.ProcessedDate = &now
		if err := tx.Save(t).Error; err != nil {
			return err
		}
		res.Transfer = t

		after := transferSnapshot(t)
		before["seller_share_quantity"] = res.SellerBefore.String()
		before["buyer_share_quantity"] = res.BuyerBefore.String()
		after["seller_share_quantity"] = res.SellerAfter.String()
		after["buyer_share_quantity"] = res.BuyerAfter.String()
		after["seller_holding_id"] = seller.HoldingID.String()
		after["buyer_holding_id"] = buyer.HoldingID.String()
		after["cancelled_certificates"] = cancelled
		return s.record(ctx, tx, t, actor, audit.ActionTransferExecuted, before, after)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("transfer_id", transferID.String()).
		Str("seller_after", res.SellerAfter.String()).
		Str("buyer_after", res.BuyerAfter.String()).
		Msg("transfer executed")
	return res, nil
}

func lockTransfer(tx *gorm.DB, tenantID, transferID uuid.UUID) (*domain.Transfer, error) {
	var t domain.Transfer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_id = ? AND tenant_id = ?", transferID, tenantID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

// lockPair locks the seller and buyer ACTIVE holdings of t, creating an empty
// buyer row when needed. HELD shares are not transferable. Rows are locked in
// shareholder id order so two opposite transfers between the same pair cannot
// deadlock; the buyer row may not exist yet, so holding ids cannot order them.
func lockPair(tx *gorm.DB, t *domain.Transfer) (seller, buyer *domain.Holding, err error) {
	sellerPos := holdings.Position{ShareholderID: t.FromShareholderID, IssuerID: t.IssuerID, SecurityClassID: t.SecurityClassID, Status: domain.HoldingActive}
	buyerPos := holdings.Position{ShareholderID: t.ToShareholderID, IssuerID: t.IssuerID, SecurityClassID: t.SecurityClassID, Status: domain.HoldingActive}

	lockSeller := func() error {
		seller, err = holdings.LockPosition(tx, sellerPos)
		if errors.Is(err, ledger.ErrHoldingNotFound) {
			return ledger.ErrSellerHoldingNotFound
		}
		return err
	}
	lockBuyer := func(restricted bool) error {
		template := domain.Holding{
			TenantID:        t.TenantID,
			Status:          domain.HoldingActive,
			HoldingType:     domain.HoldingTypeDRS,
			AcquisitionDate: t.TransferDate,
			IsRestricted:    restricted,
		}
		buyer, _, err = holdings.LockOrCreatePosition(tx, buyerPos, template)
		return err
	}

	if t.FromShareholderID.String() < t.ToShareholderID.String() {
		if err := lockSeller(); err != nil {
			return nil, nil, err
		}
		if err := lockBuyer(seller.IsRestricted); err != nil {
			return nil, nil, err
		}
	} else {
		// The seller must exist before a buyer row is inserted.
		var peek domain.Holding
		err := tx.Where("shareholder_id = ? AND issuer_id = ? AND security_class_id = ? AND status = ?", sellerPos.ShareholderID, sellerPos.IssuerID, sellerPos.SecurityClassID, sellerPos.Status).
			First(&peek).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ledger.ErrSellerHoldingNotFound
		}
		if err != nil {
			return nil, nil, err
		}
		if err := lockBuyer(peek.IsRestricted); err != nil {
			return nil, nil, err
		}
		if err := lockSeller(); err != nil {
			return nil, nil, err
		}
	}
	return seller, buyer, nil
}

// cancelCertificates cancels t's surrendered certificates as of the transfer
// date. Unknown and already-cancelled numbers are skipped.
func cancelCertificates(tx *gorm.DB, t *domain.Transfer) ([]string, error) {
	numbers, err := t.CertificateNumbers()
	if err != nil {
		return nil, err
	}
	cancelled := []string{}
	if len(numbers) == 0 {
		return cancelled, nil
	}
	var certs []domain.Certificate
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("issuer_id = ? AND certificate_number IN ?", t.IssuerID, numbers).
		Find(&certs).Error; err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(certs))
	for i := range certs {
		c := &certs[i]
		found[c.CertificateNumber] = true
		if err := c.Cancel(t.TransferDate); err != nil {
			log.Warn().Str("transfer_id", t.TransferID.String()).Str("certificate_number", c.CertificateNumber).Msg("surrendered certificate already cancelled")
			continue
		}
		if err := tx.Save(c).Error; err != nil {
			return nil, err
		}
		cancelled = append(cancelled, c.CertificateNumber)
	}
	for _, n := range numbers {
		if !found[n] {
			log.Warn().Str("transfer_id", t.TransferID.String()).Str("certificate_number", n).Msg("surrendered certificate not found")
		}
	}
	return cancelled, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, t *domain.Transfer, actor, action string, before, after map[string]interface{}) error {
	tenant := t.TenantID
	var old interface{}
	if before != nil {
		old = before
	}
	_, err := s.Audit.Record(ctx, tx, audit.Entry{
		TenantID:   &tenant,
		Actor:      actor,
		ActionType: action,
		ModelName:  "Transfer",
		ObjectID:   t.TransferID.String(),
		ObjectRepr: fmt.Sprintf("Transfer of %s shares (%s)", t.ShareQuantity.String(), t.Status),
		OldValue:   old,
		NewValue:   after,
	})
	return err
}

func transferSnapshot(t *domain.Transfer) map[string]interface{} {
	snap := map[string]interface{}{
		"status":         t.Status,
		"share_quantity": t.ShareQuantity.String(),
		"notes":          t.Notes,
	}
	if t.ApprovedBy != nil {
		snap["approved_by"] = *t.ApprovedBy
	}
	if t.ProcessedBy != nil {
		snap["processed_by"] = *t.ProcessedBy
	}
	return snap
}
