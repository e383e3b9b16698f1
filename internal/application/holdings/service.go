package holdings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/application/notifications"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Position identifies one holding row: a shareholder's HELD or ACTIVE shares
// in one class of one issuer.
type Position struct {
	ShareholderID   uuid.UUID
	IssuerID        uuid.UUID
	SecurityClassID uuid.UUID
	Status          domain.HoldingStatus
}

// LockPosition selects the holding at p FOR UPDATE. It returns
// ledger.ErrHoldingNotFound when no row exists.
func LockPosition(tx *gorm.DB, p Position) (*domain.Holding, error) {
	var h domain.Holding
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shareholder_id = ? AND issuer_id = ? AND security_class_id = ? AND status = ?", p.ShareholderID, p.IssuerID, p.SecurityClassID, p.Status).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrHoldingNotFound
		}
		return nil, err
	}
	return &h, nil
}

// LockOrCreatePosition locks the holding at p, inserting an empty one from
// template first when none exists. A concurrent insert of the same position
// is absorbed by the unique index and the row is locked again, so callers
// always end up holding the lock on the single row for p.
func LockOrCreatePosition(tx *gorm.DB, p Position, template domain.Holding) (h *domain.Holding, created bool, err error) {
	h, err = LockPosition(tx, p)
	if err == nil {
		return h, false, nil
	}
	if !errors.Is(err, ledger.ErrHoldingNotFound) {
		return nil, false, err
	}

	row := template
	row.HoldingID = uuid.Nil
	row.ShareholderID = p.ShareholderID
	row.IssuerID = p.IssuerID
	row.SecurityClassID = p.SecurityClassID
	row.Status = p.Status
	row.ShareQuantity = decimal.Zero
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	h, err = LockPosition(tx, p)
	if err != nil {
		return nil, false, err
	}
	return h, res.RowsAffected == 1, nil
}

// Service encapsulates holdings reads and the administrative release.
type Service struct {
	DB       *gorm.DB
	Audit    *audit.Recorder
	Notifier notifications.Notifier
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ViewHoldings returns a tenant's holdings, optionally narrowed to one shareholder.
func (s *Service) ViewHoldings(ctx context.Context, tenantID, shareholderID uuid.UUID) ([]domain.Holding, error) {
	if tenantID == uuid.Nil {
		return nil, ledger.Validation("tenant_id is required")
	}
	q := s.DB.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if shareholderID != uuid.Nil {
		q = q.Where("shareholder_id = ?", shareholderID)
	}
	var holdings []domain.Holding
	if err := q.Order(`"createdAt" ASC`).Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// Get returns one holding of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, holdingID uuid.UUID) (*domain.Holding, error) {
	var h domain.Holding
	err := s.DB.WithContext(ctx).Where("holding_id = ? AND tenant_id = ?", holdingID, tenantID).First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrHoldingNotFound
		}
		return nil, err
	}
	return &h, nil
}

// Release moves the shares of a HELD holding into the shareholder's ACTIVE
// position and records it. When no ACTIVE row exists the HELD row itself
// becomes ACTIVE; otherwise its shares are added to the ACTIVE row and the
// HELD row is left empty for later HELD issuances. The shareholder is
// notified outside the transaction and a failed notice does not undo the
// release. The returned holding is the ACTIVE row.
func (s *Service) Release(ctx context.Context, tenantID, holdingID uuid.UUID, actor string) (*domain.Holding, error) {
	var (
		released    domain.Holding
		moved       decimal.Decimal
		shareholder domain.Shareholder
		issuer      domain.Issuer
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held domain.Holding
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("holding_id = ? AND tenant_id = ?", holdingID, tenantID).
			First(&held).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrHoldingNotFound
			}
			return err
		}
		if held.Status != domain.HoldingHeld {
			return ledger.ErrHoldingNotHeld
		}
		if !held.ShareQuantity.IsPositive() {
			return ledger.ErrNothingToRelease
		}
		if err := tx.Where("shareholder_id = ?", held.ShareholderID).First(&shareholder).Error; err != nil {
			return err
		}
		if err := tx.Where("issuer_id = ?", held.IssuerID).First(&issuer).Error; err != nil {
			return err
		}
		moved = held.ShareQuantity
		heldBefore := held

		activePos := Position{ShareholderID: held.ShareholderID, IssuerID: held.IssuerID, SecurityClassID: held.SecurityClassID, Status: domain.HoldingActive}
		active, err := LockPosition(tx, activePos)
		switch {
		case errors.Is(err, ledger.ErrHoldingNotFound):
			held.Status = domain.HoldingActive
			if err := tx.Save(&held).Error; err != nil {
				return err
			}
			released = held
			return s.recordRelease(ctx, tx, &shareholder, &issuer, actor, heldBefore, held, nil)
		case err != nil:
			return err
		}

		activeBefore := *active
		active.ShareQuantity = active.ShareQuantity.Add(held.ShareQuantity)
		if held.IsRestricted {
			active.IsRestricted = true
		}
		held.ShareQuantity = decimal.Zero
		if err := tx.Save(&held).Error; err != nil {
			return err
		}
		if err := tx.Save(active).Error; err != nil {
			return err
		}
		if err := s.recordRelease(ctx, tx, &shareholder, &issuer, actor, heldBefore, held, &active.HoldingID); err != nil {
			return err
		}
		if err := s.recordRelease(ctx, tx, &shareholder, &issuer, actor, activeBefore, *active, &held.HoldingID); err != nil {
			return err
		}
		released = *active
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Notifier != nil && shareholder.Email != "" {
		sent, nerr := s.Notifier.SendShareUpdateOrInvitation(ctx, &shareholder, &issuer, moved, released.ShareQuantity)
		if nerr != nil {
			log.Warn().Err(nerr).Str("holding_id", released.HoldingID.String()).Msg("holding release notification failed")
		} else if !sent {
			log.Info().Str("holding_id", released.HoldingID.String()).Msg("holding release notification skipped")
		}
	}
	return &released, nil
}

// recordRelease writes one HOLDING_RELEASED entry for a row touched by a
// release. counterpart is the other row of a merge, nil when the row flipped.
func (s *Service) recordRelease(ctx context.Context, tx *gorm.DB, holder *domain.Shareholder, issuer *domain.Issuer, actor string, before, after domain.Holding, counterpart *uuid.UUID) error {
	tenant := after.TenantID
	newValue := map[string]interface{}{
		"status":         after.Status,
		"share_quantity": after.ShareQuantity.String(),
		"released_at":    s.now(),
	}
	if counterpart != nil {
		newValue["counterpart_holding_id"] = counterpart.String()
	}
	_, err := s.Audit.Record(ctx, tx, audit.Entry{
		TenantID:   &tenant,
		Actor:      actor,
		ActionType: audit.ActionHoldingReleased,
		ModelName:  "Holding",
		ObjectID:   after.HoldingID.String(),
		ObjectRepr: fmt.Sprintf("%s %s shares of %s", holder.FullName, after.ShareQuantity.String(), issuer.Name),
		OldValue:   map[string]interface{}{"status": before.Status, "share_quantity": before.ShareQuantity.String()},
		NewValue:   newValue,
	})
	return err
}
