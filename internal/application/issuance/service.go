package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/application/holdings"
	"stocktransfer-backend/internal/application/notifications"
	"stocktransfer-backend/internal/application/payments"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metadata keys sent to the payment provider and expected back on the event.
const (
	MetaRequestID      = "issuance_request_id"
	MetaTenantID       = "tenant_id"
	MetaShareholderID  = "shareholder_id"
	MetaInvestmentType = "investment_type"
)

// WebhookActor is recorded as the actor of changes driven by payment events.
const WebhookActor = "system:payment-webhook"

// Service issues new shares, directly or behind a hosted payment.
type Service struct {
	DB       *gorm.DB
	Audit    *audit.Recorder
	Checkout payments.CheckoutCreator
	Notifier notifications.Notifier
	Currency string
	Now      func() time.Time
}

// IssueInput carries one IssueShares call. Actor and TenantID come from the
// identity resolver and are trusted.
type IssueInput struct {
	TenantID        uuid.UUID
	Actor           string
	ShareholderID   uuid.UUID
	IssuerID        uuid.UUID
	SecurityClassID uuid.UUID
	ShareQuantity   decimal.Decimal
	InvestmentType  domain.InvestmentType
	PricePerShare   decimal.Decimal
	HoldingType     domain.HoldingType
	IsRestricted    bool
	CostBasis       decimal.NullDecimal
	NotifyByEmail   bool
	Notes           string
}

type parties struct {
	shareholder domain.Shareholder
	issuer      domain.Issuer
	class       domain.SecurityClass
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return "usd"
}

func (s *Service) paymentConfigured() bool {
	return s.Checkout != nil && s.Checkout.Configured()
}

func (in *IssueInput) validate() error {
	if in.TenantID == uuid.Nil {
		return ledger.Validation("tenant_id is required")
	}
	if in.ShareholderID == uuid.Nil || in.IssuerID == uuid.Nil || in.SecurityClassID == uuid.Nil {
		return ledger.Validation("shareholder_id, issuer_id and security_class_id are required")
	}
	if !in.ShareQuantity.IsPositive() {
		return ledger.Validation("share_quantity must be greater than 0")
	}
	if _, err := domain.ParseInvestmentType(string(in.InvestmentType)); err != nil {
		return err
	}
	ht, err := domain.ParseHoldingType(string(in.HoldingType))
	if err != nil {
		return err
	}
	in.HoldingType = ht
	if in.PricePerShare.IsNegative() {
		return ledger.Validation("price_per_share must not be negative")
	}
	if in.CostBasis.Valid && in.CostBasis.Decimal.IsNegative() {
		return ledger.Validation("cost_basis must not be negative")
	}
	return nil
}

func loadParties(db *gorm.DB, in IssueInput) (*parties, error) {
	var p parties
	if err := db.Where("shareholder_id = ? AND tenant_id = ?", in.ShareholderID, in.TenantID).First(&p.shareholder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NotFound("Shareholder not found")
		}
		return nil, err
	}
	if err := db.Where("issuer_id = ? AND tenant_id = ?", in.IssuerID, in.TenantID).First(&p.issuer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NotFound("Issuer not found")
		}
		return nil, err
	}
	if err := db.Where("security_class_id = ?", in.SecurityClassID).First(&p.class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NotFound("Security class not found")
		}
		return nil, err
	}
	if p.class.IssuerID != p.issuer.IssuerID {
		return nil, ledger.Validation("Security class does not belong to issuer")
	}
	return &p, nil
}

// IssueShares creates shares for a shareholder. Founder and seed issuances
// complete immediately; retail and friends-and-family issuances return a
// checkout session and complete in ReconcilePayment.
func (s *Service) IssueShares(ctx context.Context, in IssueInput) (Outcome, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.InvestmentType.RequiresPayment() {
		return s.issuePaid(ctx, in)
	}
	return s.issueFree(ctx, in)
}

func (s *Service) newRequest(in IssueInput, status domain.IssuanceStatus) *domain.ShareIssuanceRequest {
	return &domain.ShareIssuanceRequest{
		TenantID:        in.TenantID,
		ShareholderID:   in.ShareholderID,
		IssuerID:        in.IssuerID,
		SecurityClassID: in.SecurityClassID,
		InvestmentType:  in.InvestmentType,
		HoldingType:     in.HoldingType,
		IsRestricted:    in.IsRestricted,
		NotifyByEmail:   in.NotifyByEmail,
		ShareQuantity:   in.ShareQuantity,
		PricePerShare:   in.PricePerShare,
		TotalAmount:     in.ShareQuantity.Mul(in.PricePerShare).Round(2),
		CostBasis:       in.CostBasis,
		Currency:        s.currency(),
		Status:          status,
		Notes:           in.Notes,
		CreatedBy:       in.Actor,
	}
}

func (s *Service) issueFree(ctx context.Context, in IssueInput) (Outcome, error) {
	status := domain.HoldingHeld
	if in.NotifyByEmail {
		status = domain.HoldingActive
	}

	var (
		out Completed
		p   *parties
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = loadParties(tx, in)
		if err != nil {
			return err
		}
		req := s.newRequest(in, domain.IssuanceCompleted)
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		applied, err := s.apply(ctx, tx, req, p, status, in.Actor, audit.ActionIssueShares)
		if err != nil {
			return err
		}
		out = Completed{Request: req, Holding: applied.holding, Certificate: applied.certificate}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Holding.Status == domain.HoldingActive && in.NotifyByEmail {
		out.Notified = s.notify(ctx, &p.shareholder, &p.issuer, in.ShareQuantity, out.Holding.ShareQuantity)
	}
	return out, nil
}

func (s *Service) issuePaid(ctx context.Context, in IssueInput) (Outcome, error) {
	if !in.PricePerShare.IsPositive() {
		return nil, ledger.Validation("price_per_share must be greater than 0 for %s issuances", in.InvestmentType)
	}
	if !s.paymentConfigured() {
		return nil, ledger.ErrPaymentNotConfigured
	}

	db := s.DB.WithContext(ctx)
	p, err := loadParties(db, in)
	if err != nil {
		return nil, err
	}

	req := s.newRequest(in, domain.IssuancePendingPayment)
	expires := s.now().Add(domain.IssuanceRequestTTL)
	req.ExpiresAt = &expires
	if req.AmountMinorUnits() <= 0 {
		return nil, ledger.Validation("total amount must be at least one minor currency unit")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		_, err := s.recordRequest(ctx, tx, req, in.Actor, audit.ActionIssuancePayment, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	session, cerr := s.Checkout.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		AmountMinorUnits: req.AmountMinorUnits(),
		Currency:         req.Currency,
		Description:      fmt.Sprintf("%s shares of %s %s", req.ShareQuantity.String(), p.issuer.Name, p.class.Name),
		Metadata: map[string]string{
			MetaRequestID:      req.RequestID.String(),
			MetaTenantID:       req.TenantID.String(),
			MetaShareholderID:  req.ShareholderID.String(),
			MetaInvestmentType: string(req.InvestmentType),
		},
		ExpiresAt: expires,
	})

	if cerr != nil {
		log.Error().Err(cerr).Str("request_id", req.RequestID.String()).Msg("checkout session creation failed")
		reason := "Checkout session creation failed: " + cerr.Error()
		err := db.Transaction(func(tx *gorm.DB) error {
			return s.markFailed(ctx, tx, req, in.Actor, reason)
		})
		if err != nil {
			return nil, err
		}
		return Failed{Request: req, Reason: reason}, ledger.Wrap(ledger.KindPaymentProvider, "Failed to create payment session", cerr)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		before := *req
		req.Status = domain.IssuancePaymentProcessing
		req.StripeCheckoutSessionID = &session.SessionID
		if err := tx.Save(req).Error; err != nil {
			return err
		}
		_, err := s.recordRequest(ctx, tx, req, in.Actor, audit.ActionIssuanceProcessing, &before)
		return err
	})
	if err != nil {
		return nil, err
	}
	return PaymentRequired{Request: req, Session: session}, nil
}

// ReconcilePayment applies a payment event to the request named in its
// metadata. The request row is locked for the whole check-and-apply, so
// concurrent deliveries of the same event serialize and later ones no-op.
// Integrity failures mark the request FAILED and are not returned as errors.
func (s *Service) ReconcilePayment(ctx context.Context, ev payments.Event) (*ReconcileResult, error) {
	logger := log.With().Str("session_id", ev.SessionID).Str("event_id", ev.EventID).Logger()

	requestID, err := uuid.Parse(ev.Metadata[MetaRequestID])
	if err != nil {
		logger.Warn().Msg("payment event without a valid issuance request id")
		return &ReconcileResult{Action: ReconcileIgnored}, nil
	}

	result := &ReconcileResult{}
	var notice *pendingNotice
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req domain.ShareIssuanceRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("request_id = ?", requestID).First(&req).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn().Str("request_id", requestID.String()).Msg("payment event for unknown issuance request")
				result.Action = ReconcileIgnored
				return nil
			}
			return err
		}
		result.Request = &req

		if req.Settled() {
			result.Action = ReconcileDuplicate
			return nil
		}
		if reason := checkEvent(&req, ev); reason != "" {
			logger.Warn().Str("request_id", req.RequestID.String()).Str("reason", reason).Msg("payment event rejected")
			result.Action = ReconcileRejected
			result.Reason = reason
			return s.markFailed(ctx, tx, &req, WebhookActor, reason)
		}

		p, err := loadParties(tx, IssueInput{TenantID: req.TenantID, ShareholderID: req.ShareholderID, IssuerID: req.IssuerID, SecurityClassID: req.SecurityClassID})
		if err != nil {
			return err
		}
		applied, err := s.apply(ctx, tx, &req, p, domain.HoldingActive, WebhookActor, audit.ActionIssuanceCompleted)
		if err != nil {
			return err
		}
		result.Action = ReconcileCompleted
		result.HoldingID = applied.holding.HoldingID.String()
		notice = &pendingNotice{parties: p, additional: req.ShareQuantity, total: applied.holding.ShareQuantity}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notice != nil {
		s.notify(ctx, &notice.parties.shareholder, &notice.parties.issuer, notice.additional, notice.total)
	}
	return result, nil
}

type pendingNotice struct {
	parties    *parties
	additional decimal.Decimal
	total      decimal.Decimal
}

// checkEvent returns the failure reason for ev against the stored request, or "".
func checkEvent(req *domain.ShareIssuanceRequest, ev payments.Event) string {
	if req.StripeCheckoutSessionID == nil || *req.StripeCheckoutSessionID != ev.SessionID {
		return ReasonSessionMismatch
	}
	if ev.AmountTotal != req.AmountMinorUnits() {
		return ReasonAmountMismatch
	}
	if !ev.Paid() {
		return ReasonNotPaid
	}
	return ""
}

type applied struct {
	holding     *domain.Holding
	certificate *domain.Certificate
}

// apply adds req's shares to the shareholder's row with the given status,
// creating it when absent, mints a certificate for certificate-type
// issuances and completes req. HELD and ACTIVE rows are never merged here;
// only holdings.Service.Release moves HELD shares. It runs inside tx.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, req *domain.ShareIssuanceRequest, p *parties, status domain.HoldingStatus, actor, action string) (*applied, error) {
	now := s.now()
	pos := holdings.Position{ShareholderID: req.ShareholderID, IssuerID: req.IssuerID, SecurityClassID: req.SecurityClassID, Status: status}
	template := domain.Holding{
		TenantID:         req.TenantID,
		Status:           status,
		HoldingType:      req.HoldingType,
		AcquisitionDate:  now,
		AcquisitionPrice: decimal.NewNullDecimal(req.PricePerShare),
		IsRestricted:     req.IsRestricted,
	}
	if req.CostBasis.Valid {
		template.AcquisitionPrice = req.CostBasis
	}
	h, _, err := holdings.LockOrCreatePosition(tx, pos, template)
	if err != nil {
		return nil, err
	}
	before := *h

	h.ShareQuantity = h.ShareQuantity.Add(req.ShareQuantity)
	if req.IsRestricted {
		h.IsRestricted = true
	}
	if err := tx.Save(h).Error; err != nil {
		return nil, err
	}

	out := &applied{holding: h}
	if req.HoldingType == domain.HoldingTypeCertificate {
		cert, err := mintCertificate(tx, req, h, now)
		if err != nil {
			return nil, err
		}
		out.certificate = cert
	}

	req.Status = domain.IssuanceCompleted
	req.HoldingID = &h.HoldingID
	req.CompletedAt = &now
	if err := tx.Save(req).Error; err != nil {
		return nil, err
	}

	tenant := req.TenantID
	newValue := map[string]interface{}{
		"share_quantity": h.ShareQuantity.String(),
		"status":         h.Status,
		"request_id":     req.RequestID.String(),
		"issued":         req.ShareQuantity.String(),
		"request_status": req.Status,
	}
	if out.certificate != nil {
		newValue["certificate_number"] = out.certificate.CertificateNumber
	}
	_, err = s.Audit.Record(ctx, tx, audit.Entry{
		TenantID:   &tenant,
		Actor:      actor,
		ActionType: action,
		ModelName:  "Holding",
		ObjectID:   h.HoldingID.String(),
		ObjectRepr: fmt.Sprintf("%s: %s %s shares of %s", p.shareholder.FullName, req.ShareQuantity.String(), p.class.Name, p.issuer.Name),
		OldValue: map[string]interface{}{
			"share_quantity": before.ShareQuantity.String(),
			"status":         before.Status,
			"request_id":     req.RequestID.String(),
		},
		NewValue: newValue,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mintCertificate numbers certificates per issuer as <PREFIX>-<n>. The
// issuer row is locked so concurrent issuances cannot draw the same number.
func mintCertificate(tx *gorm.DB, req *domain.ShareIssuanceRequest, h *domain.Holding, now time.Time) (*domain.Certificate, error) {
	var issuer domain.Issuer
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("issuer_id = ?", req.IssuerID).First(&issuer).Error; err != nil {
		return nil, err
	}
	var n int64
	if err := tx.Model(&domain.Certificate{}).Where("issuer_id = ?", req.IssuerID).Count(&n).Error; err != nil {
		return nil, err
	}
	prefix := issuer.CertificatePrefix
	if prefix == "" {
		prefix = "CS"
	}
	holdingID := h.HoldingID
	cert := &domain.Certificate{
		TenantID:          req.TenantID,
		IssuerID:          req.IssuerID,
		CertificateNumber: fmt.Sprintf("%s-%d", prefix, n+1),
		ShareholderID:     req.ShareholderID,
		SecurityClassID:   req.SecurityClassID,
		HoldingID:         &holdingID,
		Shares:            req.ShareQuantity,
		Status:            domain.CertificateOutstanding,
		IssueDate:         now,
	}
	if err := tx.Create(cert).Error; err != nil {
		return nil, err
	}
	return cert, nil
}

// markFailed records reason on req and marks it FAILED inside tx.
func (s *Service) markFailed(ctx context.Context, tx *gorm.DB, req *domain.ShareIssuanceRequest, actor, reason string) error {
	before := *req
	req.Status = domain.IssuanceFailed
	req.Notes = reason
	if err := tx.Save(req).Error; err != nil {
		return err
	}
	_, err := s.recordRequest(ctx, tx, req, actor, audit.ActionIssuanceFailed, &before)
	return err
}

func (s *Service) recordRequest(ctx context.Context, tx *gorm.DB, req *domain.ShareIssuanceRequest, actor, action string, before *domain.ShareIssuanceRequest) (*domain.AuditLog, error) {
	tenant := req.TenantID
	var old interface{}
	if before != nil {
		old = requestSnapshot(before)
	}
	return s.Audit.Record(ctx, tx, audit.Entry{
		TenantID:   &tenant,
		Actor:      actor,
		ActionType: action,
		ModelName:  "ShareIssuanceRequest",
		ObjectID:   req.RequestID.String(),
		ObjectRepr: fmt.Sprintf("%s %s shares (%s)", req.InvestmentType, req.ShareQuantity.String(), req.Status),
		OldValue:   old,
		NewValue:   requestSnapshot(req),
	})
}

func requestSnapshot(r *domain.ShareIssuanceRequest) map[string]interface{} {
	snap := map[string]interface{}{
		"status":         r.Status,
		"share_quantity": r.ShareQuantity.String(),
		"total_amount":   r.TotalAmount.StringFixed(2),
		"notes":          r.Notes,
	}
	if r.StripeCheckoutSessionID != nil {
		snap["stripe_checkout_session_id"] = *r.StripeCheckoutSessionID
	}
	if r.HoldingID != nil {
		snap["holding_id"] = r.HoldingID.String()
	}
	return snap
}

// notify is best effort; the shares exist whatever the outcome.
func (s *Service) notify(ctx context.Context, holder *domain.Shareholder, issuer *domain.Issuer, additional, total decimal.Decimal) bool {
	if s.Notifier == nil || holder.Email == "" {
		return false
	}
	sent, err := s.Notifier.SendShareUpdateOrInvitation(ctx, holder, issuer, additional, total)
	if err != nil {
		log.Warn().Err(err).Str("shareholder_id", holder.ShareholderID.String()).Msg("issuance notification failed")
		return false
	}
	return sent
}

// GetRequest returns one issuance request of the tenant.
func (s *Service) GetRequest(ctx context.Context, tenantID, requestID uuid.UUID) (*domain.ShareIssuanceRequest, error) {
	var req domain.ShareIssuanceRequest
	err := s.DB.WithContext(ctx).Where("request_id = ? AND tenant_id = ?", requestID, tenantID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrIssuanceNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListExpired returns requests still awaiting payment after expires_at.
// Expiry is advisory: nothing here changes their status. A zero tenantID
// lists across tenants.
func (s *Service) ListExpired(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]domain.ShareIssuanceRequest, error) {
	q := s.DB.WithContext(ctx).
		Where("status IN ?", []domain.IssuanceStatus{domain.IssuancePendingPayment, domain.IssuancePaymentProcessing}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC())
	if tenantID != uuid.Nil {
		q = q.Where("tenant_id = ?", tenantID)
	}
	var out []domain.ShareIssuanceRequest
	if err := q.Order("expires_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
