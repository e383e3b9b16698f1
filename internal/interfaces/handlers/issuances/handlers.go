package issuances

import (
	"errors"
	"time"

	issuancesvc "stocktransfer-backend/internal/application/issuance"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/pkg/response"
	"stocktransfer-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *issuancesvc.Service
}

type issueBody struct {
	ShareholderID   string              `json:"shareholder_id"`
	IssuerID        string              `json:"issuer_id"`
	SecurityClassID string              `json:"security_class_id"`
	ShareQuantity   decimal.Decimal     `json:"share_quantity"`
	InvestmentType  string              `json:"investment_type"`
	PricePerShare   decimal.Decimal     `json:"price_per_share"`
	HoldingType     string              `json:"holding_type"`
	IsRestricted    bool                `json:"is_restricted"`
	CostBasis       decimal.NullDecimal `json:"cost_basis"`
	NotifyByEmail   bool                `json:"notify_by_email"`
	Notes           string              `json:"notes"`
}

// Issue POST /api/v1/issuances. 201 when shares exist, 202 with a checkout
// URL when the investor still has to pay.
func (h *Handlers) Issue(c *fiber.Ctx) error {
	var body issueBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ids, err := validation.UUIDs(
		"shareholder_id", body.ShareholderID,
		"issuer_id", body.IssuerID,
		"security_class_id", body.SecurityClassID,
	)
	if err != nil {
		return response.LedgerError(c, err)
	}

	user := middleware.GetUser(c)
	outcome, err := h.Service.IssueShares(middleware.AuditContext(c), issuancesvc.IssueInput{
		TenantID:        user.Tenant(),
		Actor:           user.Actor(),
		ShareholderID:   ids[0],
		IssuerID:        ids[1],
		SecurityClassID: ids[2],
		ShareQuantity:   body.ShareQuantity,
		InvestmentType:  domain.InvestmentType(body.InvestmentType),
		PricePerShare:   body.PricePerShare,
		HoldingType:     domain.HoldingType(body.HoldingType),
		IsRestricted:    body.IsRestricted,
		CostBasis:       body.CostBasis,
		NotifyByEmail:   body.NotifyByEmail,
		Notes:           body.Notes,
	})
	if failed, ok := outcome.(issuancesvc.Failed); ok {
		// The request was recorded as FAILED, so the caller gets its id along with the provider error.
		kind := ledger.KindOf(err)
		log.Error().Err(err).Str("request_id", failed.Request.RequestID.String()).Msg("issuance failed")
		return response.Error(c, failedMessage(err), response.StatusFor(kind), fiber.Map{
			"kind":       kind,
			"request_id": failed.Request.RequestID,
		})
	}
	if err != nil {
		return response.LedgerError(c, err)
	}

	switch o := outcome.(type) {
	case issuancesvc.Completed:
		return response.SuccessCreated(c, "Shares issued successfully", fiber.Map{
			"request":     o.Request,
			"holding":     o.Holding,
			"certificate": o.Certificate,
			"notified":    o.Notified,
		}, nil)
	case issuancesvc.PaymentRequired:
		return response.Accepted(c, "Payment required to complete issuance", fiber.Map{
			"request":      o.Request,
			"session_id":   o.Session.SessionID,
			"checkout_url": o.Session.CheckoutURL,
		}, nil)
	}
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

func failedMessage(err error) string {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le.Message
	}
	return "Issuance failed"
}

// Get GET /api/v1/issuances/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	req, err := h.Service.GetRequest(c.UserContext(), middleware.GetUser(c).Tenant(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Issuance request retrieved", req, nil)
}

// Expired GET /api/v1/issuances/expired lists unpaid requests past their deadline.
func (h *Handlers) Expired(c *fiber.Ctx) error {
	reqs, err := h.Service.ListExpired(c.UserContext(), middleware.GetUser(c).Tenant(), time.Now())
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Expired issuance requests", reqs, fiber.Map{"count": len(reqs)})
}
