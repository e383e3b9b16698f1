package transfers

import (
	"context"

	transfersvc "stocktransfer-backend/internal/application/transfers"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/pkg/response"
	"stocktransfer-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *transfersvc.Service
}

type createBody struct {
	FromShareholderID       string          `json:"from_shareholder_id"`
	ToShareholderID         string          `json:"to_shareholder_id"`
	IssuerID                string          `json:"issuer_id"`
	SecurityClassID         string          `json:"security_class_id"`
	ShareQuantity           decimal.Decimal `json:"share_quantity"`
	TransferDate            string          `json:"transfer_date"`
	SurrenderedCertificates []string        `json:"surrendered_certificates"`
	Notes                   string          `json:"notes"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// Create POST /api/v1/transfers
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ids, err := validation.UUIDs(
		"from_shareholder_id", body.FromShareholderID,
		"to_shareholder_id", body.ToShareholderID,
		"issuer_id", body.IssuerID,
		"security_class_id", body.SecurityClassID,
	)
	if err != nil {
		return response.LedgerError(c, err)
	}
	date, err := validation.Date("transfer_date", body.TransferDate)
	if err != nil {
		return response.LedgerError(c, err)
	}
	certs, err := validation.CertificateNumbers(body.SurrenderedCertificates)
	if err != nil {
		return response.LedgerError(c, err)
	}

	user := middleware.GetUser(c)
	t, err := h.Service.Create(middleware.AuditContext(c), transfersvc.CreateInput{
		TenantID:                user.Tenant(),
		Actor:                   user.Actor(),
		FromShareholderID:       ids[0],
		ToShareholderID:         ids[1],
		IssuerID:                ids[2],
		SecurityClassID:         ids[3],
		ShareQuantity:           body.ShareQuantity,
		TransferDate:            date,
		SurrenderedCertificates: certs,
		Notes:                   body.Notes,
	})
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Transfer created", t, nil)
}

// Get GET /api/v1/transfers/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	t, err := h.Service.Get(c.UserContext(), middleware.GetUser(c).Tenant(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Transfer retrieved", t, nil)
}

// Approve POST /api/v1/transfers/:id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	return h.review(c, "Transfer approved", func(ctx context.Context, tenant, id uuid.UUID, actor, _ string) (*domain.Transfer, error) {
		return h.Service.Approve(ctx, tenant, id, actor)
	})
}

// Reject POST /api/v1/transfers/:id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	return h.review(c, "Transfer rejected", h.Service.Reject)
}

// Cancel POST /api/v1/transfers/:id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	return h.review(c, "Transfer cancelled", h.Service.Cancel)
}

type reviewFunc func(ctx context.Context, tenantID, transferID uuid.UUID, actor, reason string) (*domain.Transfer, error)

func (h *Handlers) review(c *fiber.Ctx, message string, fn reviewFunc) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	var body reasonBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	user := middleware.GetUser(c)
	t, err := fn(middleware.AuditContext(c), user.Tenant(), id, user.Actor(), body.Reason)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, message, t, nil)
}

// Execute POST /api/v1/transfers/:id/execute moves the shares.
func (h *Handlers) Execute(c *fiber.Ctx) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	user := middleware.GetUser(c)
	result, err := h.Service.Execute(middleware.AuditContext(c), user.Tenant(), id, user.Actor())
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Transfer executed", result, nil)
}
