package holdings

import (
	holdingsvc "stocktransfer-backend/internal/application/holdings"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/pkg/response"
	"stocktransfer-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *holdingsvc.Service
}

// List GET /api/v1/holdings?shareholder_id= returns the tenant's holdings,
// optionally for one shareholder.
func (h *Handlers) List(c *fiber.Ctx) error {
	shareholderID, err := validation.OptionalUUID("shareholder_id", c.Query("shareholder_id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	list, err := h.Service.ViewHoldings(c.UserContext(), middleware.GetUser(c).Tenant(), shareholderID)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Holdings retrieved successfully", list, fiber.Map{"count": len(list)})
}

// Get GET /api/v1/holdings/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	holding, err := h.Service.Get(c.UserContext(), middleware.GetUser(c).Tenant(), id)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Holding retrieved successfully", holding, nil)
}

// Release POST /api/v1/holdings/:id/release activates a HELD holding.
func (h *Handlers) Release(c *fiber.Ctx) error {
	id, err := validation.UUID("id", c.Params("id"))
	if err != nil {
		return response.LedgerError(c, err)
	}
	user := middleware.GetUser(c)
	holding, err := h.Service.Release(middleware.AuditContext(c), user.Tenant(), id, user.Actor())
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Holding released", holding, nil)
}
