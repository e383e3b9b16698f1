package auditlogs

import (
	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Recorder *audit.Recorder
}

// List GET /api/v1/audit-logs?model_name=&object_id=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	logs, err := h.Recorder.List(c.UserContext(), audit.Filter{
		TenantID:  middleware.GetUser(c).Tenant(),
		ModelName: c.Query("model_name", c.Query("model")),
		ObjectID:  c.Query("object_id"),
		Limit:     c.QueryInt("limit", 100),
	})
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Audit log retrieved", logs, fiber.Map{"count": len(logs)})
}
