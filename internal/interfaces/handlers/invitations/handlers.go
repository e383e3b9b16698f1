package invitations

import (
	"errors"

	"stocktransfer-backend/internal/application/notifications"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handlers serve the public side of shareholder invitations sent by the mailer.
type Handlers struct {
	DB     *gorm.DB
	Signer *notifications.InviteSigner
}

// CheckToken POST /api/v1/invitations/public/check-token. Lets the portal
// show who an invitation is for before the shareholder signs up.
func (h *Handlers) CheckToken(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil || body.Token == "" {
		return response.Error(c, "Token is required", fiber.StatusBadRequest, nil)
	}

	claims, err := h.Signer.Verify(body.Token)
	if err != nil {
		log.Debug().Err(err).Msg("invitation token rejected")
		return response.Error(c, "Invalid or expired invitation", fiber.StatusBadRequest, nil)
	}

	var holder domain.Shareholder
	err = h.DB.WithContext(c.UserContext()).
		Where("shareholder_id = ? AND tenant_id = ?", claims.ShareholderID, claims.TenantID).
		First(&holder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, "Invalid or expired invitation", fiber.StatusBadRequest, nil)
		}
		return response.LedgerError(c, err)
	}
	if holder.HasAccount() {
		return response.Error(c, "Invitation already accepted", fiber.StatusConflict, nil)
	}

	var issuer domain.Issuer
	issuerName := ""
	if err := h.DB.WithContext(c.UserContext()).Where("issuer_id = ? AND tenant_id = ?", claims.IssuerID, claims.TenantID).First(&issuer).Error; err == nil {
		issuerName = issuer.Name
	}

	return response.Success(c, "Invitation is valid", fiber.Map{
		"shareholder_id": holder.ShareholderID,
		"full_name":      holder.FullName,
		"email":          claims.Email,
		"issuer_name":    issuerName,
		"expires_at":     claims.ExpiresAt.Time,
	}, nil)
}
