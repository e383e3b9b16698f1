package middleware

import (
	"stocktransfer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequireAuth ensures a session user with a tenant is present.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if user.Tenant() == uuid.Nil {
			return response.Error(c, "Session has no tenant", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetUser returns the session user, or nil when the request is anonymous.
func GetUser(c *fiber.Ctx) *SessionUser {
	u, _ := c.Locals(userLocal).(*SessionUser)
	return u
}

// SetUser installs user as the caller. Used by tests and trusted internal routes.
func SetUser(c *fiber.Ctx, user *SessionUser) {
	c.Locals(userLocal, user)
}
