package middleware

import (
	"strconv"
	"strings"
	"time"

	"stocktransfer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSPolicy describes which browser origins may call one group of routes.
// Requests without an Origin header (server-to-server, CLI, Stripe) are never
// subject to it.
type CORSPolicy struct {
	// OriginSuffixes are matched case-insensitively against the end of Origin.
	OriginSuffixes []string
	// AllowLocalhost admits http://localhost:* and http://127.0.0.1:* origins.
	AllowLocalhost bool
	// DevPassword admits any origin that sends it in the dev-password header.
	DevPassword      string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// PortalCORS is the policy for the authenticated ledger API: the session
// cookie travels, so credentials are allowed.
func PortalCORS(suffixes []string, devPassword string, localhost bool, maxAge time.Duration) CORSPolicy {
	return CORSPolicy{
		OriginSuffixes:   suffixes,
		AllowLocalhost:   localhost,
		DevPassword:      devPassword,
		AllowMethods:     []string{fiber.MethodGet, fiber.MethodPost},
		AllowHeaders:     []string{fiber.HeaderContentType, "dev-password", SessionHeader, traceIDHeader},
		AllowCredentials: true,
		MaxAge:           maxAge,
	}
}

// PublicCORS is the policy for unauthenticated portal calls such as the
// invitation token check. No cookie is needed, so credentials stay off.
func PublicCORS(suffixes []string, localhost bool, maxAge time.Duration) CORSPolicy {
	return CORSPolicy{
		OriginSuffixes: suffixes,
		AllowLocalhost: localhost,
		AllowMethods:   []string{fiber.MethodPost},
		AllowHeaders:   []string{fiber.HeaderContentType, traceIDHeader},
		MaxAge:         maxAge,
	}
}

func (p CORSPolicy) allows(c *fiber.Ctx, origin string) bool {
	lower := strings.ToLower(origin)
	if p.AllowLocalhost && (strings.HasPrefix(lower, "http://localhost:") || strings.HasPrefix(lower, "http://127.0.0.1:")) {
		return true
	}
	for _, s := range p.OriginSuffixes {
		if s != "" && strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return p.DevPassword != "" && c.Get("dev-password") == p.DevPassword
}

// CORS enforces p on the routes it is mounted on. Preflights from allowed
// origins are answered here with 204; everything else from a disallowed
// origin gets 403.
func CORS(p CORSPolicy) fiber.Handler {
	methods := strings.Join(append([]string{fiber.MethodOptions}, p.AllowMethods...), ", ")
	headers := strings.Join(p.AllowHeaders, ", ")
	maxAge := ""
	if p.MaxAge > 0 {
		maxAge = strconv.Itoa(int(p.MaxAge.Seconds()))
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		c.Vary(fiber.HeaderOrigin)
		if !p.allows(c, origin) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		if p.AllowCredentials {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}
		if c.Method() != fiber.MethodOptions {
			return c.Next()
		}
		c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, headers)
		if maxAge != "" {
			c.Set(fiber.HeaderAccessControlMaxAge, maxAge)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
