package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Sessions are written by the identity service; the ledger only reads them.
const (
	SessionCookieName  = "ledger.sid"
	SessionHeader      = "X-Session-Id"
	SessionRedisPrefix = "session:"
	userLocal          = "user"
)

// SessionUser is the identity stored in the session under "user".
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// Tenant parses TenantID; uuid.Nil when absent or malformed.
func (u *SessionUser) Tenant() uuid.UUID {
	id, err := uuid.Parse(u.TenantID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Actor is the name written to audit entries for this user.
func (u *SessionUser) Actor() string {
	if u.Email != "" {
		return u.Email
	}
	return "user:" + u.UserID
}

// NewRedis parses url and returns a client.
func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Session resolves the caller's identity from the shared Redis session store.
// The session id comes from the ledger.sid cookie (connect-style "s:id.sig"
// values are accepted) or the X-Session-Id header used by operator tools.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		sessionID := sessionIDFrom(c)
		if sessionID == "" || rdb == nil {
			return c.Next()
		}

		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if err != redis.Nil {
				log.Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data struct {
			User *SessionUser `json:"user"`
		}
		if err := json.Unmarshal(b, &data); err != nil {
			log.Warn().Err(err).Msg("session payload is not valid JSON")
			return c.Next()
		}
		if data.User != nil {
			c.Locals(userLocal, data.User)
		}
		return c.Next()
	}
}

func sessionIDFrom(c *fiber.Ctx) string {
	sid := c.Cookies(SessionCookieName)
	if sid == "" {
		sid = c.Get(SessionHeader)
	}
	sid = strings.Replace(sid, "s%3A", "s:", 1)
	if strings.HasPrefix(sid, "s:") {
		sid = strings.SplitN(sid[2:], ".", 2)[0]
	}
	return strings.TrimSpace(sid)
}
