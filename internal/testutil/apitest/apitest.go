// Package apitest drives fiber handlers in tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// AsUser installs a session user of the fixture's tenant with role.
func AsUser(f *testutil.Fixture, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetUser(c, &middleware.SessionUser{
			UserID:   uuid.NewString(),
			Email:    role + "@acme.test",
			Role:     role,
			TenantID: f.TenantID.String(),
		})
		return c.Next()
	}
}

// Body is a decoded response envelope.
type Body struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Error   map[string]interface{} `json:"error"`
}

// DataMap decodes Data as an object.
func (b Body) DataMap(t *testing.T) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Data, &m))
	return m
}

// DoJSON sends body (nil for none) and decodes the response envelope.
func DoJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, Body) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out Body
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}
