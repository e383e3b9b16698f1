package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"stocktransfer-backend/internal/config"
	"stocktransfer-backend/internal/constants"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	return &config.Config{
		Env:                 "test",
		DatabaseURL:         "sqlite:" + filepath.Join(t.TempDir(), "ledger.db"),
		AutoMigrate:         true,
		RedisURL:            "redis://" + mr.Addr(),
		StripeWebhookSecret: "whsec_router",
		Currency:            "usd",
		InviteSigningSecret: "invite-secret",
	}
}

func send(t *testing.T, app *fiber.App, method, path, sid string, body interface{}) *httptestResponse {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(middleware.SessionHeader, sid)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return &httptestResponse{Status: resp.StatusCode, Body: string(b)}
}

type httptestResponse struct {
	Status int
	Body   string
}

func TestCreateApp_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	app, db, rdb, err := CreateApp(newConfig(t, mr))
	require.NoError(t, err)
	require.NotNil(t, db)
	require.NotNil(t, rdb)
	t.Cleanup(func() {
		rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := testutil.Seed(t, db)
	session, _ := json.Marshal(map[string]interface{}{"user": middleware.SessionUser{
		UserID: "u-1", Email: "admin@acme.test", Role: constants.Admin, TenantID: f.TenantID.String(),
	}})
	require.NoError(t, rdb.Set(context.Background(), middleware.SessionRedisPrefix+"sid-admin", session, 0).Err())

	issue := map[string]interface{}{
		"shareholder_id":    f.Alice.ShareholderID.String(),
		"issuer_id":         f.Issuer.IssuerID.String(),
		"security_class_id": f.Class.SecurityClassID.String(),
		"share_quantity":    1000,
		"investment_type":   "FOUNDER_SHARES",
	}

	res := send(t, app, "POST", "/api/v1/issuances", "", issue)
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)

	res = send(t, app, "POST", "/api/v1/issuances", "sid-admin", issue)
	require.Equal(t, fiber.StatusCreated, res.Status, res.Body)

	res = send(t, app, "GET", "/api/v1/holdings?shareholder_id="+f.Alice.ShareholderID.String(), "sid-admin", nil)
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	assert.Contains(t, res.Body, `"share_quantity":"1000"`)
	assert.Contains(t, res.Body, `"status":"HELD"`)

	res = send(t, app, "GET", "/api/v1/audit-logs?model_name=Holding", "sid-admin", nil)
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	assert.Contains(t, res.Body, "ISSUE_SHARES")

	res = send(t, app, "POST", "/api/v1/issuances", "sid-admin", map[string]interface{}{
		"shareholder_id":    f.Alice.ShareholderID.String(),
		"issuer_id":         f.Issuer.IssuerID.String(),
		"security_class_id": f.Class.SecurityClassID.String(),
		"share_quantity":    10,
		"investment_type":   "RETAIL",
		"price_per_share":   "1.00",
	})
	assert.Equal(t, fiber.StatusBadRequest, res.Status)
	assert.Contains(t, res.Body, "payment_not_configured")

	res = send(t, app, "POST", "/api/v1/stripe/webhook", "", map[string]string{"type": "checkout.session.completed"})
	assert.Equal(t, fiber.StatusBadRequest, res.Status)

	res = send(t, app, "GET", "/health/json", "", nil)
	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, `"redis":{"status":"connected"`)
}

func TestCreateApp_WithoutDatabaseServesHealthOnly(t *testing.T) {
	app, db, rdb, err := CreateApp(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.Nil(t, rdb)

	res := send(t, app, "GET", "/health/json", "", nil)
	assert.Equal(t, fiber.StatusOK, res.Status)
	res = send(t, app, "POST", "/api/v1/issuances", "", map[string]string{})
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestCreateApp_CORSPerRouteGroup(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := newConfig(t, mr)
	cfg.FrontendURLEndsWith = []string{".acme-ledger.com"}
	app, db, rdb, err := CreateApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	call := func(method, path, origin string) (int, string) {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Origin", origin)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode, resp.Header.Get("Access-Control-Allow-Credentials")
	}

	status, creds := call("OPTIONS", "/api/v1/holdings", "https://portal.acme-ledger.com")
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Equal(t, "true", creds)

	status, creds = call("OPTIONS", "/api/v1/invitations/public/check-token", "https://portal.acme-ledger.com")
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Empty(t, creds)

	status, _ = call("GET", "/api/v1/holdings", "https://evil.test")
	assert.Equal(t, fiber.StatusForbidden, status)

	// The webhook is server-to-server; an Origin header does not change its answer.
	status, _ = call("POST", "/api/v1/stripe/webhook", "https://evil.test")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
