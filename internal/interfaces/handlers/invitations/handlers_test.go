package invitations

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"stocktransfer-backend/internal/application/notifications"
	"stocktransfer-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvitations(t *testing.T) (*fiber.App, *notifications.InviteSigner, *testutil.Fixture) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	signer := &notifications.InviteSigner{Secret: []byte("invite-secret"), TTL: time.Hour}
	h := &Handlers{DB: db, Signer: signer}
	app := fiber.New()
	app.Post("/check-token", h.CheckToken)
	return app, signer, f
}

func postToken(t *testing.T, app *fiber.App, token string) (int, map[string]interface{}) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"token": token})
	req := httptest.NewRequest("POST", "/check-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return resp.StatusCode, out
}

func TestCheckToken_MissingToken(t *testing.T) {
	app, _, _ := setupInvitations(t)
	status, _ := postToken(t, app, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCheckToken_InvalidToken(t *testing.T) {
	app, _, _ := setupInvitations(t)
	status, out := postToken(t, app, "not-a-jwt")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired invitation", out["error"].(map[string]interface{})["message"])
}

func TestCheckToken_ValidInvitation(t *testing.T) {
	app, signer, f := setupInvitations(t)
	token, _, err := signer.Sign(notifications.InviteClaims{
		TenantID:      f.TenantID.String(),
		ShareholderID: f.Bob.ShareholderID.String(),
		IssuerID:      f.Issuer.IssuerID.String(),
		Email:         "bob@example.com",
	})
	require.NoError(t, err)

	status, out := postToken(t, app, token)
	require.Equal(t, fiber.StatusOK, status)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "Bob Investor", data["full_name"])
	assert.Equal(t, "Acme Robotics Inc.", data["issuer_name"])
	assert.Equal(t, "bob@example.com", data["email"])
}

func TestCheckToken_AccountHolderAlreadyAccepted(t *testing.T) {
	app, signer, f := setupInvitations(t)
	token, _, err := signer.Sign(notifications.InviteClaims{
		TenantID:      f.TenantID.String(),
		ShareholderID: f.Alice.ShareholderID.String(),
		IssuerID:      f.Issuer.IssuerID.String(),
		Email:         "alice@example.com",
	})
	require.NoError(t, err)

	status, _ := postToken(t, app, token)
	assert.Equal(t, fiber.StatusConflict, status)
}
