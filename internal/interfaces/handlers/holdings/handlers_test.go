package holdings

import (
	"testing"

	"stocktransfer-backend/internal/application/audit"
	holdingsvc "stocktransfer-backend/internal/application/holdings"
	"stocktransfer-backend/internal/constants"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/middleware"
	"stocktransfer-backend/internal/testutil"
	"stocktransfer-backend/internal/testutil/apitest"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldings(t *testing.T, role string) (*fiber.App, *gorm.DB, *testutil.Fixture, *testutil.Notifier) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	notifier := &testutil.Notifier{}
	h := &Handlers{Service: &holdingsvc.Service{DB: db, Audit: &audit.Recorder{DB: db}, Notifier: notifier}}

	app := fiber.New()
	app.Use(apitest.AsUser(f, role))
	app.Get("/holdings", h.List)
	app.Get("/holdings/:id", h.Get)
	app.Post("/holdings/:id/release", middleware.AuthorizePermission(constants.ReleaseHoldings), h.Release)
	return app, db, f, notifier
}

func seed(t *testing.T, db *gorm.DB, f *testutil.Fixture, holder domain.Shareholder, status domain.HoldingStatus) domain.Holding {
	h := domain.Holding{
		TenantID:        f.TenantID,
		ShareholderID:   holder.ShareholderID,
		IssuerID:        f.Issuer.IssuerID,
		SecurityClassID: f.Class.SecurityClassID,
		ShareQuantity:   decimal.NewFromInt(250),
		Status:          status,
		HoldingType:     domain.HoldingTypeDRS,
	}
	require.NoError(t, db.Create(&h).Error)
	return h
}

func TestList_FiltersByShareholder(t *testing.T) {
	app, db, f, _ := setupHoldings(t, constants.Viewer)
	seed(t, db, f, f.Alice, domain.HoldingActive)
	seed(t, db, f, f.Bob, domain.HoldingHeld)

	status, body := apitest.DoJSON(t, app, "GET", "/holdings", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body.Data), f.Alice.ShareholderID.String())
	assert.Contains(t, string(body.Data), f.Bob.ShareholderID.String())

	status, body = apitest.DoJSON(t, app, "GET", "/holdings?shareholder_id="+f.Bob.ShareholderID.String(), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, string(body.Data), f.Alice.ShareholderID.String())

	status, _ = apitest.DoJSON(t, app, "GET", "/holdings?shareholder_id=bad", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRelease_ActivatesAndNotifies(t *testing.T) {
	app, db, f, notifier := setupHoldings(t, constants.Admin)
	held := seed(t, db, f, f.Bob, domain.HoldingHeld)

	status, body := apitest.DoJSON(t, app, "POST", "/holdings/"+held.HoldingID.String()+"/release", nil)
	require.Equal(t, fiber.StatusOK, status, body.Error)
	assert.Equal(t, "ACTIVE", body.DataMap(t)["status"])
	assert.Equal(t, 1, notifier.Count())

	status, body = apitest.DoJSON(t, app, "POST", "/holdings/"+held.HoldingID.String()+"/release", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Holding is not in HELD status", body.Error["message"])
}

func TestRelease_RequiresAdmin(t *testing.T) {
	app, db, f, _ := setupHoldings(t, constants.Manager)
	held := seed(t, db, f, f.Bob, domain.HoldingHeld)

	status, _ := apitest.DoJSON(t, app, "POST", "/holdings/"+held.HoldingID.String()+"/release", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestGet_NotFound(t *testing.T) {
	app, _, _, _ := setupHoldings(t, constants.Viewer)
	status, body := apitest.DoJSON(t, app, "GET", "/holdings/"+uuid.NewString(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Holding not found", body.Error["message"])
}
