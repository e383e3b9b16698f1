package holdings

import (
	"context"
	"errors"
	"testing"

	"stocktransfer-backend/internal/application/audit"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"
	"stocktransfer-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedHolding(t *testing.T, db *gorm.DB, f *testutil.Fixture, holder domain.Shareholder, qty int64, status domain.HoldingStatus) domain.Holding {
	t.Helper()
	h := domain.Holding{
		TenantID:        f.TenantID,
		ShareholderID:   holder.ShareholderID,
		IssuerID:        f.Issuer.IssuerID,
		SecurityClassID: f.Class.SecurityClassID,
		ShareQuantity:   decimal.NewFromInt(qty),
		Status:          status,
		HoldingType:     domain.HoldingTypeDRS,
	}
	require.NoError(t, db.Create(&h).Error)
	return h
}

func TestLockOrCreatePosition_CreatesOnceThenLocksExisting(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	p := Position{ShareholderID: f.Bob.ShareholderID, IssuerID: f.Issuer.IssuerID, SecurityClassID: f.Class.SecurityClassID, Status: domain.HoldingActive}
	template := domain.Holding{TenantID: f.TenantID, Status: domain.HoldingActive, HoldingType: domain.HoldingTypeDRS}

	var firstID uuid.UUID
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		h, created, err := LockOrCreatePosition(tx, p, template)
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, h.ShareQuantity.IsZero())
		firstID = h.HoldingID
		return nil
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		h, created, err := LockOrCreatePosition(tx, p, template)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, firstID, h.HoldingID)
		return nil
	}))

	var count int64
	require.NoError(t, db.Model(&domain.Holding{}).Where("shareholder_id = ?", f.Bob.ShareholderID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLockPosition_NotFound(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := LockPosition(tx, Position{ShareholderID: f.Alice.ShareholderID, IssuerID: f.Issuer.IssuerID, SecurityClassID: f.Class.SecurityClassID, Status: domain.HoldingActive})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrHoldingNotFound)
}

func TestRelease_HeldBecomesActiveAndIsAudited(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	held := seedHolding(t, db, f, f.Alice, 1000, domain.HoldingHeld)
	notifier := &testutil.Notifier{}
	rec := &audit.Recorder{DB: db}
	svc := &Service{DB: db, Audit: rec, Notifier: notifier}

	h, err := svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldingActive, h.Status)

	var stored domain.Holding
	require.NoError(t, db.First(&stored, "holding_id = ?", held.HoldingID).Error)
	assert.Equal(t, domain.HoldingActive, stored.Status)

	logs, err := rec.List(context.Background(), audit.Filter{ObjectID: held.HoldingID.String()})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionHoldingReleased, logs[0].ActionType)
	assert.Equal(t, "ops@acme.test", logs[0].Actor)

	require.Equal(t, 1, notifier.Count())
	assert.Equal(t, "1000", notifier.Calls[0].Total.String())
}

func TestRelease_MergesIntoExistingActivePosition(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	active := seedHolding(t, db, f, f.Alice, 10, domain.HoldingActive)
	held := seedHolding(t, db, f, f.Alice, 1000, domain.HoldingHeld)
	notifier := &testutil.Notifier{}
	rec := &audit.Recorder{DB: db}
	svc := &Service{DB: db, Audit: rec, Notifier: notifier}

	h, err := svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, active.HoldingID, h.HoldingID)
	assert.Equal(t, domain.HoldingActive, h.Status)
	assert.Equal(t, "1010", h.ShareQuantity.String())

	var emptied domain.Holding
	require.NoError(t, db.First(&emptied, "holding_id = ?", held.HoldingID).Error)
	assert.Equal(t, domain.HoldingHeld, emptied.Status)
	assert.True(t, emptied.ShareQuantity.IsZero())

	for _, id := range []uuid.UUID{held.HoldingID, active.HoldingID} {
		logs, err := rec.List(context.Background(), audit.Filter{ObjectID: id.String()})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, audit.ActionHoldingReleased, logs[0].ActionType)
	}

	require.Len(t, notifier.Calls, 1)
	assert.Equal(t, "1000", notifier.Calls[0].Additional.String())
	assert.Equal(t, "1010", notifier.Calls[0].Total.String())

	_, err = svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops")
	assert.ErrorIs(t, err, ledger.ErrNothingToRelease)
}

func TestRelease_AfterHeldRowWasEmptied(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	seedHolding(t, db, f, f.Alice, 10, domain.HoldingActive)
	held := seedHolding(t, db, f, f.Alice, 5, domain.HoldingHeld)
	svc := &Service{DB: db, Audit: &audit.Recorder{DB: db}}

	_, err := svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops")
	require.NoError(t, err)

	require.NoError(t, db.Model(&domain.Holding{}).Where("holding_id = ?", held.HoldingID).
		Update("share_quantity", decimal.NewFromInt(7)).Error)
	h, err := svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops")
	require.NoError(t, err)
	assert.Equal(t, "22", h.ShareQuantity.String())
}

func TestRelease_RejectsActiveHolding(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	active := seedHolding(t, db, f, f.Alice, 10, domain.HoldingActive)
	svc := &Service{DB: db, Audit: &audit.Recorder{DB: db}}

	_, err := svc.Release(context.Background(), f.TenantID, active.HoldingID, "ops")
	assert.ErrorIs(t, err, ledger.ErrHoldingNotHeld)
	assert.Equal(t, ledger.KindConflict, ledger.KindOf(err))
}

func TestRelease_OtherTenantCannotSeeHolding(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	held := seedHolding(t, db, f, f.Alice, 10, domain.HoldingHeld)
	svc := &Service{DB: db, Audit: &audit.Recorder{DB: db}}

	_, err := svc.Release(context.Background(), uuid.New(), held.HoldingID, "ops")
	assert.ErrorIs(t, err, ledger.ErrHoldingNotFound)
}

func TestRelease_NotificationFailureKeepsRelease(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	held := seedHolding(t, db, f, f.Bob, 5, domain.HoldingHeld)
	svc := &Service{DB: db, Audit: &audit.Recorder{DB: db}, Notifier: &testutil.Notifier{Err: errors.New("smtp down")}}

	h, err := svc.Release(context.Background(), f.TenantID, held.HoldingID, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldingActive, h.Status)
}

func TestViewHoldings_FiltersByShareholder(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	seedHolding(t, db, f, f.Alice, 10, domain.HoldingActive)
	seedHolding(t, db, f, f.Bob, 20, domain.HoldingActive)
	svc := &Service{DB: db}

	all, err := svc.ViewHoldings(context.Background(), f.TenantID, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bobs, err := svc.ViewHoldings(context.Background(), f.TenantID, f.Bob.ShareholderID)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "20", bobs[0].ShareQuantity.String())

	_, err = svc.ViewHoldings(context.Background(), uuid.Nil, uuid.Nil)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}
