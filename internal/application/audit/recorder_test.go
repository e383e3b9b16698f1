package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRecord_WritesEntryWithDiff(t *testing.T) {
	db := testutil.NewDB(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Recorder{DB: db, Now: func() time.Time { return fixed }}
	tenant := uuid.New()
	objectID := uuid.NewString()

	ctx := WithRequestContext(context.Background(), RequestContext{IPAddress: "10.0.0.1", UserAgent: "curl", RequestID: "trace-1"})
	var entry *domain.AuditLog
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = r.Record(ctx, tx, Entry{
			TenantID:   &tenant,
			Actor:      "ops@issuer.test",
			ActionType: ActionHoldingReleased,
			ModelName:  "Holding",
			ObjectID:   objectID,
			ObjectRepr: "Holding 1000 Common",
			OldValue:   map[string]interface{}{"status": "HELD", "share_quantity": "1000"},
			NewValue:   map[string]interface{}{"status": "ACTIVE", "share_quantity": "1000"},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, entry.Timestamp)

	logs, err := r.List(context.Background(), Filter{TenantID: tenant, ObjectID: objectID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.Equal(t, "trace-1", logs[0].RequestID)

	var changed []string
	require.NoError(t, json.Unmarshal(logs[0].ChangedFields, &changed))
	assert.Equal(t, []string{"status"}, changed)
}

func TestRecord_RolledBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	r := &Recorder{DB: db}

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := r.Record(context.Background(), tx, Entry{Actor: "a", ActionType: "X", ModelName: "Transfer", ObjectID: "1"}); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	logs, err := r.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDiffFields_ReportsAddedAndRemovedKeys(t *testing.T) {
	got := diffFields([]byte(`{"a":1,"b":2}`), []byte(`{"a":1,"c":3}`))
	assert.Equal(t, []string{"b", "c"}, got)
}
