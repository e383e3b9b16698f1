package audit

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"stocktransfer-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action types written by the ledger.
const (
	ActionIssueShares        = "ISSUE_SHARES"
	ActionIssuancePayment    = "ISSUANCE_PAYMENT_REQUESTED"
	ActionIssuanceProcessing = "ISSUANCE_PAYMENT_PROCESSING"
	ActionIssuanceCompleted  = "ISSUANCE_COMPLETED"
	ActionIssuanceFailed     = "ISSUANCE_FAILED"
	ActionHoldingReleased    = "HOLDING_RELEASED"
	ActionTransferCreated    = "TRANSFER_CREATED"
	ActionTransferApproved   = "TRANSFER_APPROVED"
	ActionTransferRejected   = "TRANSFER_REJECTED"
	ActionTransferCancelled  = "TRANSFER_CANCELLED"
	ActionTransferExecuted   = "TRANSFER_EXECUTED"
)

// RequestContext is the transport metadata stored with each entry.
type RequestContext struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx so Record can pick it up.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the metadata attached by WithRequestContext.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}

// Entry describes one state change. OldValue and NewValue are any JSON-encodable values.
type Entry struct {
	TenantID      *uuid.UUID
	Actor         string
	ActionType    string
	ModelName     string
	ObjectID      string
	ObjectRepr    string
	OldValue      interface{}
	NewValue      interface{}
	ChangedFields []string
	Request       *RequestContext
}

// Recorder is the only writer of AuditLog rows.
type Recorder struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Record inserts one entry through tx, inside the caller's transaction, so the
// entry commits or rolls back with the change it describes.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, e Entry) (*domain.AuditLog, error) {
	oldJSON, err := encode(e.OldValue)
	if err != nil {
		return nil, err
	}
	newJSON, err := encode(e.NewValue)
	if err != nil {
		return nil, err
	}
	changed := e.ChangedFields
	if changed == nil {
		changed = diffFields(oldJSON, newJSON)
	}
	changedJSON, err := json.Marshal(changed)
	if err != nil {
		return nil, err
	}
	rc := RequestContextFrom(ctx)
	if e.Request != nil {
		rc = *e.Request
	}

	entry := &domain.AuditLog{
		TenantID:      e.TenantID,
		Actor:         e.Actor,
		ActionType:    e.ActionType,
		ModelName:     e.ModelName,
		ObjectID:      e.ObjectID,
		ObjectRepr:    e.ObjectRepr,
		OldValue:      oldJSON,
		NewValue:      newJSON,
		ChangedFields: datatypes.JSON(changedJSON),
		IPAddress:     rc.IPAddress,
		UserAgent:     rc.UserAgent,
		RequestID:     rc.RequestID,
		Timestamp:     r.now(),
	}
	err = domain.WithAuditRecording(ctx, func(ctx context.Context) error {
		return tx.WithContext(ctx).Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	TenantID  uuid.UUID
	ModelName string
	ObjectID  string
	Limit     int
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]domain.AuditLog, error) {
	q := r.DB.WithContext(ctx).Model(&domain.AuditLog{})
	if f.TenantID != uuid.Nil {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if f.ModelName != "" {
		q = q.Where("model_name = ?", f.ModelName)
	}
	if f.ObjectID != "" {
		q = q.Where("object_id = ?", f.ObjectID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []domain.AuditLog
	if err := q.Order("timestamp DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func encode(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("null"), nil
	}
	if raw, ok := v.(datatypes.JSON); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// diffFields lists top-level keys whose values differ between two JSON objects.
func diffFields(oldJSON, newJSON datatypes.JSON) []string {
	var before, after map[string]interface{}
	_ = json.Unmarshal(oldJSON, &before)
	_ = json.Unmarshal(newJSON, &after)
	fields := []string{}
	seen := map[string]bool{}
	for k, v := range after {
		seen[k] = true
		if !reflect.DeepEqual(before[k], v) {
			fields = append(fields, k)
		}
	}
	for k := range before {
		if !seen[k] {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}
