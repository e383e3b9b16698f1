package domain

import (
	"context"
	"sync/atomic"
	"time"

	"stocktransfer-backend/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogTable is the table name the store-level guards key on.
const AuditLogTable = "AuditLogs"

// AuditLog is an append-only record of a sensitive state change. Retained indefinitely.
type AuditLog struct {
	AuditLogID    uuid.UUID      `gorm:"column:audit_log_id;type:uuid;primaryKey" json:"audit_log_id"`
	TenantID      *uuid.UUID     `gorm:"column:tenant_id;type:uuid;index" json:"tenant_id"`
	Actor         string         `gorm:"column:actor;not null" json:"actor"`
	ActionType    string         `gorm:"column:action_type;type:varchar(40);not null" json:"action_type"`
	ModelName     string         `gorm:"column:model_name;type:varchar(60);not null;index:idx_audit_object,priority:1" json:"model_name"`
	ObjectID      string         `gorm:"column:object_id;not null;index:idx_audit_object,priority:2" json:"object_id"`
	ObjectRepr    string         `gorm:"column:object_repr" json:"object_repr"`
	OldValue      datatypes.JSON `gorm:"column:old_value;type:json" json:"old_value"`
	NewValue      datatypes.JSON `gorm:"column:new_value;type:json" json:"new_value"`
	ChangedFields datatypes.JSON `gorm:"column:changed_fields;type:json" json:"changed_fields"`
	IPAddress     string         `gorm:"column:ip_address" json:"ip_address"`
	UserAgent     string         `gorm:"column:user_agent" json:"user_agent"`
	RequestID     string         `gorm:"column:request_id" json:"request_id"`
	Timestamp     time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return AuditLogTable
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if !AuditRecordingActive(tx.Statement.Context) {
		return ledger.ErrAuditUnguarded
	}
	if a.AuditLogID == uuid.Nil {
		a.AuditLogID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ledger.ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ledger.ErrAuditImmutable
}

type auditGuardKey struct{}

type auditGuard struct {
	open atomic.Bool
}

// WithAuditRecording runs fn with a context that permits AuditLog inserts.
// The permission is revoked when fn returns or panics, so a context that
// escapes fn can no longer be used to write entries.
func WithAuditRecording(ctx context.Context, fn func(ctx context.Context) error) error {
	g := &auditGuard{}
	g.open.Store(true)
	defer g.open.Store(false)
	return fn(context.WithValue(ctx, auditGuardKey{}, g))
}

// AuditRecordingActive reports whether ctx is inside a live WithAuditRecording scope.
func AuditRecordingActive(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	g, ok := ctx.Value(auditGuardKey{}).(*auditGuard)
	return ok && g.open.Load()
}
