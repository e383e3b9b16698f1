package database

import (
	"strings"

	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/ledger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN and installs the audit guards.
// A "sqlite:" prefix selects the embedded SQLite driver (local development);
// anything else is treated as a Postgres URL. PreferSimpleProtocol avoids 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	if err := RegisterAuditGuards(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every table owned by the ledger.
func Models() []interface{} {
	return []interface{}{
		&domain.Issuer{}, &domain.SecurityClass{}, &domain.Shareholder{},
		&domain.Holding{}, &domain.Certificate{}, &domain.Transfer{},
		&domain.ShareIssuanceRequest{}, &domain.AuditLog{},
	}
}

// AutoMigrate creates the ledger tables, then the dialect-specific hardening:
// a non-negative quantity check, the AuditRecordingScopes table and triggers
// that make AuditLogs append-only and recorder-only even for raw SQL.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	var stmts []string
	switch db.Dialector.Name() {
	case "postgres":
		stmts = postgresHardening
	case "sqlite":
		stmts = sqliteHardening
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

var postgresHardening = []string{
	`DROP INDEX IF EXISTS idx_holding_position`,
	`ALTER TABLE "Holdings" DROP CONSTRAINT IF EXISTS holdings_share_quantity_non_negative`,
	`ALTER TABLE "Holdings" ADD CONSTRAINT holdings_share_quantity_non_negative CHECK (share_quantity >= 0)`,
	`CREATE OR REPLACE FUNCTION audit_logs_immutable() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'audit log entries are immutable';
END;
$$ LANGUAGE plpgsql`,
	`CREATE TABLE IF NOT EXISTS "AuditRecordingScopes" (scope_id uuid PRIMARY KEY)`,
	`CREATE OR REPLACE FUNCTION audit_logs_guarded_insert() RETURNS trigger AS $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM "AuditRecordingScopes") THEN
		RAISE EXCEPTION 'audit log entries can only be created by the audit recorder';
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS audit_logs_guarded_insert ON "AuditLogs"`,
	`CREATE TRIGGER audit_logs_guarded_insert BEFORE INSERT ON "AuditLogs" FOR EACH ROW EXECUTE FUNCTION audit_logs_guarded_insert()`,
	`DROP TRIGGER IF EXISTS audit_logs_immutable ON "AuditLogs"`,
	`CREATE TRIGGER audit_logs_immutable BEFORE UPDATE OR DELETE ON "AuditLogs" FOR EACH ROW EXECUTE FUNCTION audit_logs_immutable()`,
}

var sqliteHardening = []string{
	`CREATE TRIGGER IF NOT EXISTS holdings_share_quantity_insert BEFORE INSERT ON "Holdings"
WHEN NEW.share_quantity < 0 BEGIN SELECT RAISE(ABORT, 'share_quantity must not be negative'); END`,
	`CREATE TRIGGER IF NOT EXISTS holdings_share_quantity_update BEFORE UPDATE ON "Holdings"
WHEN NEW.share_quantity < 0 BEGIN SELECT RAISE(ABORT, 'share_quantity must not be negative'); END`,
	`CREATE TABLE IF NOT EXISTS "AuditRecordingScopes" (scope_id TEXT PRIMARY KEY)`,
	`CREATE TRIGGER IF NOT EXISTS audit_logs_guarded_insert BEFORE INSERT ON "AuditLogs"
WHEN NOT EXISTS (SELECT 1 FROM "AuditRecordingScopes")
BEGIN SELECT RAISE(ABORT, 'audit log entries can only be created by the audit recorder'); END`,
	`CREATE TRIGGER IF NOT EXISTS audit_logs_no_update BEFORE UPDATE ON "AuditLogs"
BEGIN SELECT RAISE(ABORT, 'audit log entries are immutable'); END`,
	`CREATE TRIGGER IF NOT EXISTS audit_logs_no_delete BEFORE DELETE ON "AuditLogs"
BEGIN SELECT RAISE(ABORT, 'audit log entries are immutable'); END`,
}

const auditScopeKey = "ledger:audit_scope"

// RegisterAuditGuards rejects, at the ORM layer, every update or delete that
// targets AuditLogs and every insert made outside domain.WithAuditRecording.
// Unlike the model hooks these also catch db.Table("AuditLogs") and map writes.
//
// A guarded insert also writes a row to AuditRecordingScopes in the same
// transaction and removes it right after. The BEFORE INSERT trigger installed
// by AutoMigrate refuses any AuditLogs insert that cannot see such a row, so
// raw SQL outside the recorder fails as well. Other transactions never see
// the row because it is not committed.
func RegisterAuditGuards(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("ledger:audit_create_guard", func(tx *gorm.DB) {
		if tx.Statement.Table == domain.AuditLogTable && !domain.AuditRecordingActive(tx.Statement.Context) {
			_ = tx.AddError(ledger.ErrAuditUnguarded)
		}
	}); err != nil {
		return err
	}
	if err := db.Callback().Create().After("ledger:audit_create_guard").Before("gorm:create").Register("ledger:audit_scope_open", func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != domain.AuditLogTable {
			return
		}
		scope := uuid.NewString()
		if err := scopeConn(tx).Exec(`INSERT INTO "AuditRecordingScopes" (scope_id) VALUES (?)`, scope).Error; err != nil {
			_ = tx.AddError(err)
			return
		}
		tx.InstanceSet(auditScopeKey, scope)
	}); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("ledger:audit_scope_close", func(tx *gorm.DB) {
		scope, ok := tx.InstanceGet(auditScopeKey)
		if !ok {
			return
		}
		if err := scopeConn(tx).Exec(`DELETE FROM "AuditRecordingScopes" WHERE scope_id = ?`, scope).Error; err != nil {
			_ = tx.AddError(err)
		}
	}); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("ledger:audit_update_guard", func(tx *gorm.DB) {
		if tx.Statement.Table == domain.AuditLogTable {
			_ = tx.AddError(ledger.ErrAuditImmutable)
		}
	}); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("ledger:audit_delete_guard", func(tx *gorm.DB) {
		if tx.Statement.Table == domain.AuditLogTable {
			_ = tx.AddError(ledger.ErrAuditImmutable)
		}
	})
}

// scopeConn runs statements on the connection or transaction of the create in progress.
// A failed create must still remove its scope row, so the session starts without tx's error.
func scopeConn(tx *gorm.DB) *gorm.DB {
	conn := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true, Context: tx.Statement.Context})
	conn.Error = nil
	return conn
}
