// Package testutil provides an in-memory ledger store and seed data for package tests.
package testutil

import (
	"testing"

	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite store with the audit guards installed.
// The pool is pinned to one connection so every query sees the same memory database;
// code under test must therefore never query outside an open transaction while it is held.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RegisterAuditGuards(db))
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixture is one tenant with an issuer, a security class and two shareholders.
type Fixture struct {
	TenantID      uuid.UUID
	Issuer        domain.Issuer
	Class         domain.SecurityClass
	Alice         domain.Shareholder // has a portal account
	Bob           domain.Shareholder // invitation only
	OtherIssuerID uuid.UUID
}

// Seed inserts a Fixture.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{TenantID: uuid.New()}
	f.Issuer = domain.Issuer{TenantID: f.TenantID, Name: "Acme Robotics Inc.", CertificatePrefix: "AR"}
	require.NoError(t, db.Create(&f.Issuer).Error)
	f.Class = domain.SecurityClass{IssuerID: f.Issuer.IssuerID, Name: "Common", ClassType: "COMMON"}
	require.NoError(t, db.Create(&f.Class).Error)

	other := domain.Issuer{TenantID: f.TenantID, Name: "Other Co.", CertificatePrefix: "OC"}
	require.NoError(t, db.Create(&other).Error)
	f.OtherIssuerID = other.IssuerID

	userID := uuid.New()
	f.Alice = domain.Shareholder{TenantID: f.TenantID, FullName: "Alice Founder", Email: "alice@example.com", UserID: &userID}
	require.NoError(t, db.Create(&f.Alice).Error)
	f.Bob = domain.Shareholder{TenantID: f.TenantID, FullName: "Bob Investor", Email: "bob@example.com"}
	require.NoError(t, db.Create(&f.Bob).Error)
	return f
}
