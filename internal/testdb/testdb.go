// Package testdb opens throwaway in-memory databases for package tests.
package testdb

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"careportal/internal/models"
)

// Open returns an isolated in-memory database with the full schema migrated.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Account{}, &models.PermissionGrant{}, &models.Session{}, &models.AuditLog{},
		&models.JobPosting{}, &models.Hospital{}, &models.ContactInquiry{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}
