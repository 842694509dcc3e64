// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"longform/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// NewTestDB opens a private in-memory SQLite database with the schema migrated. The
// connection pool is pinned to one connection so every query sees the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:longform_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	cfg := database.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
