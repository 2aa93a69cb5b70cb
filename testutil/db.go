// Package testutil provides the in-memory database used by persistence
// tests. Production runs on Postgres; tests use the pure-Go sqlite driver
// so they need no external service.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"itbudget/models"
)

// OpenDB returns a migrated in-memory database. The single-connection limit
// keeps every session on the same sqlite instance.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.BudgetPool{},
		&models.Category{},
		&models.Project{},
		&models.BudgetProposal{},
		&models.Vendor{},
		&models.Quote{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderItem{},
		&models.Expense{},
		&models.ExpenseItem{},
		&models.OpCo{},
		&models.ChargeOut{},
		&models.ChargeOutItem{},
		&models.OMExpense{},
		&models.OMExpenseItem{},
		&models.OMExpenseRecord{},
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.PermissionGrant{},
		&models.OpCoGrant{},
		&models.AuditRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
