package config

import (
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"itbudget/models"
)

var DB *gorm.DB

func ConnectDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		slog.Error("DB_URL environment variable is not set")
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	DB = db
	slog.Info("connected to database")
}

// MigrateDB keeps the schema in sync on startup.
func MigrateDB() {
	err := DB.AutoMigrate(
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
	)
	if err != nil {
		slog.Error("database migration failed", "error", err)
		os.Exit(1)
	}
}
