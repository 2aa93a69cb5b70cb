package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OMExpense tracks a recurring operations-and-maintenance expense with
// monthly actuals against a budgeted amount per line item.
type OMExpense struct {
	gorm.Model
	Category      string          `json:"category" gorm:"not null"`
	DefaultOpCoID uint            `json:"defaultOpCoId" gorm:"not null;index"`
	DefaultOpCo   OpCo            `json:"defaultOpCo" gorm:"foreignKey:DefaultOpCoID"`
	Items         []OMExpenseItem `json:"items" gorm:"foreignKey:OMExpenseID"`
}

type OMExpenseItem struct {
	gorm.Model
	OMExpenseID  uint              `json:"omExpenseId" gorm:"not null;index"`
	Name         string            `json:"name" gorm:"not null"`
	BudgetAmount decimal.Decimal   `json:"budgetAmount" gorm:"type:numeric(14,2);not null"`
	Records      []OMExpenseRecord `json:"records" gorm:"foreignKey:OMExpenseItemID"`
}

// OMExpenseRecord is one monthly actual. Each item carries twelve slots,
// Month 1..12.
type OMExpenseRecord struct {
	gorm.Model
	OMExpenseItemID uint            `json:"omExpenseItemId" gorm:"not null;uniqueIndex:idx_om_item_month"`
	Month           int             `json:"month" gorm:"not null;uniqueIndex:idx_om_item_month;check:month >= 1 AND month <= 12"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
}
