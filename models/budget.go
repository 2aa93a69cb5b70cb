package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetPool is the top-level annual budget container. All amounts under a
// pool are denominated in the pool's currency; there is no conversion.
type BudgetPool struct {
	gorm.Model
	FinancialYear int             `json:"financialYear" gorm:"not null;index"`
	TotalAmount   decimal.Decimal `json:"totalAmount" gorm:"type:numeric(14,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null"`
	Categories    []Category      `json:"categories,omitempty" gorm:"foreignKey:BudgetPoolID"`
}

// Category is a named slice of a pool's total with its own ceiling.
// Categories referenced by expenses are never hard-deleted; removal flips
// IsActive instead.
type Category struct {
	gorm.Model
	BudgetPoolID uint            `json:"budgetPoolId" gorm:"not null;index"`
	BudgetPool   BudgetPool      `json:"-" gorm:"foreignKey:BudgetPoolID"`
	Name         string          `json:"name" gorm:"not null"`
	Code         string          `json:"code" gorm:"not null"`
	TotalAmount  decimal.Decimal `json:"totalAmount" gorm:"type:numeric(14,2);not null"`
	SortOrder    int             `json:"sortOrder" gorm:"not null;default:0"`
	IsActive     bool            `json:"isActive" gorm:"not null;default:true"`
}
