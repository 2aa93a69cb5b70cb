package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpCo is an operating company that can be billed via charge-outs and
// OM expenses. Visibility of its records is scoped per user.
type OpCo struct {
	gorm.Model
	Name string `json:"name" gorm:"not null"`
	Code string `json:"code" gorm:"uniqueIndex;not null"`
}

// ChargeOut reallocates the cost of one or more eligible expenses to an
// operating company. Every item must reference an expense flagged
// RequiresChargeOut that is not already fully allocated elsewhere.
type ChargeOut struct {
	gorm.Model
	ProjectID uint            `json:"projectId" gorm:"not null;index"`
	Project   Project         `json:"-" gorm:"foreignKey:ProjectID"`
	OpCoID    uint            `json:"opCoId" gorm:"not null;index"`
	OpCo      OpCo            `json:"opCo" gorm:"foreignKey:OpCoID"`
	Status    string          `json:"status" gorm:"not null;default:'Draft';index"`
	Items     []ChargeOutItem `json:"items" gorm:"foreignKey:ChargeOutID"`
}

type ChargeOutItem struct {
	gorm.Model
	ChargeOutID uint            `json:"chargeOutId" gorm:"not null;index"`
	ExpenseID   uint            `json:"expenseId" gorm:"not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
}

// TotalAmount sums the allocated amounts across items.
func (co *ChargeOut) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range co.Items {
		total = total.Add(item.Amount)
	}
	return total
}
