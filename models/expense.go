package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense records a cost against a category, optionally under a purchase
// order. Draft is its only editable state; it never travels through the
// submit/approve cycle itself. When approved charge-outs fully allocate it,
// its status flips to ChargedOut.
type Expense struct {
	gorm.Model
	ProjectID         uint            `json:"projectId" gorm:"not null;index"`
	Project           Project         `json:"-" gorm:"foreignKey:ProjectID"`
	CategoryID        uint            `json:"categoryId" gorm:"not null;index"`
	Category          Category        `json:"-" gorm:"foreignKey:CategoryID"`
	PurchaseOrderID   *uint           `json:"purchaseOrderId"`
	Currency          string          `json:"currency" gorm:"type:varchar(3);not null"`
	TotalAmount       decimal.Decimal `json:"totalAmount" gorm:"type:numeric(14,2);not null"`
	Status            string          `json:"status" gorm:"not null;default:'Draft';index"`
	RequiresChargeOut bool            `json:"requiresChargeOut" gorm:"not null;default:false"`
	IsOperationMaint  bool            `json:"isOperationMaint" gorm:"not null;default:false"`
	ReceiptFileURL    string          `json:"receiptFileUrl"`
	Items             []ExpenseItem   `json:"items" gorm:"foreignKey:ExpenseID"`
}

type ExpenseItem struct {
	gorm.Model
	ExpenseID   uint            `json:"expenseId" gorm:"not null;index"`
	Description string          `json:"description" gorm:"not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	SortOrder   int             `json:"sortOrder" gorm:"not null;default:0"`
}

// ItemTotal sums the item amounts. TotalAmount on the header is kept equal
// to this sum by the handlers; the column exists so the ledger can aggregate
// without loading items.
func (e *Expense) ItemTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Amount)
	}
	return total
}
