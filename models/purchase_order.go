package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder is a committed, itemized order against a vendor. Header and
// items are created together and become read-only once submitted.
type PurchaseOrder struct {
	gorm.Model
	ProjectID uint                `json:"projectId" gorm:"not null;index"`
	Project   Project             `json:"-" gorm:"foreignKey:ProjectID"`
	VendorID  uint                `json:"vendorId" gorm:"not null;index"`
	Vendor    Vendor              `json:"vendor" gorm:"foreignKey:VendorID"`
	QuoteID   *uint               `json:"quoteId"`
	Status    string              `json:"status" gorm:"not null;default:'Draft';index"`
	Items     []PurchaseOrderItem `json:"items" gorm:"foreignKey:PurchaseOrderID"`
}

type PurchaseOrderItem struct {
	gorm.Model
	PurchaseOrderID uint            `json:"purchaseOrderId" gorm:"not null;index"`
	ItemName        string          `json:"itemName" gorm:"not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	UnitPrice       decimal.Decimal `json:"unitPrice" gorm:"type:numeric(14,2);not null"`
	SortOrder       int             `json:"sortOrder" gorm:"not null;default:0"`
}

// TotalAmount is the live sum of quantity x unit price over all items.
func (po *PurchaseOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range po.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
