package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vendor is a counterparty purchase orders are placed against.
type Vendor struct {
	gorm.Model
	Name string `json:"name" gorm:"not null"`
	Bin  string `json:"bin"`
}

// Quote is a vendor quotation attached to a project. Only the stored file
// path is kept here; the upload itself is handled by the blob collaborator.
type Quote struct {
	gorm.Model
	VendorID  uint            `json:"vendorId" gorm:"not null;index"`
	Vendor    Vendor          `json:"-" gorm:"foreignKey:VendorID"`
	ProjectID uint            `json:"projectId" gorm:"not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	FileURL   string          `json:"fileUrl"`
}
