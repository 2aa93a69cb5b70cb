package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project draws its funding from exactly one budget pool. The currency is
// fixed at creation and must equal the pool's currency.
type Project struct {
	gorm.Model
	BudgetPoolID    uint             `json:"budgetPoolId" gorm:"not null;index"`
	BudgetPool      BudgetPool       `json:"-" gorm:"foreignKey:BudgetPoolID"`
	Name            string           `json:"name" gorm:"not null"`
	ManagerID       uint             `json:"managerId" gorm:"not null"`
	SupervisorID    uint             `json:"supervisorId" gorm:"not null"`
	RequestedBudget decimal.Decimal  `json:"requestedBudget" gorm:"type:numeric(14,2);not null"`
	ApprovedBudget  *decimal.Decimal `json:"approvedBudget" gorm:"type:numeric(14,2)"`
	Currency        string           `json:"currency" gorm:"type:varchar(3);not null"`
}

// BudgetProposal requests a draw-down of budget for a project. At most one
// non-terminal proposal exists per project; approving it sets the project's
// ApprovedBudget.
type BudgetProposal struct {
	gorm.Model
	ProjectID uint            `json:"projectId" gorm:"not null;index"`
	Project   Project         `json:"-" gorm:"foreignKey:ProjectID"`
	Title     string          `json:"title" gorm:"not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Status    string          `json:"status" gorm:"not null;default:'Draft';index"`
	FileURL   string          `json:"fileUrl"`
}
