package approval

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/workflow"
	"itbudget/models"
)

// PurchaseOrderHasItems blocks submission of an empty order.
func PurchaseOrderHasItems(id uint) Guard {
	return func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PurchaseOrderItem{}).
			Where("purchase_order_id = ?", id).Count(&count).Error; err != nil {
			return apperr.Storage(err)
		}
		if count == 0 {
			return apperr.RuleViolation("purchase order has no items")
		}
		return nil
	}
}

// ChargeOutHasItems blocks submission of an empty charge-out.
func ChargeOutHasItems(id uint) Guard {
	return func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ChargeOutItem{}).
			Where("charge_out_id = ?", id).Count(&count).Error; err != nil {
			return apperr.Storage(err)
		}
		if count == 0 {
			return apperr.RuleViolation("charge-out has no items")
		}
		return nil
	}
}

// ChargeOutItemsEligible re-validates every item of the charge-out: the
// referenced expense must be flagged for charge-out, and the allocation must
// still fit into what submitted and approved charge-outs have not yet
// claimed. Used both on item writes and as a submit guard, since another
// charge-out may have consumed the headroom in between.
func ChargeOutItemsEligible(id uint) Guard {
	return func(tx *gorm.DB) error {
		var items []models.ChargeOutItem
		if err := tx.Where("charge_out_id = ?", id).Find(&items).Error; err != nil {
			return apperr.Storage(err)
		}
		for _, item := range items {
			if err := CheckChargeOutAllocation(tx, item.ExpenseID, item.Amount, id); err != nil {
				return err
			}
		}
		return nil
	}
}

// CheckChargeOutAllocation verifies one expense allocation: the expense
// exists, requires charge-out, and amount fits into the unallocated
// remainder. excludeChargeOutID keeps the charge-out being edited from
// counting against itself.
func CheckChargeOutAllocation(tx *gorm.DB, expenseID uint, amount decimal.Decimal, excludeChargeOutID uint) error {
	var expense models.Expense
	if err := tx.First(&expense, expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("expense")
		}
		return apperr.Storage(err)
	}
	if !expense.RequiresChargeOut {
		return apperr.RuleViolation("expense %d is not eligible for charge-out", expenseID)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperr.RuleViolation("allocated amount must be positive")
	}

	var allocated decimal.Decimal
	err := tx.Model(&models.ChargeOutItem{}).
		Joins("JOIN charge_outs ON charge_outs.id = charge_out_items.charge_out_id").
		Where("charge_out_items.expense_id = ?", expenseID).
		Where("charge_outs.status IN ?", []string{string(workflow.StatusSubmitted), string(workflow.StatusApproved)}).
		Where("charge_outs.id <> ?", excludeChargeOutID).
		Where("charge_outs.deleted_at IS NULL").
		Select("COALESCE(SUM(charge_out_items.amount), 0)").
		Row().Scan(&allocated)
	if err != nil {
		return apperr.Storage(err)
	}

	remainder := expense.TotalAmount.Sub(allocated)
	if amount.GreaterThan(remainder) {
		return apperr.RuleViolation(
			"allocation %s exceeds unallocated remainder %s of expense %d",
			amount, remainder, expenseID)
	}
	return nil
}

// ActivateProjectBudget is the proposal-approval side effect: the approved
// amount becomes the project's effective budget.
func ActivateProjectBudget(proposalID uint) Effect {
	return func(tx *gorm.DB) error {
		var proposal models.BudgetProposal
		if err := tx.First(&proposal, proposalID).Error; err != nil {
			return apperr.Storage(err)
		}
		result := tx.Model(&models.Project{}).
			Where("id = ?", proposal.ProjectID).
			Update("approved_budget", proposal.Amount)
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("project")
		}
		return nil
	}
}

// MarkChargedOutExpenses is the charge-out-approval side effect: any
// referenced expense now fully covered by approved charge-outs flips to
// ChargedOut.
func MarkChargedOutExpenses(chargeOutID uint) Effect {
	return func(tx *gorm.DB) error {
		var items []models.ChargeOutItem
		if err := tx.Where("charge_out_id = ?", chargeOutID).Find(&items).Error; err != nil {
			return apperr.Storage(err)
		}
		for _, item := range items {
			var expense models.Expense
			if err := tx.First(&expense, item.ExpenseID).Error; err != nil {
				return apperr.Storage(err)
			}

			var approved decimal.Decimal
			err := tx.Model(&models.ChargeOutItem{}).
				Joins("JOIN charge_outs ON charge_outs.id = charge_out_items.charge_out_id").
				Where("charge_out_items.expense_id = ?", item.ExpenseID).
				Where("charge_outs.status = ?", string(workflow.StatusApproved)).
				Where("charge_outs.deleted_at IS NULL").
				Select("COALESCE(SUM(charge_out_items.amount), 0)").
				Row().Scan(&approved)
			if err != nil {
				return apperr.Storage(err)
			}

			if approved.GreaterThanOrEqual(expense.TotalAmount) {
				if err := tx.Model(&models.Expense{}).
					Where("id = ?", expense.ID).
					Update("status", string(workflow.StatusChargedOut)).Error; err != nil {
					return apperr.Storage(err)
				}
			}
		}
		return nil
	}
}
