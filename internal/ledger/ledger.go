// Package ledger computes allocated, consumed and remaining amounts for
// budget pools and categories. Every check runs against live rows inside
// the caller's transaction, so a mutation that would overdraw a category
// fails before anything persists.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/workflow"
	"itbudget/models"
)

// PoolAllocated is the sum of category ceilings under a pool. Deactivated
// categories still count: their allocation stands for historical expenses.
func PoolAllocated(db *gorm.DB, poolID uint) (decimal.Decimal, error) {
	return sumDecimal(db.Model(&models.Category{}).
		Where("budget_pool_id = ?", poolID).
		Select("COALESCE(SUM(total_amount), 0)"))
}

// CheckPoolAllocation verifies that the pool-level invariant
// sum(category totals) <= pool total still holds when a category's ceiling
// becomes amount. excludeCategoryID skips the row being updated (0 for a
// create).
func CheckPoolAllocation(db *gorm.DB, pool *models.BudgetPool, excludeCategoryID uint, amount decimal.Decimal) error {
	q := db.Model(&models.Category{}).
		Where("budget_pool_id = ?", pool.ID).
		Select("COALESCE(SUM(total_amount), 0)")
	if excludeCategoryID != 0 {
		q = q.Where("id <> ?", excludeCategoryID)
	}
	allocated, err := sumDecimal(q)
	if err != nil {
		return err
	}
	if allocated.Add(amount).GreaterThan(pool.TotalAmount) {
		return apperr.RuleViolation(
			"category totals %s would exceed pool total %s %s",
			allocated.Add(amount), pool.TotalAmount, pool.Currency)
	}
	return nil
}

// CategoryConsumed is the live sum of expense amounts recorded against the
// category, excluding rejected documents.
func CategoryConsumed(db *gorm.DB, categoryID uint) (decimal.Decimal, error) {
	return sumDecimal(db.Model(&models.Expense{}).
		Where("category_id = ? AND status <> ?", categoryID, workflow.StatusRejected).
		Select("COALESCE(SUM(total_amount), 0)"))
}

// PoolConsumed aggregates CategoryConsumed over every category of the pool.
func PoolConsumed(db *gorm.DB, poolID uint) (decimal.Decimal, error) {
	return sumDecimal(db.Model(&models.Expense{}).
		Joins("JOIN categories ON categories.id = expenses.category_id").
		Where("categories.budget_pool_id = ? AND expenses.status <> ?", poolID, workflow.StatusRejected).
		Select("COALESCE(SUM(expenses.total_amount), 0)"))
}

// CategoryRemaining returns ceiling minus consumed for one category.
func CategoryRemaining(db *gorm.DB, category *models.Category) (decimal.Decimal, error) {
	consumed, err := CategoryConsumed(db, category.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return category.TotalAmount.Sub(consumed), nil
}

// CheckExpenseCommit authorizes committing amount against the category in
// the given currency. excludeExpenseID skips the expense being updated so
// its old amount is not double counted. The currency must equal the pool
// currency exactly; a mismatch is a hard error, never a conversion.
func CheckExpenseCommit(db *gorm.DB, categoryID uint, currency string, amount decimal.Decimal, excludeExpenseID uint) error {
	var category models.Category
	if err := db.Preload("BudgetPool").First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("category")
		}
		return apperr.Storage(err)
	}
	if !category.IsActive {
		return apperr.RuleViolation("category %s is deactivated", category.Code)
	}
	if category.BudgetPool.Currency != currency {
		return apperr.RuleViolation(
			"currency %s does not match pool currency %s", currency, category.BudgetPool.Currency)
	}

	q := db.Model(&models.Expense{}).
		Where("category_id = ? AND status <> ?", categoryID, workflow.StatusRejected).
		Select("COALESCE(SUM(total_amount), 0)")
	if excludeExpenseID != 0 {
		q = q.Where("id <> ?", excludeExpenseID)
	}
	consumed, err := sumDecimal(q)
	if err != nil {
		return err
	}

	remaining := category.TotalAmount.Sub(consumed)
	if amount.GreaterThan(remaining) {
		return apperr.RuleViolation(
			"amount %s exceeds remaining budget %s in category %s",
			amount, remaining, category.Code)
	}
	return nil
}

// Usage returns consumed/total as a plain ratio. Threshold semantics
// (healthy/warning/critical) belong to the consumer, not the ledger.
func Usage(consumed, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	ratio, _ := consumed.Div(total).Float64()
	return ratio
}

func sumDecimal(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.Row().Scan(&total); err != nil {
		return decimal.Zero, apperr.Storage(err)
	}
	return total, nil
}
