package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/ledger"
	"itbudget/internal/workflow"
	"itbudget/models"
	"itbudget/testutil"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedPool(t *testing.T, db *gorm.DB, total string, currency string) *models.BudgetPool {
	t.Helper()
	pool := &models.BudgetPool{FinancialYear: 2025, TotalAmount: dec(total), Currency: currency}
	require.NoError(t, db.Create(pool).Error)
	return pool
}

func seedCategory(t *testing.T, db *gorm.DB, pool *models.BudgetPool, code, total string) *models.Category {
	t.Helper()
	cat := &models.Category{
		BudgetPoolID: pool.ID, Name: code, Code: code,
		TotalAmount: dec(total), IsActive: true,
	}
	require.NoError(t, db.Create(cat).Error)
	return cat
}

func TestCheckPoolAllocationRejectsOverAllocation(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "1000000", "TWD")

	// First category fits.
	require.NoError(t, ledger.CheckPoolAllocation(db, pool, 0, dec("600000")))
	seedCategory(t, db, pool, "HW", "600000")

	// Second would push the sum to 1,100,000 > 1,000,000.
	err := ledger.CheckPoolAllocation(db, pool, 0, dec("500000"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))

	// 400,000 exactly fills the pool.
	require.NoError(t, ledger.CheckPoolAllocation(db, pool, 0, dec("400000")))
}

func TestCheckPoolAllocationExcludesUpdatedCategory(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "1000000", "TWD")
	cat := seedCategory(t, db, pool, "HW", "600000")
	seedCategory(t, db, pool, "SW", "300000")

	// Raising HW from 600k to 700k keeps the sum at 1,000,000.
	require.NoError(t, ledger.CheckPoolAllocation(db, pool, cat.ID, dec("700000")))
	// 800k would overflow.
	err := ledger.CheckPoolAllocation(db, pool, cat.ID, dec("800000"))
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestCheckExpenseCommit(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "1000000", "TWD")
	cat := seedCategory(t, db, pool, "HW", "100000")
	project := &models.Project{
		BudgetPoolID: pool.ID, Name: "dc-refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: dec("100000"), Currency: "TWD",
	}
	require.NoError(t, db.Create(project).Error)

	// Consume 50,000.
	require.NoError(t, db.Create(&models.Expense{
		ProjectID: project.ID, CategoryID: cat.ID, Currency: "TWD",
		TotalAmount: dec("50000"), Status: string(workflow.StatusDraft),
	}).Error)

	remaining, err := ledger.CategoryRemaining(db, cat)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(dec("50000")), "remaining = %s", remaining)

	// 60,000 against a 50,000 remainder fails.
	err = ledger.CheckExpenseCommit(db, cat.ID, "TWD", dec("60000"), 0)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))

	// Exactly the remainder passes; the ledger does not clamp.
	require.NoError(t, ledger.CheckExpenseCommit(db, cat.ID, "TWD", dec("50000"), 0))
}

func TestCheckExpenseCommitCurrencyMismatch(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "500000", "TWD")
	cat := seedCategory(t, db, pool, "SW", "200000")

	err := ledger.CheckExpenseCommit(db, cat.ID, "USD", dec("10"), 0)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
	assert.Contains(t, err.Error(), "currency")
}

func TestCheckExpenseCommitInactiveCategory(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "500000", "TWD")
	cat := seedCategory(t, db, pool, "SW", "200000")
	require.NoError(t, db.Model(cat).Update("is_active", false).Error)

	err := ledger.CheckExpenseCommit(db, cat.ID, "TWD", dec("10"), 0)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestPoolConsumedAndUsage(t *testing.T) {
	db := testutil.OpenDB(t)
	pool := seedPool(t, db, "1000000", "TWD")
	hw := seedCategory(t, db, pool, "HW", "600000")
	sw := seedCategory(t, db, pool, "SW", "400000")
	project := &models.Project{
		BudgetPoolID: pool.ID, Name: "erp", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: dec("700000"), Currency: "TWD",
	}
	require.NoError(t, db.Create(project).Error)

	for _, e := range []models.Expense{
		{ProjectID: project.ID, CategoryID: hw.ID, Currency: "TWD", TotalAmount: dec("150000"), Status: string(workflow.StatusDraft)},
		{ProjectID: project.ID, CategoryID: sw.ID, Currency: "TWD", TotalAmount: dec("100000"), Status: string(workflow.StatusDraft)},
	} {
		require.NoError(t, db.Create(&e).Error)
	}

	consumed, err := ledger.PoolConsumed(db, pool.ID)
	require.NoError(t, err)
	assert.True(t, consumed.Equal(dec("250000")), "consumed = %s", consumed)

	assert.InDelta(t, 0.25, ledger.Usage(consumed, pool.TotalAmount), 1e-9)
	assert.Zero(t, ledger.Usage(consumed, decimal.Zero))
}
