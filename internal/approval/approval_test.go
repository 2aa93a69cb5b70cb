package approval_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/approval"
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

type fixture struct {
	db      *gorm.DB
	pool    models.BudgetPool
	cat     models.Category
	project models.Project
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: testutil.OpenDB(t)}
	f.pool = models.BudgetPool{FinancialYear: 2025, TotalAmount: dec("1000000"), Currency: "TWD"}
	require.NoError(t, f.db.Create(&f.pool).Error)
	f.cat = models.Category{BudgetPoolID: f.pool.ID, Name: "Hardware", Code: "HW", TotalAmount: dec("600000"), IsActive: true}
	require.NoError(t, f.db.Create(&f.cat).Error)
	f.project = models.Project{
		BudgetPoolID: f.pool.ID, Name: "dc-refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: dec("500000"), Currency: "TWD",
	}
	require.NoError(t, f.db.Create(&f.project).Error)
	return f
}

func TestSubmitThenStaleSubmitConflicts(t *testing.T) {
	f := setup(t)
	proposal := models.BudgetProposal{ProjectID: f.project.ID, Title: "phase 1", Amount: dec("200000"), Status: "Draft"}
	require.NoError(t, f.db.Create(&proposal).Error)

	req := approval.Request{
		Doc: workflow.DocProposal, ID: proposal.ID,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}
	next, err := approval.Apply(f.db, &models.BudgetProposal{}, req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, next)

	// A second actor raced on the same observed Draft status.
	_, err = approval.Apply(f.db, &models.BudgetProposal{}, req, nil, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestRejectRequiresComment(t *testing.T) {
	f := setup(t)
	proposal := models.BudgetProposal{ProjectID: f.project.ID, Title: "phase 1", Amount: dec("200000"), Status: "Submitted"}
	require.NoError(t, f.db.Create(&proposal).Error)

	for _, action := range []workflow.Action{workflow.ActionReject, workflow.ActionRequestInfo} {
		_, err := approval.Apply(f.db, &models.BudgetProposal{}, approval.Request{
			Doc: workflow.DocProposal, ID: proposal.ID,
			Action: action, ActorID: 2, Observed: workflow.StatusSubmitted,
			Comment: "   ",
		}, nil, nil)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "%s without comment", action)
	}

	// Approve never requires one.
	next, err := approval.Apply(f.db, &models.BudgetProposal{}, approval.Request{
		Doc: workflow.DocProposal, ID: proposal.ID,
		Action: workflow.ActionApprove, ActorID: 2, Observed: workflow.StatusSubmitted,
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, next)
}

func TestZeroItemPurchaseOrderSubmitFails(t *testing.T) {
	f := setup(t)
	vendor := models.Vendor{Name: "ACME"}
	require.NoError(t, f.db.Create(&vendor).Error)
	po := models.PurchaseOrder{ProjectID: f.project.ID, VendorID: vendor.ID, Status: "Draft"}
	require.NoError(t, f.db.Create(&po).Error)

	_, err := approval.Apply(f.db, &models.PurchaseOrder{}, approval.Request{
		Doc: workflow.DocPurchaseOrder, ID: po.ID,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}, []approval.Guard{approval.PurchaseOrderHasItems(po.ID)}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))

	// Guard failure leaves the status untouched and writes no audit row.
	var fresh models.PurchaseOrder
	require.NoError(t, f.db.First(&fresh, po.ID).Error)
	assert.Equal(t, "Draft", fresh.Status)
	trail, err := approval.Trail(f.db, workflow.DocPurchaseOrder, po.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestMoreInfoResubmitApproveActivatesProjectBudget(t *testing.T) {
	f := setup(t)
	proposal := models.BudgetProposal{
		ProjectID: f.project.ID, Title: "phase 1",
		Amount: dec("450000"), Status: "MoreInfoRequired",
	}
	require.NoError(t, f.db.Create(&proposal).Error)

	next, err := approval.Apply(f.db, &models.BudgetProposal{}, approval.Request{
		Doc: workflow.DocProposal, ID: proposal.ID,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusMoreInfo,
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, next)

	next, err = approval.Apply(f.db, &models.BudgetProposal{}, approval.Request{
		Doc: workflow.DocProposal, ID: proposal.ID,
		Action: workflow.ActionApprove, ActorID: 2, Observed: workflow.StatusSubmitted,
	}, nil, []approval.Effect{approval.ActivateProjectBudget(proposal.ID)})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, next)

	var project models.Project
	require.NoError(t, f.db.First(&project, f.project.ID).Error)
	require.NotNil(t, project.ApprovedBudget)
	assert.True(t, project.ApprovedBudget.Equal(dec("450000")))

	trail, err := approval.Trail(f.db, workflow.DocProposal, proposal.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "submit", trail[0].Action)
	assert.Equal(t, "approve", trail[1].Action)
	assert.Equal(t, "Submitted", trail[1].FromStatus)
	assert.Equal(t, "Approved", trail[1].ToStatus)
}

func chargeOutFixture(t *testing.T, f *fixture, requires bool, total string) (models.OpCo, models.Expense) {
	t.Helper()
	opco := models.OpCo{Name: "OpCo-" + t.Name(), Code: "OP-" + t.Name()}
	require.NoError(t, f.db.Create(&opco).Error)
	expense := models.Expense{
		ProjectID: f.project.ID, CategoryID: f.cat.ID, Currency: "TWD",
		TotalAmount: dec(total), Status: "Draft", RequiresChargeOut: requires,
	}
	require.NoError(t, f.db.Create(&expense).Error)
	return opco, expense
}

func TestChargeOutItemsMustBeEligible(t *testing.T) {
	f := setup(t)
	opco, expense := chargeOutFixture(t, f, false, "10000")
	co := models.ChargeOut{ProjectID: f.project.ID, OpCoID: opco.ID, Status: "Draft"}
	require.NoError(t, f.db.Create(&co).Error)
	require.NoError(t, f.db.Create(&models.ChargeOutItem{
		ChargeOutID: co.ID, ExpenseID: expense.ID, Amount: dec("10000"),
	}).Error)

	_, err := approval.Apply(f.db, &models.ChargeOut{}, approval.Request{
		Doc: workflow.DocChargeOut, ID: co.ID,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}, []approval.Guard{
		approval.ChargeOutHasItems(co.ID),
		approval.ChargeOutItemsEligible(co.ID),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestChargeOutOverAllocationRejected(t *testing.T) {
	f := setup(t)
	opco, expense := chargeOutFixture(t, f, true, "10000")

	// A submitted charge-out already claims 8,000 of the expense.
	prior := models.ChargeOut{ProjectID: f.project.ID, OpCoID: opco.ID, Status: "Submitted"}
	require.NoError(t, f.db.Create(&prior).Error)
	require.NoError(t, f.db.Create(&models.ChargeOutItem{
		ChargeOutID: prior.ID, ExpenseID: expense.ID, Amount: dec("8000"),
	}).Error)

	err := approval.CheckChargeOutAllocation(f.db, expense.ID, dec("3000"), 0)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))

	// The remaining 2,000 still fits.
	require.NoError(t, approval.CheckChargeOutAllocation(f.db, expense.ID, dec("2000"), 0))
}

func TestChargeOutApprovalFlipsFullyAllocatedExpense(t *testing.T) {
	f := setup(t)
	opco, expense := chargeOutFixture(t, f, true, "10000")
	co := models.ChargeOut{ProjectID: f.project.ID, OpCoID: opco.ID, Status: "Submitted"}
	require.NoError(t, f.db.Create(&co).Error)
	require.NoError(t, f.db.Create(&models.ChargeOutItem{
		ChargeOutID: co.ID, ExpenseID: expense.ID, Amount: dec("10000"),
	}).Error)

	next, err := approval.Apply(f.db, &models.ChargeOut{}, approval.Request{
		Doc: workflow.DocChargeOut, ID: co.ID,
		Action: workflow.ActionApprove, ActorID: 2, Observed: workflow.StatusSubmitted,
	}, nil, []approval.Effect{approval.MarkChargedOutExpenses(co.ID)})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, next)

	var fresh models.Expense
	require.NoError(t, f.db.First(&fresh, expense.ID).Error)
	assert.Equal(t, string(workflow.StatusChargedOut), fresh.Status)
}

func TestChargeOutApprovalLeavesPartialExpenseAlone(t *testing.T) {
	f := setup(t)
	opco, expense := chargeOutFixture(t, f, true, "10000")
	co := models.ChargeOut{ProjectID: f.project.ID, OpCoID: opco.ID, Status: "Submitted"}
	require.NoError(t, f.db.Create(&co).Error)
	require.NoError(t, f.db.Create(&models.ChargeOutItem{
		ChargeOutID: co.ID, ExpenseID: expense.ID, Amount: dec("4000"),
	}).Error)

	_, err := approval.Apply(f.db, &models.ChargeOut{}, approval.Request{
		Doc: workflow.DocChargeOut, ID: co.ID,
		Action: workflow.ActionApprove, ActorID: 2, Observed: workflow.StatusSubmitted,
	}, nil, []approval.Effect{approval.MarkChargedOutExpenses(co.ID)})
	require.NoError(t, err)

	var fresh models.Expense
	require.NoError(t, f.db.First(&fresh, expense.ID).Error)
	assert.Equal(t, "Draft", fresh.Status)
}

func TestApplyUnknownDocumentNotFound(t *testing.T) {
	f := setup(t)
	_, err := approval.Apply(f.db, &models.BudgetProposal{}, approval.Request{
		Doc: workflow.DocProposal, ID: 424242,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}, nil, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestApplyMissingDocumentBeatsGuards(t *testing.T) {
	f := setup(t)

	// An order that does not exist has zero items too; the caller must still
	// see NotFound, not the guard's empty-order violation.
	_, err := approval.Apply(f.db, &models.PurchaseOrder{}, approval.Request{
		Doc: workflow.DocPurchaseOrder, ID: 999999,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}, []approval.Guard{approval.PurchaseOrderHasItems(999999)}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.False(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestApplyStaleStatusBeatsGuards(t *testing.T) {
	f := setup(t)
	opco, _ := chargeOutFixture(t, f, true, "10000")
	co := models.ChargeOut{ProjectID: f.project.ID, OpCoID: opco.ID, Status: "Submitted"}
	require.NoError(t, f.db.Create(&co).Error)

	// The caller observed Draft but the charge-out has moved on. With no
	// items the has-items guard would fire; the stale read must win.
	_, err := approval.Apply(f.db, &models.ChargeOut{}, approval.Request{
		Doc: workflow.DocChargeOut, ID: co.ID,
		Action: workflow.ActionSubmit, ActorID: 1, Observed: workflow.StatusDraft,
	}, []approval.Guard{
		approval.ChargeOutHasItems(co.ID),
		approval.ChargeOutItemsEligible(co.ID),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}
