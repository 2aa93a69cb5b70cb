package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itbudget/config"
	"itbudget/internal/handlers"
	"itbudget/internal/middleware"
	"itbudget/internal/scope"
	"itbudget/internal/workflow"
	"itbudget/models"
	"itbudget/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withIdentity(identity *scope.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityKey, identity)
		c.Next()
	}
}

func performJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestCreateBudgetPoolRejectsOverAllocatedCategories(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	router := gin.New()
	router.POST("/budget-pools", handlers.CreateBudgetPoolHandler)

	w := performJSON(router, http.MethodPost, "/budget-pools", gin.H{
		"financialYear": 2026,
		"totalAmount":   "1000000",
		"currency":      "TWD",
		"categories": []gin.H{
			{"name": "Hardware", "code": "HW", "totalAmount": "600000"},
			{"name": "Software", "code": "SW", "totalAmount": "500000"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var pools int64
	require.NoError(t, config.DB.Model(&models.BudgetPool{}).Count(&pools).Error)
	assert.Zero(t, pools)
}

func TestCreateExpenseOverdrawRollsBackEverything(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	category := models.Category{BudgetPoolID: pool.ID, Name: "Hardware", Code: "HW",
		TotalAmount: money("50000"), SortOrder: 1, IsActive: true}
	require.NoError(t, config.DB.Create(&category).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)

	router := gin.New()
	router.POST("/expenses", handlers.CreateExpenseHandler)

	w := performJSON(router, http.MethodPost, "/expenses", gin.H{
		"projectId":  project.ID,
		"categoryId": category.ID,
		"currency":   "TWD",
		"items": []gin.H{
			{"description": "Laptops", "amount": "60000"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var expenses, items int64
	require.NoError(t, config.DB.Model(&models.Expense{}).Count(&expenses).Error)
	require.NoError(t, config.DB.Model(&models.ExpenseItem{}).Count(&items).Error)
	assert.Zero(t, expenses)
	assert.Zero(t, items)

	// Within budget the same request goes through.
	w = performJSON(router, http.MethodPost, "/expenses", gin.H{
		"projectId":  project.ID,
		"categoryId": category.ID,
		"currency":   "TWD",
		"items": []gin.H{
			{"description": "Laptops", "amount": "40000"},
		},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestChargeOutMutationOutsideOpCoScopeIsForbidden(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	opco := models.OpCo{Name: "North", Code: "NORTH"}
	require.NoError(t, config.DB.Create(&opco).Error)
	project := models.Project{BudgetPoolID: 1, Name: "p", ManagerID: 1, SupervisorID: 1, Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)

	identity := &scope.Identity{UserID: 1, Permissions: []string{"charge_outs_edit"}}

	router := gin.New()
	router.Use(withIdentity(identity))
	router.POST("/charge-outs", handlers.CreateChargeOutHandler)

	w := performJSON(router, http.MethodPost, "/charge-outs", gin.H{
		"projectId": project.ID,
		"opCoId":    opco.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var chargeOuts int64
	require.NoError(t, config.DB.Model(&models.ChargeOut{}).Count(&chargeOuts).Error)
	assert.Zero(t, chargeOuts)
}

func TestChargeOutListEmptyScopeReturnsEmptyPage(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	opco := models.OpCo{Name: "North", Code: "NORTH"}
	require.NoError(t, config.DB.Create(&opco).Error)
	require.NoError(t, config.DB.Create(&models.ChargeOut{
		ProjectID: 1, OpCoID: opco.ID, Status: string(workflow.StatusDraft),
	}).Error)

	identity := &scope.Identity{UserID: 1, Permissions: []string{"charge_outs_view"}}

	router := gin.New()
	router.Use(withIdentity(identity))
	router.GET("/charge-outs", handlers.ListChargeOutsHandler)

	w := performJSON(router, http.MethodGet, "/charge-outs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response handlers.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Zero(t, response.TotalRows)
}

func TestProposalTransitionStaleObservedStatusConflicts(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)
	proposal := models.BudgetProposal{ProjectID: project.ID, Title: "FY26",
		Amount: money("50000"), Status: string(workflow.StatusSubmitted)}
	require.NoError(t, config.DB.Create(&proposal).Error)

	identity := &scope.Identity{UserID: 9, Permissions: []string{"proposals_edit"}}
	router := gin.New()
	router.Use(withIdentity(identity))
	router.POST("/proposals/:id/submit", handlers.SubmitProposalHandler)

	// The caller thinks the proposal is still Draft; it has moved on.
	w := performJSON(router, http.MethodPost, "/proposals/1/submit", gin.H{
		"observedStatus": "Draft",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var current models.BudgetProposal
	require.NoError(t, config.DB.First(&current, proposal.ID).Error)
	assert.Equal(t, string(workflow.StatusSubmitted), current.Status)
}

func TestUpdateProposalStaleStatusConflicts(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)
	proposal := models.BudgetProposal{ProjectID: project.ID, Title: "FY26",
		Amount: money("50000"), Status: string(workflow.StatusSubmitted)}
	require.NoError(t, config.DB.Create(&proposal).Error)

	router := gin.New()
	router.PUT("/proposals/:id", handlers.UpdateProposalHandler)

	// The editor read the proposal as Draft; a submit has landed since. The
	// update must conflict instead of rewinding the status or the title.
	w := performJSON(router, http.MethodPut, "/proposals/1", gin.H{
		"title":          "rewritten",
		"amount":         "60000",
		"observedStatus": "Draft",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var current models.BudgetProposal
	require.NoError(t, config.DB.First(&current, proposal.ID).Error)
	assert.Equal(t, string(workflow.StatusSubmitted), current.Status)
	assert.Equal(t, "FY26", current.Title)
	assert.True(t, current.Amount.Equal(money("50000")))
}

func TestUpdateExpenseReplacesItemsAndKeepsProject(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	category := models.Category{BudgetPoolID: pool.ID, Name: "Hardware", Code: "HW",
		TotalAmount: money("50000"), SortOrder: 1, IsActive: true}
	require.NoError(t, config.DB.Create(&category).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)
	expense := models.Expense{ProjectID: project.ID, CategoryID: category.ID, Currency: "TWD",
		TotalAmount: money("10000"), Status: string(workflow.StatusDraft),
		Items: []models.ExpenseItem{{Description: "Laptops", Amount: money("10000"), SortOrder: 1}}}
	require.NoError(t, config.DB.Create(&expense).Error)

	router := gin.New()
	router.PUT("/expenses/:id", handlers.UpdateExpenseHandler)

	w := performJSON(router, http.MethodPut, "/expenses/1", gin.H{
		"categoryId":     category.ID,
		"currency":       "TWD",
		"observedStatus": "Draft",
		"items": []gin.H{
			{"description": "Monitors", "amount": "20000"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var current models.Expense
	require.NoError(t, config.DB.Preload("Items").First(&current, expense.ID).Error)
	assert.True(t, current.TotalAmount.Equal(money("20000")))
	assert.Equal(t, project.ID, current.ProjectID)
	require.Len(t, current.Items, 1)
	assert.Equal(t, "Monitors", current.Items[0].Description)

	// A stale observed status conflicts and changes nothing.
	w = performJSON(router, http.MethodPut, "/expenses/1", gin.H{
		"categoryId":     category.ID,
		"currency":       "TWD",
		"observedStatus": "ChargedOut",
		"items": []gin.H{
			{"description": "Keyboards", "amount": "5000"},
		},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, config.DB.First(&current, expense.ID).Error)
	assert.True(t, current.TotalAmount.Equal(money("20000")))
}

func TestExpenseExportEscapesDelimiters(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	category := models.Category{BudgetPoolID: pool.ID, Name: "Hardware", Code: "HW;CORE",
		TotalAmount: money("50000"), SortOrder: 1, IsActive: true}
	require.NoError(t, config.DB.Create(&category).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh;2026", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)
	require.NoError(t, config.DB.Create(&models.Expense{
		ProjectID: project.ID, CategoryID: category.ID, Currency: "TWD",
		TotalAmount: money("10000"), Status: string(workflow.StatusDraft),
	}).Error)

	router := gin.New()
	router.GET("/expenses/export", handlers.ExportExpensesHandler)

	w := performJSON(router, http.MethodGet, "/expenses/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Refresh,2026")
	assert.Contains(t, body, "HW,CORE")
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		assert.Len(t, strings.Split(line, ";"), 8)
	}
}

func TestDeleteProjectWithDocumentsRefused(t *testing.T) {
	config.DB = testutil.OpenDB(t)
	pool := models.BudgetPool{FinancialYear: 2026, TotalAmount: money("100000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&pool).Error)
	project := models.Project{BudgetPoolID: pool.ID, Name: "Refresh", ManagerID: 1, SupervisorID: 2,
		RequestedBudget: money("50000"), Currency: "TWD"}
	require.NoError(t, config.DB.Create(&project).Error)
	require.NoError(t, config.DB.Create(&models.BudgetProposal{
		ProjectID: project.ID, Title: "FY26", Amount: money("50000"),
		Status: string(workflow.StatusDraft),
	}).Error)

	router := gin.New()
	router.DELETE("/projects/:id", handlers.DeleteProjectHandler)

	req := httptest.NewRequest(http.MethodDelete, "/projects/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var projects int64
	require.NoError(t, config.DB.Model(&models.Project{}).Count(&projects).Error)
	assert.Equal(t, int64(1), projects)
}
