package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/ledger"
	"itbudget/models"
)

type CategoryInput struct {
	Name        string          `json:"name" binding:"required"`
	Code        string          `json:"code" binding:"required"`
	TotalAmount decimal.Decimal `json:"totalAmount" binding:"required"`
	SortOrder   int             `json:"sortOrder"`
}

type BudgetPoolInput struct {
	FinancialYear int             `json:"financialYear" binding:"required"`
	TotalAmount   decimal.Decimal `json:"totalAmount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	Categories    []CategoryInput `json:"categories"`
}

// CreateBudgetPoolHandler creates a pool together with its initial category
// set in one transaction. The category totals must fit the pool total.
func CreateBudgetPoolHandler(c *gin.Context) {
	var input BudgetPoolInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.TotalAmount.LessThanOrEqual(decimal.Zero) {
		respondError(c, apperr.Validation("totalAmount must be positive"))
		return
	}

	allocated := decimal.Zero
	for _, cat := range input.Categories {
		allocated = allocated.Add(cat.TotalAmount)
	}
	if allocated.GreaterThan(input.TotalAmount) {
		respondError(c, apperr.RuleViolation(
			"category totals %s exceed pool total %s", allocated, input.TotalAmount))
		return
	}

	pool := models.BudgetPool{
		FinancialYear: input.FinancialYear,
		TotalAmount:   input.TotalAmount,
		Currency:      input.Currency,
	}
	for i, cat := range input.Categories {
		sortOrder := cat.SortOrder
		if sortOrder == 0 {
			sortOrder = i + 1
		}
		pool.Categories = append(pool.Categories, models.Category{
			Name:        cat.Name,
			Code:        cat.Code,
			TotalAmount: cat.TotalAmount,
			SortOrder:   sortOrder,
			IsActive:    true,
		})
	}

	if err := config.DB.Create(&pool).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, pool)
}

// ListBudgetPoolsHandler returns pools, optionally filtered by year.
func ListBudgetPoolsHandler(c *gin.Context) {
	query := config.DB.Model(&models.BudgetPool{})
	if year := c.Query("financialYear"); year != "" {
		query = query.Where("financial_year = ?", year)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var pools []models.BudgetPool
	err := query.Scopes(Paginate(c), SortBy(c, "financial_year DESC", "financial_year", "total_amount", "created_at")).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Find(&pools).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if pools == nil {
		pools = make([]models.BudgetPool, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, pools, totalRows))
}

type categoryUsageRow struct {
	CategoryID  uint            `json:"categoryId"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	IsActive    bool            `json:"isActive"`
	SortOrder   int             `json:"sortOrder"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Consumed    decimal.Decimal `json:"consumed"`
	Remaining   decimal.Decimal `json:"remaining"`
	Usage       float64         `json:"usage"`
}

// GetBudgetPoolHandler returns one pool with live ledger numbers per
// category. The usage ratio is raw; thresholds are the frontend's business.
func GetBudgetPoolHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var pool models.BudgetPool
	err := config.DB.Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		First(&pool, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("budget pool"))
		} else {
			respondError(c, apperr.Storage(err))
		}
		return
	}

	rows := make([]categoryUsageRow, 0, len(pool.Categories))
	for _, cat := range pool.Categories {
		consumed, err := ledger.CategoryConsumed(config.DB, cat.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		rows = append(rows, categoryUsageRow{
			CategoryID:  cat.ID,
			Name:        cat.Name,
			Code:        cat.Code,
			IsActive:    cat.IsActive,
			SortOrder:   cat.SortOrder,
			TotalAmount: cat.TotalAmount,
			Consumed:    consumed,
			Remaining:   cat.TotalAmount.Sub(consumed),
			Usage:       ledger.Usage(consumed, cat.TotalAmount),
		})
	}

	consumed, err := ledger.PoolConsumed(config.DB, pool.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	allocated, err := ledger.PoolAllocated(config.DB, pool.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pool":       pool,
		"allocated":  allocated,
		"consumed":   consumed,
		"remaining":  pool.TotalAmount.Sub(consumed),
		"usage":      ledger.Usage(consumed, pool.TotalAmount),
		"categories": rows,
	})
}

// UpdateBudgetPoolHandler adjusts a pool header. Pools funding projects are
// immutable; a shrunk total must still cover the category allocations.
func UpdateBudgetPoolHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		FinancialYear int             `json:"financialYear" binding:"required"`
		TotalAmount   decimal.Decimal `json:"totalAmount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var pool models.BudgetPool
	if err := config.DB.First(&pool, id).Error; err != nil {
		respondError(c, apperr.NotFound("budget pool"))
		return
	}

	var projectCount int64
	if err := config.DB.Model(&models.Project{}).Where("budget_pool_id = ?", id).Count(&projectCount).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if projectCount > 0 {
		respondError(c, apperr.RuleViolation("pool already funds %d project(s) and cannot change", projectCount))
		return
	}

	allocated, err := ledger.PoolAllocated(config.DB, pool.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if allocated.GreaterThan(input.TotalAmount) {
		respondError(c, apperr.RuleViolation(
			"category totals %s exceed new pool total %s", allocated, input.TotalAmount))
		return
	}

	pool.FinancialYear = input.FinancialYear
	pool.TotalAmount = input.TotalAmount
	if err := config.DB.Save(&pool).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, pool)
}
