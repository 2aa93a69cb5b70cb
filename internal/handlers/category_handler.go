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

// CreateCategoriesHandler adds one or more categories to a pool in a single
// transaction. The batch fails as a whole when the pool invariant breaks.
func CreateCategoriesHandler(c *gin.Context) {
	poolID, ok := parseID(c)
	if !ok {
		return
	}

	var inputs []CategoryInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(inputs) == 0 {
		respondError(c, apperr.Validation("at least one category is required"))
		return
	}

	var created []models.Category
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var pool models.BudgetPool
		if err := tx.First(&pool, poolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("budget pool")
			}
			return apperr.Storage(err)
		}

		batch := decimal.Zero
		for _, input := range inputs {
			batch = batch.Add(input.TotalAmount)
		}
		if err := ledger.CheckPoolAllocation(tx, &pool, 0, batch); err != nil {
			return err
		}

		var maxOrder int
		tx.Model(&models.Category{}).Where("budget_pool_id = ?", poolID).
			Select("COALESCE(MAX(sort_order), 0)").Row().Scan(&maxOrder)

		for i, input := range inputs {
			created = append(created, models.Category{
				BudgetPoolID: pool.ID,
				Name:         input.Name,
				Code:         input.Code,
				TotalAmount:  input.TotalAmount,
				SortOrder:    maxOrder + i + 1,
				IsActive:     true,
			})
		}
		if err := tx.Create(&created).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateCategoryHandler changes name, code, ceiling or activation. Raising
// the ceiling re-checks the pool invariant; lowering it must still cover
// what the category has already consumed.
func UpdateCategoryHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		Name        string          `json:"name" binding:"required"`
		Code        string          `json:"code" binding:"required"`
		TotalAmount decimal.Decimal `json:"totalAmount" binding:"required"`
		IsActive    *bool           `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var category models.Category
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("BudgetPool").First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("category")
			}
			return apperr.Storage(err)
		}

		if err := ledger.CheckPoolAllocation(tx, &category.BudgetPool, category.ID, input.TotalAmount); err != nil {
			return err
		}
		consumed, err := ledger.CategoryConsumed(tx, category.ID)
		if err != nil {
			return err
		}
		if input.TotalAmount.LessThan(consumed) {
			return apperr.RuleViolation(
				"new ceiling %s is below the %s already consumed", input.TotalAmount, consumed)
		}

		category.Name = input.Name
		category.Code = input.Code
		category.TotalAmount = input.TotalAmount
		if input.IsActive != nil {
			category.IsActive = *input.IsActive
		}
		if err := tx.Save(&category).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeactivateCategoryHandler is the only supported removal. A category
// referenced by expenses stays addressable forever for historical joins.
func DeactivateCategoryHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var category models.Category
	if err := config.DB.First(&category, id).Error; err != nil {
		respondError(c, apperr.NotFound("category"))
		return
	}

	if err := config.DB.Model(&category).Update("is_active", false).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deactivated"})
}

// ReorderCategoriesHandler reassigns contiguous sort orders in one batch.
// The id list must cover exactly the pool's categories.
func ReorderCategoriesHandler(c *gin.Context) {
	poolID, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		CategoryIDs []uint `json:"categoryIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.Category{}).Where("budget_pool_id = ?", poolID).
			Pluck("id", &existing).Error; err != nil {
			return apperr.Storage(err)
		}
		if len(existing) == 0 {
			return apperr.NotFound("budget pool categories")
		}
		if len(existing) != len(input.CategoryIDs) {
			return apperr.Validation("categoryIds must list every category of the pool exactly once")
		}
		known := make(map[uint]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}
		seen := make(map[uint]bool, len(input.CategoryIDs))
		for _, id := range input.CategoryIDs {
			if !known[id] || seen[id] {
				return apperr.Validation("categoryIds must list every category of the pool exactly once")
			}
			seen[id] = true
		}

		for position, id := range input.CategoryIDs {
			if err := tx.Model(&models.Category{}).Where("id = ?", id).
				Update("sort_order", position+1).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Categories reordered"})
}
