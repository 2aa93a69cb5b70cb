package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/models"
)

type OMExpenseItemInput struct {
	Name         string          `json:"name" binding:"required"`
	BudgetAmount decimal.Decimal `json:"budgetAmount" binding:"required"`
}

type OMExpenseInput struct {
	Category      string               `json:"category" binding:"required"`
	DefaultOpCoID uint                 `json:"defaultOpCoId" binding:"required"`
	Items         []OMExpenseItemInput `json:"items" binding:"required,min=1"`
}

// CreateOMExpenseHandler creates a recurring O&M expense. Every item gets
// twelve zeroed monthly record slots up front, so later updates are plain
// row updates instead of upserts.
func CreateOMExpenseHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var input OMExpenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !identity.CanAccessOpCo(input.DefaultOpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}

	var omExpense models.OMExpense
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var opCo models.OpCo
		if err := tx.First(&opCo, input.DefaultOpCoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("operating company")
			}
			return apperr.Storage(err)
		}

		omExpense = models.OMExpense{
			Category:      input.Category,
			DefaultOpCoID: input.DefaultOpCoID,
		}
		for _, item := range input.Items {
			records := make([]models.OMExpenseRecord, 0, 12)
			for month := 1; month <= 12; month++ {
				records = append(records, models.OMExpenseRecord{
					Month:  month,
					Amount: decimal.Zero,
				})
			}
			omExpense.Items = append(omExpense.Items, models.OMExpenseItem{
				Name:         item.Name,
				BudgetAmount: item.BudgetAmount,
				Records:      records,
			})
		}
		if err := tx.Create(&omExpense).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, omExpense)
}

// UpdateOMExpenseRecordHandler writes one monthly actual.
func UpdateOMExpenseRecordHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		Month  int             `json:"month" binding:"required,min=1,max=12"`
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Amount.IsNegative() {
		respondError(c, apperr.Validation("amount cannot be negative"))
		return
	}

	var item models.OMExpenseItem
	if err := config.DB.First(&item, itemID).Error; err != nil {
		respondError(c, apperr.NotFound("O&M expense item"))
		return
	}
	var omExpense models.OMExpense
	if err := config.DB.First(&omExpense, item.OMExpenseID).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if !identity.CanAccessOpCo(omExpense.DefaultOpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}

	result := config.DB.Model(&models.OMExpenseRecord{}).
		Where("om_expense_item_id = ? AND month = ?", itemID, input.Month).
		Update("amount", input.Amount)
	if result.Error != nil {
		respondError(c, apperr.Storage(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperr.NotFound("monthly record"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record updated"})
}

func GetOMExpenseHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var omExpense models.OMExpense
	err := config.DB.Preload("DefaultOpCo").
		Preload("Items.Records", func(db *gorm.DB) *gorm.DB { return db.Order("month asc") }).
		First(&omExpense, id).Error
	if err != nil {
		respondError(c, apperr.NotFound("O&M expense"))
		return
	}
	if !identity.CanAccessOpCo(omExpense.DefaultOpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}
	c.JSON(http.StatusOK, omExpense)
}

// ListOMExpensesHandler returns O&M expenses limited to the actor's OpCo
// allowlist.
func ListOMExpensesHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	query := identity.ScopeOpCos(config.DB.Model(&models.OMExpense{}), "default_op_co_id")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if opCoID := c.Query("opCoId"); opCoID != "" {
		query = query.Where("default_op_co_id = ?", opCoID)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var omExpenses []models.OMExpense
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "category", "created_at")).
		Preload("DefaultOpCo").
		Preload("Items.Records", func(db *gorm.DB) *gorm.DB { return db.Order("month asc") }).
		Find(&omExpenses).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if omExpenses == nil {
		omExpenses = make([]models.OMExpense, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, omExpenses, totalRows))
}

// DeleteOMExpenseHandler removes an O&M expense with its items and records.
func DeleteOMExpenseHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var omExpense models.OMExpense
		if err := tx.First(&omExpense, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("O&M expense")
			}
			return apperr.Storage(err)
		}
		if !identity.CanAccessOpCo(omExpense.DefaultOpCoID) {
			return apperr.PermissionDenied("operating company is outside your scope")
		}

		var itemIDs []uint
		if err := tx.Model(&models.OMExpenseItem{}).
			Where("om_expense_id = ?", id).Pluck("id", &itemIDs).Error; err != nil {
			return apperr.Storage(err)
		}
		if len(itemIDs) > 0 {
			if err := tx.Unscoped().Where("om_expense_item_id IN ?", itemIDs).
				Delete(&models.OMExpenseRecord{}).Error; err != nil {
				return apperr.Storage(err)
			}
			if err := tx.Unscoped().Where("om_expense_id = ?", id).
				Delete(&models.OMExpenseItem{}).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		if err := tx.Unscoped().Delete(&omExpense).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "O&M expense deleted"})
}

var monthHeaders = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ExportOMExpensesHandler renders the scoped O&M grid as an XLSX workbook:
// one row per item, budget column, twelve monthly actuals and a YTD total.
func ExportOMExpensesHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var omExpenses []models.OMExpense
	err := identity.ScopeOpCos(config.DB.Model(&models.OMExpense{}), "default_op_co_id").
		Preload("DefaultOpCo").
		Preload("Items.Records", func(db *gorm.DB) *gorm.DB { return db.Order("month asc") }).
		Order("category asc").
		Find(&omExpenses).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "O&M Expenses"
	f.SetSheetName("Sheet1", sheet)

	headers := append([]string{"Category", "OpCo", "Item", "Budget"}, monthHeaders...)
	headers = append(headers, "Total")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, om := range omExpenses {
		for _, item := range om.Items {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), om.Category)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), om.DefaultOpCo.Code)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.Name)
			budget, _ := item.BudgetAmount.Float64()
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), budget)

			total := decimal.Zero
			for _, record := range item.Records {
				if record.Month < 1 || record.Month > 12 {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(4+record.Month, row)
				amount, _ := record.Amount.Float64()
				f.SetCellValue(sheet, cell, amount)
				total = total.Add(record.Amount)
			}
			cell, _ := excelize.CoordinatesToCellName(17, row)
			ytd, _ := total.Float64()
			f.SetCellValue(sheet, cell, ytd)
			row++
		}
	}

	filename := fmt.Sprintf("om_expenses_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		respondError(c, apperr.Storage(err))
	}
}
