package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/ledger"
	"itbudget/internal/workflow"
	"itbudget/models"
)

type ExpenseItemInput struct {
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
}

type ExpenseInput struct {
	ProjectID         uint               `json:"projectId" binding:"required"`
	CategoryID        uint               `json:"categoryId" binding:"required"`
	PurchaseOrderID   *uint              `json:"purchaseOrderId"`
	Currency          string             `json:"currency" binding:"required,len=3"`
	RequiresChargeOut bool               `json:"requiresChargeOut"`
	IsOperationMaint  bool               `json:"isOperationMaint"`
	Items             []ExpenseItemInput `json:"items" binding:"required,min=1"`
}

func buildExpenseItems(inputs []ExpenseItemInput) ([]models.ExpenseItem, decimal.Decimal, error) {
	items := make([]models.ExpenseItem, 0, len(inputs))
	total := decimal.Zero
	for i, input := range inputs {
		if input.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, apperr.ValidationFields("amount must be positive",
				map[string]string{"items": "amount must be positive"})
		}
		items = append(items, models.ExpenseItem{
			Description: input.Description,
			Amount:      input.Amount,
			SortOrder:   i + 1,
		})
		total = total.Add(input.Amount)
	}
	return items, total, nil
}

// CreateExpenseHandler records a cost against a category. The ledger check
// runs inside the same transaction as the insert, so two concurrent creates
// cannot both squeeze into the last of a category's budget.
func CreateExpenseHandler(c *gin.Context) {
	var input ExpenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, total, err := buildExpenseItems(input.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	var expense models.Expense
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, input.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project")
			}
			return apperr.Storage(err)
		}
		if input.PurchaseOrderID != nil {
			var po models.PurchaseOrder
			if err := tx.First(&po, *input.PurchaseOrderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("purchase order")
				}
				return apperr.Storage(err)
			}
			if po.Status != string(workflow.StatusApproved) {
				return apperr.RuleViolation("purchase order %d is not approved", po.ID)
			}
		}

		if err := ledger.CheckExpenseCommit(tx, input.CategoryID, input.Currency, total, 0); err != nil {
			return err
		}

		expense = models.Expense{
			ProjectID:         input.ProjectID,
			CategoryID:        input.CategoryID,
			PurchaseOrderID:   input.PurchaseOrderID,
			Currency:          input.Currency,
			TotalAmount:       total,
			Status:            string(workflow.StatusDraft),
			RequiresChargeOut: input.RequiresChargeOut,
			IsOperationMaint:  input.IsOperationMaint,
			Items:             items,
		}
		if err := tx.Create(&expense).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

type ExpenseUpdateInput struct {
	CategoryID        uint               `json:"categoryId" binding:"required"`
	PurchaseOrderID   *uint              `json:"purchaseOrderId"`
	Currency          string             `json:"currency" binding:"required,len=3"`
	RequiresChargeOut bool               `json:"requiresChargeOut"`
	IsOperationMaint  bool               `json:"isOperationMaint"`
	ObservedStatus    string             `json:"observedStatus" binding:"required"`
	Items             []ExpenseItemInput `json:"items" binding:"required,min=1"`
}

// UpdateExpenseHandler replaces a Draft expense's item set. The ledger check
// excludes the expense's own previous total; the header write is conditional
// on the caller's observed status. The project binding is fixed at creation.
func UpdateExpenseHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input ExpenseUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, total, err := buildExpenseItems(input.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	var expense models.Expense
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&expense, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("expense")
			}
			return apperr.Storage(err)
		}
		if expense.Status != input.ObservedStatus {
			return apperr.Conflict("expense status changed, re-read and retry")
		}
		if !workflow.Editable(workflow.DocExpense, workflow.Status(expense.Status)) {
			return apperr.RuleViolation("expense in status %s is read-only", expense.Status)
		}

		if err := ledger.CheckExpenseCommit(tx, input.CategoryID, input.Currency, total, expense.ID); err != nil {
			return err
		}

		result := tx.Model(&models.Expense{}).
			Where("id = ? AND status = ?", expense.ID, input.ObservedStatus).
			Updates(map[string]any{
				"category_id":         input.CategoryID,
				"purchase_order_id":   input.PurchaseOrderID,
				"currency":            input.Currency,
				"total_amount":        total,
				"requires_charge_out": input.RequiresChargeOut,
				"is_operation_maint":  input.IsOperationMaint,
			})
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("expense status changed, re-read and retry")
		}
		expense.CategoryID = input.CategoryID
		expense.PurchaseOrderID = input.PurchaseOrderID
		expense.Currency = input.Currency
		expense.TotalAmount = total
		expense.RequiresChargeOut = input.RequiresChargeOut
		expense.IsOperationMaint = input.IsOperationMaint

		if err := tx.Unscoped().Where("expense_id = ?", expense.ID).
			Delete(&models.ExpenseItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		for i := range items {
			items[i].ExpenseID = expense.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperr.Storage(err)
		}
		expense.Items = items
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func GetExpenseHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var expense models.Expense
	err := config.DB.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		First(&expense, id).Error
	if err != nil {
		respondError(c, apperr.NotFound("expense"))
		return
	}
	c.JSON(http.StatusOK, expense)
}

func expenseListQuery(c *gin.Context) *gorm.DB {
	query := config.DB.Model(&models.Expense{})
	if projectID := c.Query("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if categoryID := c.Query("categoryId"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if v := c.Query("requiresChargeOut"); v == "true" {
		query = query.Where("requires_charge_out = ?", true)
	} else if v == "false" {
		query = query.Where("requires_charge_out = ?", false)
	}
	return query
}

func ListExpensesHandler(c *gin.Context) {
	query := expenseListQuery(c)

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var expenses []models.Expense
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "total_amount", "status", "created_at")).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Find(&expenses).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if expenses == nil {
		expenses = make([]models.Expense, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, expenses, totalRows))
}

// DeleteExpenseHandler hard-deletes a Draft expense with its items.
func DeleteExpenseHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var expense models.Expense
		if err := tx.First(&expense, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("expense")
			}
			return apperr.Storage(err)
		}
		if expense.Status != string(workflow.StatusDraft) {
			return apperr.RuleViolation("only Draft expenses can be deleted")
		}
		var allocations int64
		if err := tx.Model(&models.ChargeOutItem{}).
			Where("expense_id = ?", expense.ID).Count(&allocations).Error; err != nil {
			return apperr.Storage(err)
		}
		if allocations > 0 {
			return apperr.RuleViolation("expense is referenced by charge-outs and cannot be deleted")
		}
		if err := tx.Unscoped().Where("expense_id = ?", expense.ID).
			Delete(&models.ExpenseItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Unscoped().Delete(&expense).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted"})
}

// UploadExpenseReceiptHandler stores the receipt file under a random name
// and records the URL on the expense.
func UploadExpenseReceiptHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var expense models.Expense
	if err := config.DB.First(&expense, id).Error; err != nil {
		respondError(c, apperr.NotFound("expense"))
		return
	}
	if !workflow.Editable(workflow.DocExpense, workflow.Status(expense.Status)) {
		respondError(c, apperr.RuleViolation("expense in status %s is read-only", expense.Status))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.New().String() + ext
	dst := filepath.Join(config.UploadDir(), "receipts", filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	expense.ReceiptFileURL = "/uploads/receipts/" + filename
	if err := config.DB.Model(&expense).Update("receipt_file_url", expense.ReceiptFileURL).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"receiptFileUrl": expense.ReceiptFileURL})
}

// csvField keeps free-text values from breaking the semicolon separation.
func csvField(s string) string {
	return strings.ReplaceAll(s, ";", ",")
}

// ExportExpensesHandler streams the filtered expense list as a semicolon
// separated CSV. The UTF-8 BOM keeps Excel from mangling the encoding.
func ExportExpensesHandler(c *gin.Context) {
	var expenses []models.Expense
	err := expenseListQuery(c).
		Preload("Project").
		Preload("Category").
		Order("created_at DESC").
		Find(&expenses).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("\uFEFF")
	sb.WriteString("ID;Project;Category;Currency;Total;Status;RequiresChargeOut;Created\n")
	for _, e := range expenses {
		sb.WriteString(fmt.Sprintf("%d;%s;%s;%s;%s;%s;%t;%s\n",
			e.ID,
			csvField(e.Project.Name),
			csvField(e.Category.Code),
			e.Currency,
			e.TotalAmount.StringFixed(2),
			e.Status,
			e.RequiresChargeOut,
			e.CreatedAt.Format("2006-01-02"),
		))
	}

	filename := fmt.Sprintf("expenses_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(sb.String()))
}
