package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/approval"
	"itbudget/internal/workflow"
	"itbudget/models"
)

type PurchaseOrderItemInput struct {
	ItemName  string          `json:"itemName" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
}

type PurchaseOrderInput struct {
	ProjectID uint                     `json:"projectId" binding:"required"`
	VendorID  uint                     `json:"vendorId" binding:"required"`
	QuoteID   *uint                    `json:"quoteId"`
	Items     []PurchaseOrderItemInput `json:"items"`
}

func buildPOItems(inputs []PurchaseOrderItemInput) ([]models.PurchaseOrderItem, error) {
	items := make([]models.PurchaseOrderItem, 0, len(inputs))
	for i, input := range inputs {
		if input.Quantity <= 0 {
			return nil, apperr.ValidationFields("quantity must be positive",
				map[string]string{"items": "quantity must be positive"})
		}
		if input.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, apperr.ValidationFields("unitPrice must be positive",
				map[string]string{"items": "unitPrice must be positive"})
		}
		items = append(items, models.PurchaseOrderItem{
			ItemName:  input.ItemName,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			SortOrder: i + 1,
		})
	}
	return items, nil
}

// CreatePurchaseOrderHandler creates header and items in one transaction.
// There is no partial-write path: an invalid item aborts everything.
func CreatePurchaseOrderHandler(c *gin.Context) {
	var input PurchaseOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := buildPOItems(input.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	var po models.PurchaseOrder
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, input.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project")
			}
			return apperr.Storage(err)
		}
		var vendor models.Vendor
		if err := tx.First(&vendor, input.VendorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("vendor")
			}
			return apperr.Storage(err)
		}
		if input.QuoteID != nil {
			var quote models.Quote
			if err := tx.First(&quote, *input.QuoteID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("quote")
				}
				return apperr.Storage(err)
			}
		}

		po = models.PurchaseOrder{
			ProjectID: input.ProjectID,
			VendorID:  input.VendorID,
			QuoteID:   input.QuoteID,
			Status:    string(workflow.StatusDraft),
			Items:     items,
		}
		if err := tx.Create(&po).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

type PurchaseOrderUpdateInput struct {
	VendorID       uint                     `json:"vendorId" binding:"required"`
	QuoteID        *uint                    `json:"quoteId"`
	ObservedStatus string                   `json:"observedStatus" binding:"required"`
	Items          []PurchaseOrderItemInput `json:"items"`
}

// UpdatePurchaseOrderHandler replaces header fields and the whole item set
// while the order is still in Draft. The header write is conditional on the
// caller's observed status, so a submit racing the edit yields Conflict.
func UpdatePurchaseOrderHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input PurchaseOrderUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := buildPOItems(input.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	var po models.PurchaseOrder
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&po, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("purchase order")
			}
			return apperr.Storage(err)
		}
		if po.Status != input.ObservedStatus {
			return apperr.Conflict("purchase order status changed, re-read and retry")
		}
		if !workflow.Editable(workflow.DocPurchaseOrder, workflow.Status(po.Status)) {
			return apperr.RuleViolation("purchase order in status %s is read-only", po.Status)
		}

		result := tx.Model(&models.PurchaseOrder{}).
			Where("id = ? AND status = ?", po.ID, input.ObservedStatus).
			Updates(map[string]any{"vendor_id": input.VendorID, "quote_id": input.QuoteID})
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("purchase order status changed, re-read and retry")
		}
		po.VendorID = input.VendorID
		po.QuoteID = input.QuoteID

		if err := tx.Unscoped().Where("purchase_order_id = ?", po.ID).
			Delete(&models.PurchaseOrderItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		for i := range items {
			items[i].PurchaseOrderID = po.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		po.Items = items
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func purchaseOrderTransition(c *gin.Context, action workflow.Action) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	payload, actorID, ok := bindTransition(c)
	if !ok {
		return
	}

	var guards []approval.Guard
	if action == workflow.ActionSubmit {
		guards = append(guards, approval.PurchaseOrderHasItems(id))
	}

	next, err := approval.Apply(config.DB, &models.PurchaseOrder{}, approval.Request{
		Doc:      workflow.DocPurchaseOrder,
		ID:       id,
		Action:   action,
		ActorID:  actorID,
		Comment:  payload.Comment,
		Observed: workflow.Status(payload.ObservedStatus),
	}, guards, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": next})
}

func SubmitPurchaseOrderHandler(c *gin.Context) {
	purchaseOrderTransition(c, workflow.ActionSubmit)
}

func ApprovePurchaseOrderHandler(c *gin.Context) {
	purchaseOrderTransition(c, workflow.ActionApprove)
}

// RejectPurchaseOrderHandler returns a submitted order to Draft. The
// mandatory comment survives in the audit trail.
func RejectPurchaseOrderHandler(c *gin.Context) {
	purchaseOrderTransition(c, workflow.ActionReject)
}

func GetPurchaseOrderHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var po models.PurchaseOrder
	err := config.DB.Preload("Vendor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		First(&po, id).Error
	if err != nil {
		respondError(c, apperr.NotFound("purchase order"))
		return
	}
	trail, err := approval.Trail(config.DB, workflow.DocPurchaseOrder, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchaseOrder": po,
		"totalAmount":   po.TotalAmount(),
		"auditTrail":    trail,
	})
}

func ListPurchaseOrdersHandler(c *gin.Context) {
	query := config.DB.Model(&models.PurchaseOrder{})
	if projectID := c.Query("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if vendorID := c.Query("vendorId"); vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var orders []models.PurchaseOrder
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "status", "created_at")).
		Preload("Vendor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Find(&orders).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if orders == nil {
		orders = make([]models.PurchaseOrder, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, orders, totalRows))
}

// DeletePurchaseOrderHandler hard-deletes a Draft order with its items.
func DeletePurchaseOrderHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var po models.PurchaseOrder
		if err := tx.First(&po, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("purchase order")
			}
			return apperr.Storage(err)
		}
		if po.Status != string(workflow.StatusDraft) {
			return apperr.RuleViolation("only Draft purchase orders can be deleted")
		}
		if err := tx.Unscoped().Where("purchase_order_id = ?", po.ID).
			Delete(&models.PurchaseOrderItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Unscoped().Delete(&po).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Purchase order deleted"})
}
