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
	"itbudget/internal/middleware"
	"itbudget/internal/scope"
	"itbudget/internal/workflow"
	"itbudget/models"
)

type ChargeOutItemInput struct {
	ExpenseID uint            `json:"expenseId" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

type ChargeOutInput struct {
	ProjectID uint                 `json:"projectId" binding:"required"`
	OpCoID    uint                 `json:"opCoId" binding:"required"`
	Items     []ChargeOutItemInput `json:"items"`
}

func requireIdentity(c *gin.Context) (*scope.Identity, bool) {
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	return identity, true
}

// CreateChargeOutHandler opens a draft charge-out against an operating
// company on the actor's allowlist. Every item is validated against the
// referenced expense's unallocated remainder.
func CreateChargeOutHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var input ChargeOutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !identity.CanAccessOpCo(input.OpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}

	var chargeOut models.ChargeOut
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, input.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project")
			}
			return apperr.Storage(err)
		}
		var opCo models.OpCo
		if err := tx.First(&opCo, input.OpCoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("operating company")
			}
			return apperr.Storage(err)
		}

		items := make([]models.ChargeOutItem, 0, len(input.Items))
		for _, item := range input.Items {
			if err := approval.CheckChargeOutAllocation(tx, item.ExpenseID, item.Amount, 0); err != nil {
				return err
			}
			items = append(items, models.ChargeOutItem{
				ExpenseID: item.ExpenseID,
				Amount:    item.Amount,
			})
		}

		chargeOut = models.ChargeOut{
			ProjectID: input.ProjectID,
			OpCoID:    input.OpCoID,
			Status:    string(workflow.StatusDraft),
			Items:     items,
		}
		if err := tx.Create(&chargeOut).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chargeOut)
}

type ChargeOutUpdateInput struct {
	OpCoID         uint                 `json:"opCoId" binding:"required"`
	ObservedStatus string               `json:"observedStatus" binding:"required"`
	Items          []ChargeOutItemInput `json:"items"`
}

// UpdateChargeOutHandler replaces the item set of a Draft charge-out. Each
// allocation is re-checked against the expense remainder, excluding this
// charge-out's own previous claims; the header write is conditional on the
// caller's observed status.
func UpdateChargeOutHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input ChargeOutUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !identity.CanAccessOpCo(input.OpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}

	var chargeOut models.ChargeOut
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&chargeOut, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("charge-out")
			}
			return apperr.Storage(err)
		}
		if !identity.CanAccessOpCo(chargeOut.OpCoID) {
			return apperr.PermissionDenied("operating company is outside your scope")
		}
		if chargeOut.Status != input.ObservedStatus {
			return apperr.Conflict("charge-out status changed, re-read and retry")
		}
		if !workflow.Editable(workflow.DocChargeOut, workflow.Status(chargeOut.Status)) {
			return apperr.RuleViolation("charge-out in status %s is read-only", chargeOut.Status)
		}

		items := make([]models.ChargeOutItem, 0, len(input.Items))
		for _, item := range input.Items {
			if err := approval.CheckChargeOutAllocation(tx, item.ExpenseID, item.Amount, chargeOut.ID); err != nil {
				return err
			}
			items = append(items, models.ChargeOutItem{
				ChargeOutID: chargeOut.ID,
				ExpenseID:   item.ExpenseID,
				Amount:      item.Amount,
			})
		}

		result := tx.Model(&models.ChargeOut{}).
			Where("id = ? AND status = ?", chargeOut.ID, input.ObservedStatus).
			Updates(map[string]any{"op_co_id": input.OpCoID})
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("charge-out status changed, re-read and retry")
		}
		chargeOut.OpCoID = input.OpCoID

		if err := tx.Unscoped().Where("charge_out_id = ?", chargeOut.ID).
			Delete(&models.ChargeOutItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		chargeOut.Items = items
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chargeOut)
}

func chargeOutTransition(c *gin.Context, action workflow.Action) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var chargeOut models.ChargeOut
	if err := config.DB.First(&chargeOut, id).Error; err != nil {
		respondError(c, apperr.NotFound("charge-out"))
		return
	}
	if !identity.CanAccessOpCo(chargeOut.OpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}

	var payload TransitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var guards []approval.Guard
	var effects []approval.Effect
	switch action {
	case workflow.ActionSubmit:
		guards = append(guards, approval.ChargeOutHasItems(id), approval.ChargeOutItemsEligible(id))
	case workflow.ActionApprove:
		guards = append(guards, approval.ChargeOutItemsEligible(id))
		effects = append(effects, approval.MarkChargedOutExpenses(id))
	}

	next, err := approval.Apply(config.DB, &models.ChargeOut{}, approval.Request{
		Doc:      workflow.DocChargeOut,
		ID:       id,
		Action:   action,
		ActorID:  identity.UserID,
		Comment:  payload.Comment,
		Observed: workflow.Status(payload.ObservedStatus),
	}, guards, effects)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": next})
}

func SubmitChargeOutHandler(c *gin.Context) {
	chargeOutTransition(c, workflow.ActionSubmit)
}

func ApproveChargeOutHandler(c *gin.Context) {
	chargeOutTransition(c, workflow.ActionApprove)
}

func RejectChargeOutHandler(c *gin.Context) {
	chargeOutTransition(c, workflow.ActionReject)
}

func GetChargeOutHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var chargeOut models.ChargeOut
	err := config.DB.Preload("OpCo").Preload("Items").First(&chargeOut, id).Error
	if err != nil {
		respondError(c, apperr.NotFound("charge-out"))
		return
	}
	if !identity.CanAccessOpCo(chargeOut.OpCoID) {
		respondError(c, apperr.PermissionDenied("operating company is outside your scope"))
		return
	}
	trail, err := approval.Trail(config.DB, workflow.DocChargeOut, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chargeOut":   chargeOut,
		"totalAmount": chargeOut.TotalAmount(),
		"auditTrail":  trail,
	})
}

// ListChargeOutsHandler returns charge-outs limited to the actor's OpCo
// allowlist. An empty allowlist yields an empty page, not an error.
func ListChargeOutsHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	query := identity.ScopeOpCos(config.DB.Model(&models.ChargeOut{}), "op_co_id")
	if projectID := c.Query("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if opCoID := c.Query("opCoId"); opCoID != "" {
		query = query.Where("op_co_id = ?", opCoID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var chargeOuts []models.ChargeOut
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "status", "created_at")).
		Preload("OpCo").
		Preload("Items").
		Find(&chargeOuts).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if chargeOuts == nil {
		chargeOuts = make([]models.ChargeOut, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, chargeOuts, totalRows))
}

// DeleteChargeOutHandler hard-deletes a Draft charge-out with its items.
func DeleteChargeOutHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var chargeOut models.ChargeOut
		if err := tx.First(&chargeOut, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("charge-out")
			}
			return apperr.Storage(err)
		}
		if !identity.CanAccessOpCo(chargeOut.OpCoID) {
			return apperr.PermissionDenied("operating company is outside your scope")
		}
		if chargeOut.Status != string(workflow.StatusDraft) {
			return apperr.RuleViolation("only Draft charge-outs can be deleted")
		}
		if err := tx.Unscoped().Where("charge_out_id = ?", chargeOut.ID).
			Delete(&models.ChargeOutItem{}).Error; err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Unscoped().Delete(&chargeOut).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Charge-out deleted"})
}
