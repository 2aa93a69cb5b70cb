package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/workflow"
	"itbudget/models"
)

// ApprovalQueueHandler returns the count of documents waiting for a decision
// per document family. Charge-outs are counted within the actor's OpCo scope
// only, matching what the list endpoints would show.
func ApprovalQueueHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var proposals int64
	if err := config.DB.Model(&models.BudgetProposal{}).
		Where("status = ?", string(workflow.StatusSubmitted)).
		Count(&proposals).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var orders int64
	if err := config.DB.Model(&models.PurchaseOrder{}).
		Where("status = ?", string(workflow.StatusSubmitted)).
		Count(&orders).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var chargeOuts int64
	if err := identity.ScopeOpCos(config.DB.Model(&models.ChargeOut{}), "op_co_id").
		Where("status = ?", string(workflow.StatusSubmitted)).
		Count(&chargeOuts).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"proposals":      proposals,
		"purchaseOrders": orders,
		"chargeOuts":     chargeOuts,
		"total":          proposals + orders + chargeOuts,
	})
}
