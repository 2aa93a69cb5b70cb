package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/models"
)

type OpCoInput struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

func CreateOpCoHandler(c *gin.Context) {
	var input OpCoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opCo := models.OpCo{Name: input.Name, Code: input.Code}
	if err := config.DB.Create(&opCo).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, opCo)
}

// ListOpCosHandler returns the full catalog. Record-level scoping applies to
// charge-outs and O&M expenses, not to the catalog itself.
func ListOpCosHandler(c *gin.Context) {
	var opCos []models.OpCo
	if err := config.DB.Order("code asc").Find(&opCos).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, opCos)
}

func UpdateOpCoHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input OpCoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var opCo models.OpCo
	if err := config.DB.First(&opCo, id).Error; err != nil {
		respondError(c, apperr.NotFound("operating company"))
		return
	}
	opCo.Name = input.Name
	opCo.Code = input.Code
	if err := config.DB.Save(&opCo).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, opCo)
}

// DeleteOpCoHandler removes an operating company nothing references.
func DeleteOpCoHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var chargeOuts int64
	if err := config.DB.Model(&models.ChargeOut{}).Where("op_co_id = ?", id).Count(&chargeOuts).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	var omExpenses int64
	if err := config.DB.Model(&models.OMExpense{}).Where("default_op_co_id = ?", id).Count(&omExpenses).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if chargeOuts > 0 || omExpenses > 0 {
		respondError(c, apperr.RuleViolation("operating company is referenced and cannot be deleted"))
		return
	}

	result := config.DB.Delete(&models.OpCo{}, id)
	if result.Error != nil {
		respondError(c, apperr.Storage(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperr.NotFound("operating company"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Operating company deleted"})
}
