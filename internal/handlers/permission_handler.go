package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/middleware"
	"itbudget/models"
)

// ListPermissionsHandler returns the catalog grouped by category.
func ListPermissionsHandler(c *gin.Context) {
	var permissions []models.Permission
	if err := config.DB.Order("category asc, name asc").Find(&permissions).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	grouped := make(map[string][]models.Permission)
	for _, p := range permissions {
		grouped[p.Category] = append(grouped[p.Category], p)
	}
	c.JSON(http.StatusOK, grouped)
}

func CreatePermissionHandler(c *gin.Context) {
	var input struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Category    string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	permission := models.Permission{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
	}
	if err := config.DB.Create(&permission).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, permission)
}

type GrantInput struct {
	Code    string `json:"code" binding:"required"`
	Granted *bool  `json:"granted" binding:"required"`
}

// SetUserGrantsHandler replaces a user's per-code overrides and drops the
// cached identity so the change takes effect on the next request.
func SetUserGrantsHandler(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	var inputs []GrantInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return apperr.NotFound("user")
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).
			Delete(&models.PermissionGrant{}).Error; err != nil {
			return apperr.Storage(err)
		}
		for _, input := range inputs {
			grant := models.PermissionGrant{
				UserID:  userID,
				Code:    input.Code,
				Granted: *input.Granted,
			}
			if err := tx.Create(&grant).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.InvalidateIdentity(userID)
	c.JSON(http.StatusOK, gin.H{"message": "Grants updated"})
}

func ListUserGrantsHandler(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	var grants []models.PermissionGrant
	if err := config.DB.Where("user_id = ?", userID).Find(&grants).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if grants == nil {
		grants = make([]models.PermissionGrant, 0)
	}
	c.JSON(http.StatusOK, grants)
}

// SetUserOpCosHandler replaces a user's operating-company allowlist.
func SetUserOpCosHandler(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	var input struct {
		OpCoIDs []uint `json:"opCoIds"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return apperr.NotFound("user")
		}
		if len(input.OpCoIDs) > 0 {
			var count int64
			if err := tx.Model(&models.OpCo{}).Where("id IN ?", input.OpCoIDs).Count(&count).Error; err != nil {
				return apperr.Storage(err)
			}
			if int(count) != len(input.OpCoIDs) {
				return apperr.Validation("opCoIds contains unknown operating companies")
			}
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).
			Delete(&models.OpCoGrant{}).Error; err != nil {
			return apperr.Storage(err)
		}
		for _, opCoID := range input.OpCoIDs {
			if err := tx.Create(&models.OpCoGrant{UserID: userID, OpCoID: opCoID}).Error; err != nil {
				return apperr.Storage(err)
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.InvalidateIdentity(userID)
	c.JSON(http.StatusOK, gin.H{"message": "OpCo scope updated"})
}

func ListUserOpCosHandler(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	var opCoIDs []uint
	if err := config.DB.Model(&models.OpCoGrant{}).
		Where("user_id = ?", userID).Pluck("op_co_id", &opCoIDs).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if opCoIDs == nil {
		opCoIDs = make([]uint, 0)
	}
	c.JSON(http.StatusOK, gin.H{"opCoIds": opCoIDs})
}
