package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/middleware"
	"itbudget/models"
)

type RoleInput struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PermissionIDs []uint `json:"permissionIds"`
}

func CreateRoleHandler(c *gin.Context) {
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var role models.Role
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		role = models.Role{Name: input.Name, Description: input.Description}
		if err := tx.Create(&role).Error; err != nil {
			return apperr.Storage(err)
		}
		if len(input.PermissionIDs) > 0 {
			var permissions []models.Permission
			if err := tx.Find(&permissions, input.PermissionIDs).Error; err != nil {
				return apperr.Storage(err)
			}
			if len(permissions) != len(input.PermissionIDs) {
				return apperr.Validation("permissionIds contains unknown permissions")
			}
			if err := tx.Model(&role).Association("Permissions").Replace(permissions); err != nil {
				return apperr.Storage(err)
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

func ListRolesHandler(c *gin.Context) {
	var roles []models.Role
	if err := config.DB.Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, roles)
}

// UpdateRoleHandler rewrites a role's default permission set. Cached
// identities of every user holding the role are invalidated afterwards.
func UpdateRoleHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var role models.Role
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("role")
			}
			return apperr.Storage(err)
		}
		role.Name = input.Name
		role.Description = input.Description
		if err := tx.Save(&role).Error; err != nil {
			return apperr.Storage(err)
		}

		var permissions []models.Permission
		if len(input.PermissionIDs) > 0 {
			if err := tx.Find(&permissions, input.PermissionIDs).Error; err != nil {
				return apperr.Storage(err)
			}
			if len(permissions) != len(input.PermissionIDs) {
				return apperr.Validation("permissionIds contains unknown permissions")
			}
		}
		if err := tx.Model(&role).Association("Permissions").Replace(permissions); err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.InvalidateRoleIdentities(role.ID)
	c.JSON(http.StatusOK, role)
}

// DeleteRoleHandler removes a role no user holds.
func DeleteRoleHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var users int64
	if err := config.DB.Model(&models.User{}).Where("role_id = ?", id).Count(&users).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if users > 0 {
		respondError(c, apperr.RuleViolation("role is assigned to %d user(s) and cannot be deleted", users))
		return
	}

	result := config.DB.Delete(&models.Role{}, id)
	if result.Error != nil {
		respondError(c, apperr.Storage(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperr.NotFound("role"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
}
