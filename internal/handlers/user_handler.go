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

// CurrentUserHandler returns the resolved identity of the caller.
func CurrentUserHandler(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, identity)
}

func ListUsersHandler(c *gin.Context) {
	query := config.DB.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		query = query.Where("login LIKE ? OR full_name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var users []models.User
	err := query.Scopes(Paginate(c), SortBy(c, "login ASC", "login", "full_name", "created_at")).
		Preload("Role").
		Find(&users).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if users == nil {
		users = make([]models.User, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, users, totalRows))
}

func GetUserHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var user models.User
	if err := config.DB.Preload("Role.Permissions").First(&user, id).Error; err != nil {
		respondError(c, apperr.NotFound("user"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetUserRoleHandler reassigns a user's role and drops the cached identity.
func SetUserRoleHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input struct {
		RoleID uint `json:"roleId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, input.RoleID).Error; err != nil {
			return apperr.NotFound("role")
		}
		result := tx.Model(&models.User{}).Where("id = ?", id).Update("role_id", input.RoleID)
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("user")
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.InvalidateIdentity(id)
	c.JSON(http.StatusOK, gin.H{"message": "Role assigned"})
}
