package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/models"
)

type ProjectInput struct {
	BudgetPoolID    uint            `json:"budgetPoolId" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	ManagerID       uint            `json:"managerId" binding:"required"`
	SupervisorID    uint            `json:"supervisorId" binding:"required"`
	RequestedBudget decimal.Decimal `json:"requestedBudget" binding:"required"`
	Currency        string          `json:"currency" binding:"required,len=3"`
}

// CreateProjectHandler creates a project under a pool. The project currency
// must equal the pool currency; there is no implicit conversion anywhere.
func CreateProjectHandler(c *gin.Context) {
	var input ProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var pool models.BudgetPool
	if err := config.DB.First(&pool, input.BudgetPoolID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("budget pool"))
		} else {
			respondError(c, apperr.Storage(err))
		}
		return
	}
	if pool.Currency != input.Currency {
		respondError(c, apperr.RuleViolation(
			"project currency %s does not match pool currency %s", input.Currency, pool.Currency))
		return
	}

	project := models.Project{
		BudgetPoolID:    input.BudgetPoolID,
		Name:            input.Name,
		ManagerID:       input.ManagerID,
		SupervisorID:    input.SupervisorID,
		RequestedBudget: input.RequestedBudget,
		Currency:        input.Currency,
	}
	if err := config.DB.Create(&project).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, project)
}

// ListProjectsHandler returns projects with optional pool/manager filters.
func ListProjectsHandler(c *gin.Context) {
	query := config.DB.Model(&models.Project{})
	if poolID := c.Query("budgetPoolId"); poolID != "" {
		query = query.Where("budget_pool_id = ?", poolID)
	}
	if managerID := c.Query("managerId"); managerID != "" {
		query = query.Where("manager_id = ?", managerID)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var projects []models.Project
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "name", "requested_budget", "created_at")).
		Find(&projects).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if projects == nil {
		projects = make([]models.Project, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, projects, totalRows))
}

func GetProjectHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var project models.Project
	if err := config.DB.First(&project, id).Error; err != nil {
		respondError(c, apperr.NotFound("project"))
		return
	}
	c.JSON(http.StatusOK, project)
}

// UpdateProjectHandler edits the header. The budget pool and currency are
// fixed for the project's life.
func UpdateProjectHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var project models.Project
	if err := config.DB.First(&project, id).Error; err != nil {
		respondError(c, apperr.NotFound("project"))
		return
	}

	var input struct {
		Name            string          `json:"name" binding:"required"`
		ManagerID       uint            `json:"managerId" binding:"required"`
		SupervisorID    uint            `json:"supervisorId" binding:"required"`
		RequestedBudget decimal.Decimal `json:"requestedBudget" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project.Name = input.Name
	project.ManagerID = input.ManagerID
	project.SupervisorID = input.SupervisorID
	project.RequestedBudget = input.RequestedBudget
	if err := config.DB.Save(&project).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProjectHandler removes a project that has no documents yet.
func DeleteProjectHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for model, label := range map[interface{}]string{
			&models.BudgetProposal{}: "proposals",
			&models.PurchaseOrder{}:  "purchase orders",
			&models.Expense{}:        "expenses",
			&models.ChargeOut{}:      "charge-outs",
		} {
			var count int64
			if err := tx.Model(model).Where("project_id = ?", id).Count(&count).Error; err != nil {
				return apperr.Storage(err)
			}
			if count > 0 {
				return apperr.RuleViolation("project has %s and cannot be deleted", label)
			}
		}

		result := tx.Delete(&models.Project{}, id)
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("project")
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}
