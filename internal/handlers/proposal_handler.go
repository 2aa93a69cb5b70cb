package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/internal/approval"
	"itbudget/internal/middleware"
	"itbudget/internal/workflow"
	"itbudget/models"
)

// TransitionPayload is the body of every submit/approve/reject/request-info
// call. ObservedStatus is the status the caller last read; it is the CAS
// precondition that catches two actors racing the same document.
type TransitionPayload struct {
	ObservedStatus string `json:"observedStatus" binding:"required"`
	Comment        string `json:"comment"`
}

func bindTransition(c *gin.Context) (TransitionPayload, uint, bool) {
	var payload TransitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return payload, 0, false
	}
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return payload, 0, false
	}
	return payload, identity.UserID, true
}

type ProposalInput struct {
	ProjectID uint            `json:"projectId" binding:"required"`
	Title     string          `json:"title" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// CreateProposalHandler opens a draft proposal. One non-terminal proposal
// drives a project's approved budget, so a second active one is refused.
func CreateProposalHandler(c *gin.Context) {
	var input ProposalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, apperr.Validation("amount must be positive"))
		return
	}

	var proposal models.BudgetProposal
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, input.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project")
			}
			return apperr.Storage(err)
		}

		var active int64
		err := tx.Model(&models.BudgetProposal{}).
			Where("project_id = ? AND status NOT IN ?", input.ProjectID,
				[]string{string(workflow.StatusApproved), string(workflow.StatusRejected)}).
			Count(&active).Error
		if err != nil {
			return apperr.Storage(err)
		}
		if active > 0 {
			return apperr.RuleViolation("project already has an active proposal")
		}

		proposal = models.BudgetProposal{
			ProjectID: input.ProjectID,
			Title:     input.Title,
			Amount:    input.Amount,
			Status:    string(workflow.StatusDraft),
		}
		if err := tx.Create(&proposal).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

// UpdateProposalHandler edits title and amount while the proposal is still
// editable (Draft or MoreInfoRequired). The caller's observed status is the
// write precondition: a transition committing in between turns the update
// into a Conflict instead of silently rewinding it.
func UpdateProposalHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		Title          string          `json:"title" binding:"required"`
		Amount         decimal.Decimal `json:"amount" binding:"required"`
		ObservedStatus string          `json:"observedStatus" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, apperr.Validation("amount must be positive"))
		return
	}

	var proposal models.BudgetProposal
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&proposal, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("proposal")
			}
			return apperr.Storage(err)
		}
		if proposal.Status != input.ObservedStatus {
			return apperr.Conflict("proposal status changed, re-read and retry")
		}
		if !workflow.Editable(workflow.DocProposal, workflow.Status(proposal.Status)) {
			return apperr.RuleViolation("proposal in status %s is read-only", proposal.Status)
		}

		result := tx.Model(&models.BudgetProposal{}).
			Where("id = ? AND status = ?", proposal.ID, input.ObservedStatus).
			Updates(map[string]any{"title": input.Title, "amount": input.Amount})
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("proposal status changed, re-read and retry")
		}
		proposal.Title = input.Title
		proposal.Amount = input.Amount
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func proposalTransition(c *gin.Context, action workflow.Action, effects func(id uint) []approval.Effect) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	payload, actorID, ok := bindTransition(c)
	if !ok {
		return
	}

	var effectList []approval.Effect
	if effects != nil {
		effectList = effects(id)
	}
	next, err := approval.Apply(config.DB, &models.BudgetProposal{}, approval.Request{
		Doc:      workflow.DocProposal,
		ID:       id,
		Action:   action,
		ActorID:  actorID,
		Comment:  payload.Comment,
		Observed: workflow.Status(payload.ObservedStatus),
	}, nil, effectList)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": next})
}

func SubmitProposalHandler(c *gin.Context) {
	proposalTransition(c, workflow.ActionSubmit, nil)
}

// ApproveProposalHandler approves and activates the project's effective
// budget in the same transaction.
func ApproveProposalHandler(c *gin.Context) {
	proposalTransition(c, workflow.ActionApprove, func(id uint) []approval.Effect {
		return []approval.Effect{approval.ActivateProjectBudget(id)}
	})
}

func RejectProposalHandler(c *gin.Context) {
	proposalTransition(c, workflow.ActionReject, nil)
}

func RequestProposalInfoHandler(c *gin.Context) {
	proposalTransition(c, workflow.ActionRequestInfo, nil)
}

// UploadProposalAttachmentHandler stores the supporting document while the
// proposal is still editable.
func UploadProposalAttachmentHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var proposal models.BudgetProposal
	if err := config.DB.First(&proposal, id).Error; err != nil {
		respondError(c, apperr.NotFound("proposal"))
		return
	}
	if !workflow.Editable(workflow.DocProposal, workflow.Status(proposal.Status)) {
		respondError(c, apperr.RuleViolation("proposal in status %s is read-only", proposal.Status))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.New().String() + ext
	dst := filepath.Join(config.UploadDir(), "proposals", filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	proposal.FileURL = "/uploads/proposals/" + filename
	if err := config.DB.Model(&proposal).Update("file_url", proposal.FileURL).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileUrl": proposal.FileURL})
}

// GetProposalHandler returns the proposal with its audit trail.
func GetProposalHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var proposal models.BudgetProposal
	if err := config.DB.First(&proposal, id).Error; err != nil {
		respondError(c, apperr.NotFound("proposal"))
		return
	}
	trail, err := approval.Trail(config.DB, workflow.DocProposal, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal, "auditTrail": trail})
}

func ListProposalsHandler(c *gin.Context) {
	query := config.DB.Model(&models.BudgetProposal{})
	if projectID := c.Query("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var proposals []models.BudgetProposal
	err := query.Scopes(Paginate(c), SortBy(c, "created_at DESC", "title", "amount", "status", "created_at")).
		Find(&proposals).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if proposals == nil {
		proposals = make([]models.BudgetProposal, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, proposals, totalRows))
}

// DeleteProposalHandler hard-deletes a Draft proposal.
func DeleteProposalHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var proposal models.BudgetProposal
		if err := tx.First(&proposal, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("proposal")
			}
			return apperr.Storage(err)
		}
		if proposal.Status != string(workflow.StatusDraft) {
			return apperr.RuleViolation("only Draft proposals can be deleted")
		}
		if err := tx.Unscoped().Delete(&proposal).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Proposal deleted"})
}
