package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"itbudget/config"
	"itbudget/internal/apperr"
	"itbudget/models"
)

type VendorInput struct {
	Name string `json:"name" binding:"required"`
	Bin  string `json:"bin"`
}

func CreateVendorHandler(c *gin.Context) {
	var input VendorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vendor := models.Vendor{Name: input.Name, Bin: input.Bin}
	if err := config.DB.Create(&vendor).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func ListVendorsHandler(c *gin.Context) {
	query := config.DB.Model(&models.Vendor{})
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	var vendors []models.Vendor
	err := query.Scopes(Paginate(c), SortBy(c, "name ASC", "name", "created_at")).
		Find(&vendors).Error
	if err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if vendors == nil {
		vendors = make([]models.Vendor, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, vendors, totalRows))
}

func UpdateVendorHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input VendorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var vendor models.Vendor
	if err := config.DB.First(&vendor, id).Error; err != nil {
		respondError(c, apperr.NotFound("vendor"))
		return
	}
	vendor.Name = input.Name
	vendor.Bin = input.Bin
	if err := config.DB.Save(&vendor).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusOK, vendor)
}

// DeleteVendorHandler removes a vendor no purchase order references.
func DeleteVendorHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var orders int64
	if err := config.DB.Model(&models.PurchaseOrder{}).Where("vendor_id = ?", id).Count(&orders).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if orders > 0 {
		respondError(c, apperr.RuleViolation("vendor has purchase orders and cannot be deleted"))
		return
	}

	result := config.DB.Delete(&models.Vendor{}, id)
	if result.Error != nil {
		respondError(c, apperr.Storage(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperr.NotFound("vendor"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vendor deleted"})
}

// UploadQuoteHandler stores a quotation file and records it against the
// vendor and project.
func UploadQuoteHandler(c *gin.Context) {
	vendorID, ok := parseID(c)
	if !ok {
		return
	}
	var vendor models.Vendor
	if err := config.DB.First(&vendor, vendorID).Error; err != nil {
		respondError(c, apperr.NotFound("vendor"))
		return
	}

	projectID, err := parseUintForm(c, "projectId")
	if err != nil {
		respondError(c, apperr.Validation("projectId is required"))
		return
	}
	var project models.Project
	if err := config.DB.First(&project, projectID).Error; err != nil {
		respondError(c, apperr.NotFound("project"))
		return
	}

	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, apperr.Validation("amount must be a positive number"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.New().String() + ext
	dst := filepath.Join(config.UploadDir(), "quotes", filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, apperr.Storage(err))
		return
	}

	quote := models.Quote{
		VendorID:  vendorID,
		ProjectID: projectID,
		Amount:    amount,
		FileURL:   "/uploads/quotes/" + filename,
	}
	if err := config.DB.Create(&quote).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func ListQuotesHandler(c *gin.Context) {
	query := config.DB.Model(&models.Quote{})
	if projectID := c.Query("projectId"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if vendorID := c.Query("vendorId"); vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var quotes []models.Quote
	if err := query.Preload("Vendor").Order("created_at DESC").Find(&quotes).Error; err != nil {
		respondError(c, apperr.Storage(err))
		return
	}
	if quotes == nil {
		quotes = make([]models.Quote, 0)
	}
	c.JSON(http.StatusOK, quotes)
}
