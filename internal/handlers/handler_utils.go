package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"itbudget/internal/apperr"
)

// respondError translates a typed outcome into the wire response. Storage
// failures are logged with context and surfaced opaquely.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperr.KindStorage {
			slog.Error("storage failure", "path", c.FullPath(), "error", appErr.Err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
		body := gin.H{"error": appErr.Message}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		c.JSON(apperr.HTTPStatus(appErr), body)
		return
	}
	slog.Error("unexpected error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

func parseUintForm(c *gin.Context, field string) (uint, error) {
	v, err := strconv.Atoi(c.PostForm(field))
	if err != nil || v <= 0 {
		return 0, errors.New(field + " must be a positive integer")
	}
	return uint(v), nil
}
