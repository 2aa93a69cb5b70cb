package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"itbudget/config"
	"itbudget/internal/middleware"
)

// SetupRoutes wires the public endpoints and the authenticated API group.
func SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/uploads", config.UploadDir())

	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware())
	{
		RegisterAPIRoutes(authRequired)
	}
}
