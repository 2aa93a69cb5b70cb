package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"itbudget/config"
	"itbudget/internal/routes"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config.LoadJwtKey()
	config.ConnectDB()
	config.MigrateDB()
	config.ConnectRedis()

	r := gin.Default()
	r.MaxMultipartMemory = 16 << 20

	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	slog.Info("starting server", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
