package api

import (
	"net/http"
	"time"

	"github.com/elcrypto/scoring-analyzer/internal/database"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, handler *Handler) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			analysis.POST("/:period/run", handler.RunAnalysis)
			analysis.GET("/status", handler.AnalysisStatus)
		}

		outcomes := v1.Group("/outcomes")
		{
			outcomes.POST("/recalculate", handler.RecalculateOutcomes)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Services.Database = "unavailable"
		}
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Services.Redis = "unavailable"
		}

		status := http.StatusOK
		if response.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	}
}
