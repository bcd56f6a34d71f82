package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nutriscan/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Capture.MaxImageBytes

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.POST("/search", handler.Search)
		v1.GET("/search/state", handler.GetState)
		v1.GET("/search/stream", handler.StreamState)
		v1.GET("/products/:code", handler.GetProduct)

		scan := v1.Group("/scan")
		{
			scan.POST("/barcode", handler.ScanBarcode)
			scan.GET("/barcode/live", handler.LiveScan)
			scan.POST("/image", handler.AnalyzeImage)
		}
	}

	return router
}
