package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-wealth/advisory_service/internal/api/handlers"
	"github.com/meridian-wealth/advisory_service/internal/api/middleware"
	"github.com/meridian-wealth/advisory_service/internal/domain/services/harvesting"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/config"
	"github.com/meridian-wealth/advisory_service/pkg/logger"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	Config            *config.Config
	Logger            *logger.Logger
	DB                *sqlx.DB
	HarvestingService *harvesting.Service
}

// SetupRoutes configures all application routes
func SetupRoutes(deps *Dependencies) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware - order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerMin))

	zapLog := deps.Logger.Zap()
	healthHandler := handlers.NewHealthHandler(deps.DB, zapLog)
	harvestingHandler := handlers.NewHarvestingHandler(deps.HarvestingService, zapLog)

	// Health checks and metrics (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/metrics", healthHandler.Metrics)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		h := v1.Group("/harvesting")
		{
			h.POST("/scan", harvestingHandler.ScanPortfolio)
			h.GET("/settings", harvestingHandler.GetSettings)

			opportunities := h.Group("/opportunities")
			{
				opportunities.GET("", harvestingHandler.ListOpportunities)
				opportunities.GET("/:id", harvestingHandler.GetOpportunity)
				opportunities.GET("/:id/recommendations", harvestingHandler.GetRecommendations)
				opportunities.POST("/:id/recommend", harvestingHandler.MarkRecommended)
				opportunities.POST("/:id/approve", harvestingHandler.Approve)
				opportunities.POST("/:id/execute", harvestingHandler.BeginExecution)
				opportunities.POST("/:id/complete", harvestingHandler.CompleteExecution)
				opportunities.POST("/:id/reject", harvestingHandler.Reject)
			}

			washSales := h.Group("/wash-sales")
			{
				washSales.POST("/analyze", harvestingHandler.AnalyzeWashSale)
				washSales.POST("/check-violations", harvestingHandler.CheckViolations)
			}
		}
	}

	return router
}
