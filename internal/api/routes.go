package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gridquote/pricing-go/internal/api/handlers"
	"github.com/gridquote/pricing-go/internal/database"
	"github.com/gridquote/pricing-go/internal/middleware"
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

// Handlers bundles the route handlers wired in SetupRoutes.
type Handlers struct {
	Pricing *handlers.PricingHandler
	Ingest  *handlers.IngestHandler
	Admin   *handlers.AdminHandler
	System  *handlers.SystemHandler
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, h Handlers, adminAPIKey string) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	adminAuth := middleware.NewAdminMiddleware(adminAPIKey)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Price estimate query interface (quote generator, dashboard)
		prices := v1.Group("/prices")
		{
			prices.GET("/estimate", h.Pricing.GetPriceEstimate)
		}

		// Ingestion interface (external collector)
		v1.POST("/observations", h.Ingest.InsertObservation)
		sources := v1.Group("/sources")
		{
			sources.POST("/:id/fetch-success", h.Ingest.RecordFetchSuccess)
			sources.POST("/:id/fetch-failure", h.Ingest.RecordFetchFailure)
		}

		// Administration interface
		admin := v1.Group("/admin", adminAuth.RequireAdminAuth())
		{
			admin.GET("/policies", h.Admin.ListPolicies)
			admin.POST("/policies", h.Admin.CreatePolicy)
			admin.PUT("/policies/:id", h.Admin.UpdatePolicy)
			admin.DELETE("/policies/:id", h.Admin.DeactivatePolicy)

			admin.GET("/sources", h.Admin.ListSources)
			admin.POST("/sources", h.Admin.CreateSource)
			admin.GET("/sources/:id", h.Admin.GetSource)
			admin.PUT("/sources/:id", h.Admin.UpdateSource)
			admin.DELETE("/sources/:id", h.Admin.DeactivateSource)
		}

		// Operational status
		system := v1.Group("/system")
		{
			system.GET("/status", h.System.GetStatus)
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

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
