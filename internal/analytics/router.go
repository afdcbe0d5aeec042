package analytics

import (
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupAnalyticsRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	admin := rg.Group("/admin/analytics")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("/dashboard", controller.GetDashboard)     // GET /api/v1/admin/analytics/dashboard
		admin.GET("/spots/:id", controller.GetSpotAnalytics) // GET /api/v1/admin/analytics/spots/:id
	}
}
