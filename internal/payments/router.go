package payments

import (
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	admin := rg.Group("/admin/reconciliations")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.ListReconciliations)            // GET /api/v1/admin/reconciliations
		admin.POST("/:id/resolve", controller.ResolveReconciliation) // POST /api/v1/admin/reconciliations/:id/resolve
	}
}
