package journal

import (
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupJournalRoutes registers the admin mutations, spot changes and
// force-ends, plus the undo/redo surface over them.
func SetupJournalRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.POST("/spots", controller.AddSpot)          // POST /api/v1/admin/spots
		admin.PUT("/spots/:id", controller.EditSpot)      // PUT /api/v1/admin/spots/:id
		admin.DELETE("/spots/:id", controller.DeleteSpot) // DELETE /api/v1/admin/spots/:id

		admin.POST("/sessions/:id/force-end", controller.ForceEndSession) // POST /api/v1/admin/sessions/:id/force-end
		admin.POST("/spots/:id/force-end", controller.ForceEndSpot)       // POST /api/v1/admin/spots/:id/force-end

		admin.POST("/journal/undo", controller.Undo)  // POST /api/v1/admin/journal/undo
		admin.POST("/journal/redo", controller.Redo)  // POST /api/v1/admin/journal/redo
		admin.GET("/journal", controller.ListActions) // GET /api/v1/admin/journal
	}
}
