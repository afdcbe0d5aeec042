package sessions

import (
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes registers the driver-facing reservation and lifecycle
// endpoints. Admin force-ends live under the journal routes so they are
// undoable like every other admin mutation.
func SetupSessionRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	reservations := rg.Group("/reservations")
	reservations.Use(middleware.JWTAuthWithConfig(cfg))
	{
		reservations.POST("", controller.Reserve) // POST /api/v1/reservations
	}

	paymentRoutes := rg.Group("/payments")
	paymentRoutes.Use(middleware.JWTAuthWithConfig(cfg))
	{
		paymentRoutes.POST("/confirm", controller.ConfirmPayment) // POST /api/v1/payments/confirm
	}

	sessionRoutes := rg.Group("/sessions")
	sessionRoutes.Use(middleware.JWTAuthWithConfig(cfg))
	{
		sessionRoutes.GET("", controller.ListMySessions)          // GET /api/v1/sessions
		sessionRoutes.GET("/:id", controller.GetSession)          // GET /api/v1/sessions/:id
		sessionRoutes.POST("/:id/checkout", controller.Checkout) // POST /api/v1/sessions/:id/checkout
	}
}
