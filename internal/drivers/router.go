package drivers

import (
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles driver auth and wallet routes
type Router struct {
	controller *Controller
	config     *config.Config
}

func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers all driver routes
func (driverRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		// Public routes (no authentication required)
		auth.POST("/register", driverRouter.controller.Register)
		auth.POST("/login", driverRouter.controller.Login)
		auth.POST("/refresh", driverRouter.controller.RefreshToken)

		// Protected routes (authentication required)
		protected := auth.Group("")
		protected.Use(middleware.JWTAuthWithConfig(driverRouter.config))
		{
			protected.PUT("/change-password", driverRouter.controller.ChangePassword)
			protected.GET("/me", driverRouter.controller.GetProfile)
		}
	}

	wallet := rg.Group("/wallet")
	wallet.Use(middleware.JWTAuthWithConfig(driverRouter.config))
	{
		wallet.POST("/topup", driverRouter.controller.TopUpWallet) // POST /api/v1/wallet/topup
	}
}
