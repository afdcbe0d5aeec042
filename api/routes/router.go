// api/routes/router.go
package routes

import (
	"context"
	"net/http"
	"time"

	"parkwell/internal/analytics"
	"parkwell/internal/broadcast"
	"parkwell/internal/drivers"
	"parkwell/internal/journal"
	"parkwell/internal/payments"
	"parkwell/internal/sessions"
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/database"
	"parkwell/internal/spots"
	"parkwell/pkg/cache"
	"parkwell/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router wires every feature together: repositories over the shared DB,
// services over the repositories, and controllers onto the gin engine.
type Router struct {
	config *config.Config
	db     *database.DB
	logger *logger.Logger
	hub    *broadcast.Hub

	sessionService sessions.Service
	spotService    spots.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger, hub *broadcast.Hub) *Router {
	return &Router{
		config: cfg,
		db:     db,
		logger: log,
		hub:    hub,
	}
}

// SessionService exposes the session service so the server can start the
// lifecycle sweeper after routes are wired.
func (r *Router) SessionService() sessions.Service {
	return r.sessionService
}

// SetupRoutes configures all application routes. Returns an error when the
// spot inventory cannot be loaded; the server must not start half-hydrated.
func (r *Router) SetupRoutes(ctx context.Context, engine *gin.Engine) error {
	r.setupHealthRoutes(engine)

	cacheService := cache.NewService(r.db.Redis)

	// Inventory store hydrates from persistence before anything routes to it.
	spotRepo := spots.NewRepository(r.db.PostgreSQL)
	spotStore := spots.NewStore(spotRepo)
	if err := spotStore.Load(ctx); err != nil {
		return err
	}
	spotService := spots.NewService(spotStore, cacheService, r.hub, r.logger)
	r.spotService = spotService

	driverRepo := drivers.NewRepository(r.db.PostgreSQL)
	driverService := drivers.NewService(driverRepo, r.config, r.logger)

	paymentRepo := payments.NewRepository(r.db.PostgreSQL)
	paymentService := payments.NewService(paymentRepo, r.logger)

	sessionRepo := sessions.NewRepository(r.db.PostgreSQL)
	sessionService := sessions.NewService(sessionRepo, spotService, driverService, paymentService, r.hub, r.config, r.logger)
	r.sessionService = sessionService

	// The store guards deletes and capacity cuts with the live count.
	spotStore.SetLiveSessionCounter(sessionService.CountLiveBySpot)

	journalRepo := journal.NewRepository(r.db.PostgreSQL)
	journalService := journal.NewService(journalRepo, spotService, sessionService, r.logger)

	analyticsRepo := analytics.NewRepository(r.db.PostgreSQL)
	analyticsService := analytics.NewService(analyticsRepo, spotService)
	analyticsService.SetCacheService(cacheService)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		driverRouter := drivers.NewRouter(drivers.NewController(driverService), r.config)
		driverRouter.SetupRoutes(api)

		spots.SetupSpotRoutes(api, spots.NewController(spotService))
		sessions.SetupSessionRoutes(api, sessions.NewController(sessionService), r.config)
		payments.SetupPaymentRoutes(api, payments.NewController(paymentService), r.config)
		journal.SetupJournalRoutes(api, journal.NewController(journalService), r.config)
		analytics.SetupAnalyticsRoutes(api, analytics.NewController(analyticsService), r.config)
		broadcast.SetupBroadcastRoutes(api, broadcast.NewController(r.hub))
	}

	return nil
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "parkwell-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "parkwell-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}
