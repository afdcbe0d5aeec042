package spots

import (
	"github.com/gin-gonic/gin"
)

// SetupSpotRoutes registers the public inventory endpoints. Admin spot
// mutations live under the journal routes so every change is undoable.
func SetupSpotRoutes(rg *gin.RouterGroup, controller *Controller) {
	spotRoutes := rg.Group("/spots")
	{
		spotRoutes.GET("", controller.GetSpots)    // GET /api/v1/spots
		spotRoutes.GET("/:id", controller.GetSpot) // GET /api/v1/spots/:id
	}
}
