package broadcast

import (
	"github.com/gin-gonic/gin"
)

// SetupBroadcastRoutes registers the public event stream. The stream is
// unauthenticated so map views can update without a login.
func SetupBroadcastRoutes(rg *gin.RouterGroup, controller *Controller) {
	events := rg.Group("/events")
	{
		events.GET("/stream", controller.Stream) // GET /api/v1/events/stream
	}
}
