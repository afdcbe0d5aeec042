package spots

import (
	"errors"
	"net/http"

	"parkwell/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetSpots(ctx *gin.Context) {
	spotList, err := c.service.ListSpots(ctx.Request.Context())
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get spots", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Spots retrieved successfully", spotList, nil)
}

func (c *Controller) GetSpot(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot ID", nil, err.Error())
		return
	}

	spot, err := c.service.GetSpot(ctx.Request.Context(), id)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, ErrSpotNotFound) {
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get spot", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Spot retrieved successfully", spot, nil)
}
