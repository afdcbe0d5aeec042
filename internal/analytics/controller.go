package analytics

import (
	"errors"
	"net/http"

	"parkwell/internal/shared/utils/response"
	"parkwell/internal/spots"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetDashboard(ctx *gin.Context) {
	dashboard, err := c.service.GetDashboardAnalytics(ctx.Request.Context())
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get dashboard analytics", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Dashboard analytics retrieved successfully", dashboard, nil)
}

func (c *Controller) GetSpotAnalytics(ctx *gin.Context) {
	spotID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot ID", nil, err.Error())
		return
	}

	result, err := c.service.GetSpotAnalytics(ctx.Request.Context(), spotID)
	if err != nil {
		switch {
		case errors.Is(err, spots.ErrSpotNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Spot not found", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get spot analytics", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Spot analytics retrieved successfully", result, nil)
}
