package payments

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

func (c *Controller) ListReconciliations(ctx *gin.Context) {
	unresolvedOnly := ctx.Query("unresolved") == "true"

	records, err := c.service.ListReconciliations(ctx.Request.Context(), unresolvedOnly)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list reconciliations", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reconciliations retrieved successfully", records, nil)
}

func (c *Controller) ResolveReconciliation(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reconciliation ID", nil, err.Error())
		return
	}

	if err := c.service.ResolveReconciliation(ctx.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrReconciliationNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Reconciliation not found or already resolved", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to resolve reconciliation", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reconciliation resolved successfully", nil, nil)
}
