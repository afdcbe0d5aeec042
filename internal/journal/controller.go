package journal

import (
	"errors"
	"net/http"
	"strconv"

	"parkwell/internal/sessions"
	"parkwell/internal/shared/utils/response"
	"parkwell/internal/spots"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
	}
}

func (c *Controller) AddSpot(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	var req AddSpotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	spot, err := c.service.AddSpot(ctx.Request.Context(), actorID, &req)
	if err != nil {
		c.respondSpotError(ctx, err, "Failed to create spot")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Spot created successfully", spot, nil)
}

func (c *Controller) EditSpot(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	spotID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot ID", nil, err.Error())
		return
	}

	var req EditSpotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	spot, err := c.service.EditSpot(ctx.Request.Context(), actorID, spotID, &req)
	if err != nil {
		c.respondSpotError(ctx, err, "Failed to update spot")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Spot updated successfully", spot, nil)
}

func (c *Controller) DeleteSpot(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	spotID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot ID", nil, err.Error())
		return
	}

	if err := c.service.DeleteSpot(ctx.Request.Context(), actorID, spotID); err != nil {
		c.respondSpotError(ctx, err, "Failed to delete spot")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Spot deleted successfully", nil, nil)
}

func (c *Controller) ForceEndSession(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid session ID", nil, err.Error())
		return
	}

	reason, ok := bindReason(ctx)
	if !ok {
		return
	}

	resp, err := c.service.ForceEndSession(ctx.Request.Context(), actorID, sessionID, reason)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Session not found", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to force-end session", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Session force-ended successfully", resp, nil)
}

func (c *Controller) ForceEndSpot(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	spotID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot ID", nil, err.Error())
		return
	}

	reason, ok := bindReason(ctx)
	if !ok {
		return
	}

	ended, err := c.service.ForceEndSpot(ctx.Request.Context(), actorID, spotID, reason)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrNoActiveSession):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "No active session for this spot", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to force-end sessions", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Sessions force-ended successfully", ended, nil)
}

// bindReason reads the optional reason body. A missing body is fine; a
// malformed one is rejected.
func bindReason(ctx *gin.Context) (string, bool) {
	if ctx.Request.ContentLength == 0 {
		return "", true
	}
	var req ForceEndRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return "", false
	}
	return req.Reason, true
}

func (c *Controller) Undo(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	action, err := c.service.Undo(ctx.Request.Context(), actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNothingToUndo):
			// An empty history is a no-op, not a failure.
			response.RespondJSON(ctx, "success", http.StatusOK, "Nothing to undo", nil, nil)
		case errors.Is(err, ErrUndoConflict):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Undo conflicts with current state", nil, err.Error())
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to undo", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Action undone successfully", action, nil)
}

func (c *Controller) Redo(ctx *gin.Context) {
	actorID, ok := actor(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	action, err := c.service.Redo(ctx.Request.Context(), actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNothingToRedo):
			// An empty redo stack is a no-op, not a failure.
			response.RespondJSON(ctx, "success", http.StatusOK, "Nothing to redo", nil, nil)
		case errors.Is(err, ErrUndoConflict):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Redo conflicts with current state", nil, err.Error())
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to redo", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Action redone successfully", action, nil)
}

func (c *Controller) ListActions(ctx *gin.Context) {
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid limit", nil, nil)
			return
		}
		limit = parsed
	}

	actions, err := c.service.ListActions(ctx.Request.Context(), limit)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list actions", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Actions retrieved successfully", actions, nil)
}

func (c *Controller) respondSpotError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, spots.ErrSpotNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Spot not found", nil, nil)
	case errors.Is(err, spots.ErrSpotHasActiveSession):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Spot has live sessions; force-end them first", nil, nil)
	case errors.Is(err, spots.ErrCapacityBelowLive):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Capacity cannot drop below the live session count", nil, nil)
	case errors.Is(err, spots.ErrSpotAlreadyExists):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Spot already exists", nil, nil)
	case errors.Is(err, spots.ErrInvalidSpotAttributes):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid spot attributes", nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, fallback, nil, nil)
	}
}

func actor(ctx *gin.Context) (uuid.UUID, bool) {
	raw, exists := ctx.Get("driver_id")
	if !exists {
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
