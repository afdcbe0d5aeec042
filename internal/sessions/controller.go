package sessions

import (
	"errors"
	"net/http"

	"parkwell/internal/drivers"
	"parkwell/internal/payments"
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

func (c *Controller) Reserve(ctx *gin.Context) {
	driverID, ok := authedDriverID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Driver not authenticated", nil, nil)
		return
	}

	var req ReserveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	resp, err := c.service.Reserve(ctx.Request.Context(), driverID, &req)
	if err != nil {
		c.respondReservationError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Reservation created successfully", resp, nil)
}

func (c *Controller) ConfirmPayment(ctx *gin.Context) {
	driverID, ok := authedDriverID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Driver not authenticated", nil, nil)
		return
	}

	var req ConfirmPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	resp, err := c.service.ConfirmReservation(ctx.Request.Context(), driverID, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPaymentNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Payment not found", nil, nil)
		case errors.Is(err, payments.ErrPaymentAlreadyConfirmed), errors.Is(err, payments.ErrPaymentConsumed):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Payment already processed", nil, nil)
		case errors.Is(err, spots.ErrInsufficientCapacity):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Spot filled up before confirmation; refund queued for reconciliation", nil, nil)
		default:
			c.respondReservationError(ctx, err)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Reservation confirmed successfully", resp, nil)
}

func (c *Controller) GetSession(ctx *gin.Context) {
	driverID, ok := authedDriverID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Driver not authenticated", nil, nil)
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid session ID", nil, err.Error())
		return
	}

	role, _ := ctx.Get("driver_role")
	roleStr, _ := role.(string)

	resp, err := c.service.GetSession(ctx.Request.Context(), driverID, roleStr, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Session not found", nil, nil)
		case errors.Is(err, ErrNotSessionOwner):
			response.RespondJSON(ctx, "error", http.StatusForbidden, "Session belongs to another driver", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get session", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Session retrieved successfully", resp, nil)
}

func (c *Controller) ListMySessions(ctx *gin.Context) {
	driverID, ok := authedDriverID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Driver not authenticated", nil, nil)
		return
	}

	sessions, err := c.service.ListMySessions(ctx.Request.Context(), driverID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list sessions", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Sessions retrieved successfully", sessions, nil)
}

func (c *Controller) Checkout(ctx *gin.Context) {
	driverID, ok := authedDriverID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Driver not authenticated", nil, nil)
		return
	}

	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid session ID", nil, err.Error())
		return
	}

	var req CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := c.service.Checkout(ctx.Request.Context(), driverID, sessionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Session not found", nil, nil)
		case errors.Is(err, ErrNotSessionOwner):
			response.RespondJSON(ctx, "error", http.StatusForbidden, "Session belongs to another driver", nil, nil)
		case errors.Is(err, ErrGpsUnavailable):
			response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "GPS position unavailable; cannot verify departure", nil, nil)
		case errors.Is(err, ErrTooCloseToSpot):
			response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "Still too close to the spot; drive away before checking out", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to checkout", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Session checked out successfully", resp, nil)
}

func (c *Controller) respondReservationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, spots.ErrSpotNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Spot not found", nil, nil)
	case errors.Is(err, spots.ErrInsufficientCapacity):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Spot is full", nil, nil)
	case errors.Is(err, drivers.ErrInsufficientFunds):
		response.RespondJSON(ctx, "error", http.StatusPaymentRequired, "Insufficient wallet balance", nil, nil)
	case errors.Is(err, drivers.ErrDriverNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Driver not found", nil, nil)
	case errors.Is(err, ErrVehicleNotAllowed):
		response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "Vehicle type not allowed at this spot", nil, nil)
	case errors.Is(err, ErrSpotBlocked):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Spot is blocked at the requested time", nil, nil)
	case errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidMethod):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation request", nil, err.Error())
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to create reservation", nil, nil)
	}
}

func authedDriverID(ctx *gin.Context) (uuid.UUID, bool) {
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
