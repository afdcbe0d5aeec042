package sessions

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotSessionOwner   = errors.New("session belongs to another driver")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidMethod     = errors.New("unknown payment method")
	ErrVehicleNotAllowed = errors.New("vehicle type not allowed at this spot")
	ErrSpotBlocked       = errors.New("spot is blocked at the requested time")

	// Admin force-end on a spot without any live session.
	ErrNoActiveSession = errors.New("no active session for spot")

	// Reinstate only applies to a force-ended session; anything else is a
	// conflict for the caller to report.
	ErrSessionNotRestorable = errors.New("session is not force-ended")

	// Checkout geofence failures. The departure check needs a position at
	// least the configured radius away from the spot; no position at all
	// is its own failure so clients can distinguish "move further away"
	// from "fix your GPS".
	ErrGpsUnavailable = errors.New("gps position unavailable")
	ErrTooCloseToSpot = errors.New("too close to spot to confirm departure")
)
