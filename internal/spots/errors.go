package spots

import "errors"

// Typed failures surfaced by the inventory store. Controllers map these to
// HTTP codes; services never wrap them in untyped strings so callers can
// branch with errors.Is.
var (
	ErrSpotNotFound          = errors.New("spot not found")
	ErrInsufficientCapacity  = errors.New("no available units on spot")
	ErrSpotHasActiveSession  = errors.New("spot has a live session")
	ErrCapacityBelowLive     = errors.New("capacity below live session count")
	ErrReleaseAboveCapacity  = errors.New("release would exceed spot capacity")
	ErrSpotAlreadyExists     = errors.New("spot id already exists")
	ErrInvalidSpotAttributes = errors.New("invalid spot attributes")
)
