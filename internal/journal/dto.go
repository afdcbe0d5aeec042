package journal

import (
	"time"

	"github.com/google/uuid"
)

// AddSpotRequest creates a new spot through the journal
type AddSpotRequest struct {
	Name            string   `json:"name" validate:"required,min=2,max=200"`
	HourlyPrice     float64  `json:"hourly_price" validate:"gte=0"`
	Capacity        int      `json:"capacity" validate:"required,gt=0"`
	Lat             float64  `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng             float64  `json:"lng" validate:"required,gte=-180,lte=180"`
	VehicleType     string   `json:"vehicle_type" validate:"omitempty,oneof=any car bike truck"`
	TrustLevel      int      `json:"trust_level" validate:"omitempty,gte=1,lte=5"`
	BlockedDates    []string `json:"blocked_dates" validate:"omitempty,dive,datetime=2006-01-02"`
	BlockedWeekdays []int    `json:"blocked_weekdays" validate:"omitempty,dive,gte=0,lte=6"`
}

// EditSpotRequest updates spot attributes; omitted fields are untouched
type EditSpotRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=2,max=200"`
	HourlyPrice     *float64 `json:"hourly_price" validate:"omitempty,gte=0"`
	Capacity        *int     `json:"capacity" validate:"omitempty,gt=0"`
	Lat             *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng             *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	VehicleType     *string  `json:"vehicle_type" validate:"omitempty,oneof=any car bike truck"`
	TrustLevel      *int     `json:"trust_level" validate:"omitempty,gte=1,lte=5"`
	BlockedDates    []string `json:"blocked_dates" validate:"omitempty,dive,datetime=2006-01-02"`
	BlockedWeekdays []int    `json:"blocked_weekdays" validate:"omitempty,dive,gte=0,lte=6"`
}

// ForceEndRequest carries the operator's reason for ending a session or
// clearing a spot. The reason is broadcast to affected subscribers.
type ForceEndRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ActionResponse describes one journal entry
type ActionResponse struct {
	ID         uuid.UUID  `json:"id"`
	Seq        int64      `json:"seq"`
	Kind       ActionKind `json:"kind"`
	SpotID     uuid.UUID  `json:"spot_id"`
	SessionID  uuid.UUID  `json:"session_id,omitempty"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Undone     bool       `json:"undone"`
	Superseded bool       `json:"superseded"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToActionResponse(action *AdminAction) ActionResponse {
	return ActionResponse{
		ID:         action.ID,
		Seq:        action.Seq,
		Kind:       action.Kind,
		SpotID:     action.SpotID,
		SessionID:  action.SessionID,
		ActorID:    action.ActorID,
		Undone:     action.Undone,
		Superseded: action.Superseded,
		CreatedAt:  action.CreatedAt,
	}
}
