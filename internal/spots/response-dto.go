package spots

import (
	"time"

	"github.com/google/uuid"
)

type SpotResponse struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	HourlyPrice     float64     `json:"hourly_price"`
	Capacity        int         `json:"capacity"`
	Available       int         `json:"available"`
	Lat             float64     `json:"lat"`
	Lng             float64     `json:"lng"`
	VehicleType     VehicleType `json:"vehicle_type"`
	TrustLevel      int         `json:"trust_level"`
	BlockedDates    []string    `json:"blocked_dates"`
	BlockedWeekdays []int       `json:"blocked_weekdays"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func ToSpotResponse(spot *Spot) SpotResponse {
	weekdays := spot.BlockedWeekdays()
	days := make([]int, 0, len(weekdays))
	for _, d := range weekdays {
		days = append(days, int(d))
	}
	return SpotResponse{
		ID:              spot.ID,
		Name:            spot.Name,
		HourlyPrice:     spot.HourlyPrice,
		Capacity:        spot.Capacity,
		Available:       spot.Available,
		Lat:             spot.Lat,
		Lng:             spot.Lng,
		VehicleType:     spot.VehicleType,
		TrustLevel:      spot.TrustLevel,
		BlockedDates:    spot.BlockedDates(),
		BlockedWeekdays: days,
		CreatedAt:       spot.CreatedAt,
		UpdatedAt:       spot.UpdatedAt,
	}
}
