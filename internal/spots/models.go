package spots

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VehicleType constrains which vehicles a spot admits
type VehicleType string

const (
	VehicleAny   VehicleType = "any"
	VehicleCar   VehicleType = "car"
	VehicleBike  VehicleType = "bike"
	VehicleTruck VehicleType = "truck"
)

// IsValid checks if the vehicle type is a known value
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleAny, VehicleCar, VehicleBike, VehicleTruck:
		return true
	}
	return false
}

// Admits reports whether a vehicle of the given type may park on this spot
func (v VehicleType) Admits(other VehicleType) bool {
	return v == VehicleAny || v == other
}

// Spot defines a billable parking location with finite capacity
type Spot struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string      `gorm:"not null;size:255" json:"name"`
	HourlyPrice float64     `gorm:"not null;check:hourly_price >= 0" json:"hourly_price"`
	Capacity    int         `gorm:"not null;check:capacity >= 0" json:"capacity"`
	Available   int         `gorm:"not null;check:available >= 0" json:"available"`
	Lat         float64     `gorm:"not null" json:"lat"`
	Lng         float64     `gorm:"not null" json:"lng"`
	VehicleType VehicleType `gorm:"type:varchar(10);default:'any'" json:"vehicle_type"`
	TrustLevel  int         `gorm:"default:3" json:"trust_level"`

	// Operating-availability rules, stored as JSON text: ISO dates and
	// weekday numbers (time.Weekday, Sunday = 0) on which booking is blocked.
	BlockedDatesRaw    string `gorm:"type:text;column:blocked_dates" json:"-"`
	BlockedWeekdaysRaw string `gorm:"type:text;column:blocked_weekdays" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Spot
func (Spot) TableName() string {
	return "spots"
}

// BlockedDates decodes the blocked-dates rule ("2006-01-02" strings)
func (s *Spot) BlockedDates() []string {
	if s.BlockedDatesRaw == "" {
		return nil
	}
	var dates []string
	if err := json.Unmarshal([]byte(s.BlockedDatesRaw), &dates); err != nil {
		return nil
	}
	return dates
}

// BlockedWeekdays decodes the blocked-weekdays rule
func (s *Spot) BlockedWeekdays() []time.Weekday {
	if s.BlockedWeekdaysRaw == "" {
		return nil
	}
	var days []int
	if err := json.Unmarshal([]byte(s.BlockedWeekdaysRaw), &days); err != nil {
		return nil
	}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

// SetBlockedDates encodes the blocked-dates rule
func (s *Spot) SetBlockedDates(dates []string) {
	if len(dates) == 0 {
		s.BlockedDatesRaw = ""
		return
	}
	raw, _ := json.Marshal(dates)
	s.BlockedDatesRaw = string(raw)
}

// SetBlockedWeekdays encodes the blocked-weekdays rule
func (s *Spot) SetBlockedWeekdays(days []time.Weekday) {
	if len(days) == 0 {
		s.BlockedWeekdaysRaw = ""
		return
	}
	ints := make([]int, 0, len(days))
	for _, d := range days {
		ints = append(ints, int(d))
	}
	raw, _ := json.Marshal(ints)
	s.BlockedWeekdaysRaw = string(raw)
}

// IsBlockedAt reports whether booking is administratively blocked at t
func (s *Spot) IsBlockedAt(t time.Time) bool {
	day := t.Format("2006-01-02")
	for _, d := range s.BlockedDates() {
		if d == day {
			return true
		}
	}
	for _, wd := range s.BlockedWeekdays() {
		if wd == t.Weekday() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out as a snapshot
func (s *Spot) Clone() Spot {
	return *s
}
