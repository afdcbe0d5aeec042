package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parkwell/internal/sessions"
	"parkwell/internal/spots"
)

type ActionKind string

const (
	KindAddSpot            ActionKind = "ADD_SPOT"
	KindEditSpot           ActionKind = "EDIT_SPOT"
	KindDeleteSpot         ActionKind = "DELETE_SPOT"
	KindForceCancelSession ActionKind = "FORCE_CANCEL_SESSION"
)

// SpotSnapshot is the journaled image of a spot, complete enough to
// recreate it (including its id) or to roll its attributes back.
type SpotSnapshot struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	HourlyPrice     float64           `json:"hourly_price"`
	Capacity        int               `json:"capacity"`
	Lat             float64           `json:"lat"`
	Lng             float64           `json:"lng"`
	VehicleType     spots.VehicleType `json:"vehicle_type"`
	TrustLevel      int               `json:"trust_level"`
	BlockedDates    []string          `json:"blocked_dates"`
	BlockedWeekdays []int             `json:"blocked_weekdays"`
}

func SnapshotOf(spot *spots.Spot) SpotSnapshot {
	weekdays := spot.BlockedWeekdays()
	days := make([]int, 0, len(weekdays))
	for _, d := range weekdays {
		days = append(days, int(d))
	}
	return SpotSnapshot{
		ID:              spot.ID,
		Name:            spot.Name,
		HourlyPrice:     spot.HourlyPrice,
		Capacity:        spot.Capacity,
		Lat:             spot.Lat,
		Lng:             spot.Lng,
		VehicleType:     spot.VehicleType,
		TrustLevel:      spot.TrustLevel,
		BlockedDates:    spot.BlockedDates(),
		BlockedWeekdays: days,
	}
}

// AdminAction is one entry of the linear undo history. Undone entries stay
// in the table so redo survives a restart; appending a new action while
// undone entries exist marks them superseded, which retires them for good.
type AdminAction struct {
	ID   uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Seq  int64      `json:"seq" gorm:"autoIncrement;uniqueIndex;not null"`
	Kind ActionKind `json:"kind" gorm:"type:varchar(16);not null"`

	SpotID uuid.UUID `json:"spot_id" gorm:"type:uuid;not null;index"`
	// SessionID is set only for FORCE_CANCEL_SESSION actions.
	SessionID uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid"`
	ActorID   uuid.UUID `json:"actor_id" gorm:"type:uuid;not null"`

	// Before/After are snapshot JSON, SpotSnapshot for spot mutations and
	// SessionSnapshot for force-cancellations. ADD has no Before, DELETE
	// and FORCE_CANCEL_SESSION have no After.
	Before string `json:"-" gorm:"type:text"`
	After  string `json:"-" gorm:"type:text"`

	Undone     bool `json:"undone" gorm:"not null;default:false;index"`
	Superseded bool `json:"superseded" gorm:"not null;default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AdminAction) TableName() string {
	return "admin_actions"
}

func (a *AdminAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// SessionSnapshot is the journaled image of a session at the moment it was
// force-cancelled, plus the reason given, so redo can repeat the
// cancellation verbatim.
type SessionSnapshot struct {
	ID         uuid.UUID `json:"id"`
	SpotID     uuid.UUID `json:"spot_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	BaseCharge float64   `json:"base_charge"`
	Deposit    float64   `json:"deposit"`
	StartedAt  time.Time `json:"started_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Reason     string    `json:"reason,omitempty"`
}

func SessionSnapshotOf(session *sessions.Session, reason string) SessionSnapshot {
	return SessionSnapshot{
		ID:         session.ID,
		SpotID:     session.SpotID,
		DriverID:   session.DriverID,
		BaseCharge: session.BaseCharge,
		Deposit:    session.Deposit,
		StartedAt:  session.StartedAt,
		ExpiresAt:  session.ExpiresAt,
		Reason:     reason,
	}
}

func (a *AdminAction) BeforeSnapshot() (*SpotSnapshot, error) {
	return decodeSnapshot(a.Before)
}

func (a *AdminAction) CancelledSession() (*SessionSnapshot, error) {
	if a.Before == "" {
		return nil, nil
	}
	var snap SessionSnapshot
	if err := json.Unmarshal([]byte(a.Before), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *AdminAction) AfterSnapshot() (*SpotSnapshot, error) {
	return decodeSnapshot(a.After)
}

func decodeSnapshot(raw string) (*SpotSnapshot, error) {
	if raw == "" {
		return nil, nil
	}
	var snap SpotSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func encodeSnapshot(snap *SpotSnapshot) string {
	if snap == nil {
		return ""
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	return string(raw)
}

func encodeSessionSnapshot(snap *SessionSnapshot) string {
	if snap == nil {
		return ""
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	return string(raw)
}
