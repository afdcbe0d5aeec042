package sessions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type State string

const (
	// StateActive covers the whole live lifetime of a session. Overtime is
	// derived from the clock, never stored, so a session cannot be "stuck"
	// overtime after a restart.
	StateActive     State = "ACTIVE"
	StateOvertime   State = "OVERTIME"
	StateCheckedOut State = "CHECKED_OUT"
	StateForceEnded State = "FORCE_ENDED"
)

func (s State) IsTerminal() bool {
	return s == StateCheckedOut || s == StateForceEnded
}

type PaymentMethod string

const (
	MethodWallet   PaymentMethod = "wallet"
	MethodExternal PaymentMethod = "external"
)

type Session struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	SpotID   uuid.UUID `json:"spot_id" gorm:"type:uuid;not null;index"`
	DriverID uuid.UUID `json:"driver_id" gorm:"type:uuid;not null;index"`

	State State `json:"state" gorm:"type:varchar(12);not null;default:'ACTIVE';index"`

	StartedAt time.Time `json:"started_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`

	// BaseCharge is the parking fee taken up front, hourly price times the
	// booked hours. The deposit is the only refundable part.
	BaseCharge       float64       `json:"base_charge" gorm:"not null"`
	Deposit          float64       `json:"deposit" gorm:"not null"`
	PaymentMethod    PaymentMethod `json:"payment_method" gorm:"type:varchar(10);not null"`
	PaymentReference string        `json:"payment_reference,omitempty"`

	// Settlement fields, written exactly once on the terminal transition.
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	RefundAmount float64    `json:"refund_amount"`
	Penalty      float64    `json:"penalty"`
	DebtRecorded float64    `json:"debt_recorded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// EffectiveState derives the externally visible state at a point in time.
// Stored ACTIVE sessions past their expiry read as OVERTIME.
func (s *Session) EffectiveState(now time.Time) State {
	if s.State == StateActive && now.After(s.ExpiresAt) {
		return StateOvertime
	}
	return s.State
}
