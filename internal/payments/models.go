package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusConfirmed PaymentStatus = "CONFIRMED"
	// CONSUMED means the confirmed payment has been turned into a session
	// (or refunded through a reconciliation record).
	StatusConsumed PaymentStatus = "CONSUMED"
)

// PaymentRecord tracks an external (gateway) deposit payment. The reference
// is the driver-facing idempotency key: confirming the same reference twice
// is rejected, so a deposit can never buy two sessions.
type PaymentRecord struct {
	ID        uuid.UUID     `json:"id" gorm:"primaryKey;type:uuid"`
	Reference string        `json:"reference" gorm:"uniqueIndex;not null"`
	DriverID  uuid.UUID     `json:"driver_id" gorm:"type:uuid;not null;index"`
	SpotID    uuid.UUID     `json:"spot_id" gorm:"type:uuid;not null"`
	// Amount is the full charge; BaseCharge and Deposit record its split so
	// the session created on confirmation settles only the deposit part.
	Amount     float64       `json:"amount" gorm:"not null"`
	BaseCharge float64       `json:"base_charge" gorm:"not null"`
	Deposit    float64       `json:"deposit" gorm:"not null"`
	Status     PaymentStatus `json:"status" gorm:"type:varchar(12);not null;default:'PENDING'"`

	// Reservation intent captured at initiation so the confirm step can
	// finish the reservation without a second request body.
	DurationHours int `json:"duration_hours" gorm:"not null"`

	SessionID *uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}

func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RefundReconciliation records a payment that was taken for a reservation
// that could not be honored (the spot filled up between payment and
// confirmation). Operators work these off out of band.
type RefundReconciliation struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Reference string    `json:"reference" gorm:"not null;index"`
	DriverID  uuid.UUID `json:"driver_id" gorm:"type:uuid;not null"`
	SpotID    uuid.UUID `json:"spot_id" gorm:"type:uuid;not null"`
	Amount    float64   `json:"amount" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"not null"`
	Resolved  bool      `json:"resolved" gorm:"not null;default:false"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (RefundReconciliation) TableName() string {
	return "refund_reconciliations"
}

func (r *RefundReconciliation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
