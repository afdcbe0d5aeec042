package sessions

import (
	"time"

	"github.com/google/uuid"

	"parkwell/internal/shared/config"
)

// ReserveRequest starts a reservation. Wallet payments settle inline;
// external payments return a pending reference to confirm separately.
type ReserveRequest struct {
	SpotID        string `json:"spot_id" validate:"required,uuid"`
	DurationHours int    `json:"duration_hours" validate:"required,gt=0,lte=24"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=wallet external"`
}

// ConfirmPaymentRequest completes an external-payment reservation
type ConfirmPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// CheckoutRequest carries the departure position. Both coordinates are
// pointers so a missing fix is distinguishable from coordinate zero.
type CheckoutRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type SessionResponse struct {
	ID       uuid.UUID `json:"id"`
	SpotID   uuid.UUID `json:"spot_id"`
	DriverID uuid.UUID `json:"driver_id"`
	State    State     `json:"state"`

	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`

	BaseCharge       float64       `json:"base_charge"`
	Deposit          float64       `json:"deposit"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentReference string        `json:"payment_reference,omitempty"`

	// Live sessions carry a running penalty preview; settled sessions
	// carry the final numbers.
	OvertimeMinutes int        `json:"overtime_minutes"`
	Penalty         float64    `json:"penalty"`
	RefundAmount    float64    `json:"refund_amount"`
	DebtRecorded    float64    `json:"debt_recorded"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PendingPaymentResponse is returned when an external payment must be
// confirmed before the session exists. Amount is the full charge, base
// charge plus the deposit hold.
type PendingPaymentResponse struct {
	Reference     string    `json:"reference"`
	Amount        float64   `json:"amount"`
	BaseCharge    float64   `json:"base_charge"`
	Deposit       float64   `json:"deposit"`
	SpotID        uuid.UUID `json:"spot_id"`
	DurationHours int       `json:"duration_hours"`
}

// ReserveResponse carries exactly one of Session or PendingPayment.
type ReserveResponse struct {
	Session        *SessionResponse        `json:"session,omitempty"`
	PendingPayment *PendingPaymentResponse `json:"pending_payment,omitempty"`
}

func ToSessionResponse(session *Session, cfg config.EngineConfig, now time.Time) SessionResponse {
	resp := SessionResponse{
		ID:               session.ID,
		SpotID:           session.SpotID,
		DriverID:         session.DriverID,
		State:            session.EffectiveState(now),
		StartedAt:        session.StartedAt,
		ExpiresAt:        session.ExpiresAt,
		BaseCharge:       session.BaseCharge,
		Deposit:          session.Deposit,
		PaymentMethod:    session.PaymentMethod,
		PaymentReference: session.PaymentReference,
		RefundAmount:     session.RefundAmount,
		Penalty:          session.Penalty,
		DebtRecorded:     session.DebtRecorded,
		EndedAt:          session.EndedAt,
		CreatedAt:        session.CreatedAt,
	}

	if !resp.State.IsTerminal() {
		resp.OvertimeMinutes = OvertimeMinutes(session.ExpiresAt, now)
		resp.Penalty = Penalty(cfg, resp.OvertimeMinutes)
	} else if session.EndedAt != nil {
		resp.OvertimeMinutes = OvertimeMinutes(session.ExpiresAt, *session.EndedAt)
	}

	return resp
}
