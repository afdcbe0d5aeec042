package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"parkwell/pkg/logger"
)

type Service interface {
	// InitiatePayment opens a PENDING record for the full charge (base
	// charge plus deposit) and returns its reference.
	InitiatePayment(ctx context.Context, driverID, spotID uuid.UUID, baseCharge, deposit float64, durationHours int) (*PaymentRecord, error)

	// ConfirmPayment moves PENDING to CONFIRMED exactly once.
	ConfirmPayment(ctx context.Context, reference string) (*PaymentRecord, error)

	// ConsumePayment moves CONFIRMED to CONSUMED exactly once, binding the
	// payment to the session it funded.
	ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) error

	GetPayment(ctx context.Context, reference string) (*PaymentRecord, error)

	RecordReconciliation(ctx context.Context, payment *PaymentRecord, reason string) (*RefundReconciliation, error)
	ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]RefundReconciliation, error)
	ResolveReconciliation(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) Service {
	return &service{
		repo:   repo,
		logger: log,
	}
}

func (s *service) InitiatePayment(ctx context.Context, driverID, spotID uuid.UUID, baseCharge, deposit float64, durationHours int) (*PaymentRecord, error) {
	payment := &PaymentRecord{
		Reference:     newReference(),
		DriverID:      driverID,
		SpotID:        spotID,
		Amount:        baseCharge + deposit,
		BaseCharge:    baseCharge,
		Deposit:       deposit,
		Status:        StatusPending,
		DurationHours: durationHours,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}
	return payment, nil
}

func (s *service) ConfirmPayment(ctx context.Context, reference string) (*PaymentRecord, error) {
	confirmed, err := s.repo.ConfirmPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		payment, err := s.repo.GetPaymentByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		if payment.Status == StatusConsumed {
			return nil, ErrPaymentConsumed
		}
		return nil, ErrPaymentAlreadyConfirmed
	}
	return s.repo.GetPaymentByReference(ctx, reference)
}

func (s *service) ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) error {
	consumed, err := s.repo.ConsumePayment(ctx, reference, sessionID)
	if err != nil {
		return err
	}
	if !consumed {
		payment, err := s.repo.GetPaymentByReference(ctx, reference)
		if err != nil {
			return err
		}
		if payment.Status == StatusConsumed {
			return ErrPaymentConsumed
		}
		return ErrPaymentNotFound
	}
	return nil
}

func (s *service) GetPayment(ctx context.Context, reference string) (*PaymentRecord, error) {
	return s.repo.GetPaymentByReference(ctx, reference)
}

func (s *service) RecordReconciliation(ctx context.Context, payment *PaymentRecord, reason string) (*RefundReconciliation, error) {
	rec := &RefundReconciliation{
		Reference: payment.Reference,
		DriverID:  payment.DriverID,
		SpotID:    payment.SpotID,
		Amount:    payment.Amount,
		Reason:    reason,
	}
	if err := s.repo.CreateReconciliation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record reconciliation: %w", err)
	}
	s.logger.LogRefundReconciliation(ctx, payment.Reference, payment.SpotID.String(), payment.Amount)
	return rec, nil
}

func (s *service) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]RefundReconciliation, error) {
	return s.repo.ListReconciliations(ctx, unresolvedOnly)
}

func (s *service) ResolveReconciliation(ctx context.Context, id uuid.UUID) error {
	return s.repo.ResolveReconciliation(ctx, id)
}

func newReference() string {
	return "pw_" + uuid.NewString()
}
