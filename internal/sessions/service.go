package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkwell/internal/broadcast"
	"parkwell/internal/drivers"
	"parkwell/internal/payments"
	"parkwell/internal/shared/config"
	"parkwell/internal/spots"
	"parkwell/pkg/logger"
)

type Service interface {
	Reserve(ctx context.Context, driverID uuid.UUID, req *ReserveRequest) (*ReserveResponse, error)
	ConfirmReservation(ctx context.Context, driverID uuid.UUID, reference string) (*SessionResponse, error)

	GetSession(ctx context.Context, requesterID uuid.UUID, requesterRole string, sessionID uuid.UUID) (*SessionResponse, error)
	ListMySessions(ctx context.Context, driverID uuid.UUID) ([]SessionResponse, error)

	Checkout(ctx context.Context, driverID uuid.UUID, sessionID uuid.UUID, req *CheckoutRequest) (*SessionResponse, error)
	ForceEnd(ctx context.Context, sessionID uuid.UUID, reason string) (*SessionResponse, error)
	ForceEndBySpot(ctx context.Context, spotID uuid.UUID, reason string) ([]SessionResponse, error)

	// SessionRecord and Reinstate back the admin journal: the record is
	// snapshotted before a force-cancellation, and Reinstate reverses one
	// by re-claiming the unit and re-debiting the refunded deposit.
	SessionRecord(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	ListLiveBySpot(ctx context.Context, spotID uuid.UUID) ([]Session, error)
	Reinstate(ctx context.Context, sessionID uuid.UUID) error

	// CountLiveBySpot backs the inventory's live-session guard.
	CountLiveBySpot(ctx context.Context, spotID uuid.UUID) (int, error)

	StartSweeper(ctx context.Context)
}

const sessionLockStripes = 64

type service struct {
	repo       Repository
	spotSvc    spots.Service
	driverSvc  drivers.Service
	paymentSvc payments.Service
	publisher  broadcast.Publisher
	config     *config.Config
	logger     *logger.Logger

	// Terminal transitions for one session serialize on a stripe lock so
	// checkout and force-end cannot interleave their settlements.
	locks [sessionLockStripes]sync.Mutex

	overtimeMu       sync.Mutex
	overtimeNotified map[uuid.UUID]bool
}

func NewService(
	repo Repository,
	spotSvc spots.Service,
	driverSvc drivers.Service,
	paymentSvc payments.Service,
	publisher broadcast.Publisher,
	cfg *config.Config,
	log *logger.Logger,
) Service {
	return &service{
		repo:             repo,
		spotSvc:          spotSvc,
		driverSvc:        driverSvc,
		paymentSvc:       paymentSvc,
		publisher:        publisher,
		config:           cfg,
		logger:           log,
		overtimeNotified: make(map[uuid.UUID]bool),
	}
}

func (s *service) lockFor(sessionID uuid.UUID) *sync.Mutex {
	return &s.locks[int(sessionID[0])%sessionLockStripes]
}

func (s *service) Reserve(ctx context.Context, driverID uuid.UUID, req *ReserveRequest) (*ReserveResponse, error) {
	spotID, err := uuid.Parse(req.SpotID)
	if err != nil {
		return nil, spots.ErrSpotNotFound
	}
	if req.DurationHours <= 0 {
		return nil, ErrInvalidDuration
	}

	spot, err := s.validateReservation(ctx, driverID, spotID)
	if err != nil {
		return nil, err
	}

	// The base charge pays for the booked hours; the deposit on top is the
	// refundable hold settlement draws the penalty from.
	baseCharge := spot.HourlyPrice * float64(req.DurationHours)
	deposit := s.config.Engine.DepositAmount

	switch PaymentMethod(req.PaymentMethod) {
	case MethodWallet:
		session, err := s.reserveWithWallet(ctx, driverID, spot.ID, baseCharge, deposit, req.DurationHours)
		if err != nil {
			return nil, err
		}
		resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
		return &ReserveResponse{Session: &resp}, nil

	case MethodExternal:
		payment, err := s.paymentSvc.InitiatePayment(ctx, driverID, spot.ID, baseCharge, deposit, req.DurationHours)
		if err != nil {
			return nil, err
		}
		return &ReserveResponse{
			PendingPayment: &PendingPaymentResponse{
				Reference:     payment.Reference,
				Amount:        payment.Amount,
				BaseCharge:    payment.BaseCharge,
				Deposit:       payment.Deposit,
				SpotID:        payment.SpotID,
				DurationHours: payment.DurationHours,
			},
		}, nil

	default:
		return nil, ErrInvalidMethod
	}
}

func (s *service) validateReservation(ctx context.Context, driverID, spotID uuid.UUID) (spots.Spot, error) {
	spot, err := s.spotSvc.Store().Get(spotID)
	if err != nil {
		return spots.Spot{}, err
	}

	driver, err := s.driverSvc.GetProfile(ctx, driverID)
	if err != nil {
		return spots.Spot{}, err
	}

	if !spot.VehicleType.Admits(spots.VehicleType(driver.VehicleType)) {
		return spots.Spot{}, ErrVehicleNotAllowed
	}
	if spot.IsBlockedAt(time.Now().UTC()) {
		return spots.Spot{}, ErrSpotBlocked
	}
	return spot, nil
}

func (s *service) reserveWithWallet(ctx context.Context, driverID, spotID uuid.UUID, baseCharge, deposit float64, durationHours int) (*Session, error) {
	totalCharge := baseCharge + deposit
	if err := s.driverSvc.DebitWallet(ctx, driverID, totalCharge); err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, driverID, spotID, baseCharge, deposit, durationHours, MethodWallet, "")
	if err != nil {
		// Put the full charge back; the reservation never happened.
		if creditErr := s.driverSvc.CreditWallet(ctx, driverID, totalCharge); creditErr != nil {
			s.logger.ErrorWithContext(ctx, "failed to refund charge after reserve failure", creditErr, map[string]interface{}{
				"driver_id": driverID.String(),
				"amount":    totalCharge,
			})
		}
		return nil, err
	}
	return session, nil
}

func (s *service) ConfirmReservation(ctx context.Context, driverID uuid.UUID, reference string) (*SessionResponse, error) {
	payment, err := s.paymentSvc.ConfirmPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.DriverID != driverID {
		return nil, payments.ErrPaymentNotFound
	}

	session, err := s.createSession(ctx, payment.DriverID, payment.SpotID, payment.BaseCharge, payment.Deposit, payment.DurationHours, MethodExternal, payment.Reference)
	if err != nil {
		// The money is taken but the reservation cannot be honored. Park
		// the payment in the reconciliation queue for an operator refund.
		reason := "spot filled before payment confirmation"
		if !errors.Is(err, spots.ErrInsufficientCapacity) {
			reason = fmt.Sprintf("reservation failed after payment: %v", err)
		}
		if _, recErr := s.paymentSvc.RecordReconciliation(ctx, payment, reason); recErr != nil {
			s.logger.ErrorWithContext(ctx, "failed to record refund reconciliation", recErr, map[string]interface{}{
				"reference": payment.Reference,
			})
		}
		if consumeErr := s.paymentSvc.ConsumePayment(ctx, reference, nil); consumeErr != nil {
			s.logger.ErrorWithContext(ctx, "failed to consume reconciled payment", consumeErr, map[string]interface{}{
				"reference": payment.Reference,
			})
		}
		return nil, err
	}

	if err := s.paymentSvc.ConsumePayment(ctx, reference, &session.ID); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to consume payment", err, map[string]interface{}{
			"reference":  reference,
			"session_id": session.ID.String(),
		})
	}

	resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
	return &resp, nil
}

// createSession claims a capacity unit, persists the session, and rolls the
// unit back if persistence fails.
func (s *service) createSession(ctx context.Context, driverID, spotID uuid.UUID, baseCharge, deposit float64, durationHours int, method PaymentMethod, reference string) (*Session, error) {
	if _, err := s.spotSvc.ReserveUnit(ctx, spotID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		SpotID:           spotID,
		DriverID:         driverID,
		State:            StateActive,
		StartedAt:        now,
		ExpiresAt:        now.Add(time.Duration(durationHours) * time.Hour),
		BaseCharge:       baseCharge,
		Deposit:          deposit,
		PaymentMethod:    method,
		PaymentReference: reference,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		if _, releaseErr := s.spotSvc.ReleaseUnit(ctx, spotID); releaseErr != nil {
			s.logger.ErrorWithContext(ctx, "failed to release unit after create failure", releaseErr, map[string]interface{}{
				"spot_id": spotID.String(),
			})
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.publisher.Publish(broadcast.SessionEvent(broadcast.EventSessionReserved, session.ID, spotID, string(StateActive)))
	s.logger.LogReservationCreated(ctx, session.ID.String(), spotID.String(), driverID.String(), string(method))
	return session, nil
}

func (s *service) GetSession(ctx context.Context, requesterID uuid.UUID, requesterRole string, sessionID uuid.UUID) (*SessionResponse, error) {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.DriverID != requesterID && requesterRole != string(drivers.RoleAdmin) {
		return nil, ErrNotSessionOwner
	}
	resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
	return &resp, nil
}

func (s *service) ListMySessions(ctx context.Context, driverID uuid.UUID) ([]SessionResponse, error) {
	sessions, err := s.repo.ListSessionsByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, ToSessionResponse(&sessions[i], s.config.Engine, now))
	}
	return responses, nil
}

func (s *service) Checkout(ctx context.Context, driverID uuid.UUID, sessionID uuid.UUID, req *CheckoutRequest) (*SessionResponse, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.DriverID != driverID {
		return nil, ErrNotSessionOwner
	}

	// Repeated checkouts return the stored settlement unchanged.
	if session.State.IsTerminal() {
		resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
		return &resp, nil
	}

	if req.Lat == nil || req.Lng == nil {
		return nil, ErrGpsUnavailable
	}

	spot, err := s.spotSvc.Store().Get(session.SpotID)
	if err == nil {
		distance := HaversineMeters(*req.Lat, *req.Lng, spot.Lat, spot.Lng)
		if distance < s.config.Engine.MinDepartureRadiusM {
			return nil, ErrTooCloseToSpot
		}
	}

	now := time.Now().UTC()
	penalty, refund, debt := Settle(s.config.Engine, session.Deposit, session.ExpiresAt, now)

	return s.settle(ctx, session, Settlement{
		State:        StateCheckedOut,
		EndedAt:      now,
		RefundAmount: refund,
		Penalty:      penalty,
		DebtRecorded: debt,
	}, broadcast.EventSessionCheckedOut, "")
}

func (s *service) ForceEnd(ctx context.Context, sessionID uuid.UUID, reason string) (*SessionResponse, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.IsTerminal() {
		resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
		return &resp, nil
	}

	// Admin eviction refunds the full deposit regardless of overtime.
	return s.settle(ctx, session, Settlement{
		State:        StateForceEnded,
		EndedAt:      time.Now().UTC(),
		RefundAmount: session.Deposit,
	}, broadcast.EventSessionForceEnded, reason)
}

func (s *service) ForceEndBySpot(ctx context.Context, spotID uuid.UUID, reason string) ([]SessionResponse, error) {
	live, err := s.repo.ListLiveSessionsBySpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, ErrNoActiveSession
	}
	responses := make([]SessionResponse, 0, len(live))
	for i := range live {
		resp, err := s.ForceEnd(ctx, live[i].ID, reason)
		if err != nil {
			return responses, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (s *service) SessionRecord(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	return s.repo.GetSessionByID(ctx, sessionID)
}

func (s *service) ListLiveBySpot(ctx context.Context, spotID uuid.UUID) ([]Session, error) {
	return s.repo.ListLiveSessionsBySpot(ctx, spotID)
}

/// Reinstate reverses a force-end: the capacity unit is claimed again, the
// refunded deposit is taken back, and the session returns to ACTIVE. Any
// step failing rolls the earlier ones back so no partial state survives.
func (s *service) Reinstate(ctx context.Context, sessionID uuid.UUID) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.State != StateForceEnded {
		return ErrSessionNotRestorable
	}

	if _, err := s.spotSvc.ReserveUnit(ctx, session.SpotID); err != nil {
		return err
	}

	if session.RefundAmount > 0 {
		if err := s.driverSvc.DebitWallet(ctx, session.DriverID, session.RefundAmount); err != nil {
			s.releaseQuietly(ctx, session.SpotID)
			return err
		}
	}

	reactivated, err := s.repo.Reactivate(ctx, sessionID)
	if err != nil || !reactivated {
		if session.RefundAmount > 0 {
			if creditErr := s.driverSvc.CreditWallet(ctx, session.DriverID, session.RefundAmount); creditErr != nil {
				s.logger.ErrorWithContext(ctx, "failed to return deposit after reinstate failure", creditErr, map[string]interface{}{
					"session_id": sessionID.String(),
				})
			}
		}
		s.releaseQuietly(ctx, session.SpotID)
		if err != nil {
			return fmt.Errorf("failed to reinstate session: %w", err)
		}
		return ErrSessionNotRestorable
	}

	s.publisher.Publish(broadcast.SessionEvent(broadcast.EventSessionReserved, session.ID, session.SpotID, string(StateActive)))
	s.logger.InfoWithContext(ctx, "session reinstated", map[string]interface{}{
		"session_id": sessionID.String(),
		"spot_id":    session.SpotID.String(),
	})
	return nil
}

func (s *service) releaseQuietly(ctx context.Context, spotID uuid.UUID) {
	if _, err := s.spotSvc.ReleaseUnit(ctx, spotID); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to release unit on reinstate rollback", err, map[string]interface{}{
			"spot_id": spotID.String(),
		})
	}
}

// settle applies a terminal transition. The conditional update decides the
// winner; the loser reads back whatever settlement actually happened.
func (s *service) settle(ctx context.Context, session *Session, settlement Settlement, eventType broadcast.EventType, message string) (*SessionResponse, error) {
	applied, err := s.repo.MarkTerminal(ctx, session.ID, settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to settle session: %w", err)
	}
	if !applied {
		stored, err := s.repo.GetSessionByID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		resp := ToSessionResponse(stored, s.config.Engine, time.Now().UTC())
		return &resp, nil
	}

	session.State = settlement.State
	session.EndedAt = &settlement.EndedAt
	session.RefundAmount = settlement.RefundAmount
	session.Penalty = settlement.Penalty
	session.DebtRecorded = settlement.DebtRecorded

	if _, err := s.spotSvc.ReleaseUnit(ctx, session.SpotID); err != nil {
		if errors.Is(err, spots.ErrSpotNotFound) || errors.Is(err, spots.ErrReleaseAboveCapacity) {
			s.logger.WarnWithContext(ctx, "could not release unit on settle", map[string]interface{}{
				"spot_id": session.SpotID.String(),
				"error":   err.Error(),
			})
		} else {
			s.logger.ErrorWithContext(ctx, "failed to release unit on settle", err, map[string]interface{}{
				"spot_id": session.SpotID.String(),
			})
		}
	}

	if session.RefundAmount > 0 {
		if err := s.driverSvc.CreditWallet(ctx, session.DriverID, session.RefundAmount); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to credit refund", err, map[string]interface{}{
				"driver_id": session.DriverID.String(),
				"amount":    session.RefundAmount,
			})
		}
	}
	if session.DebtRecorded > 0 {
		if err := s.driverSvc.RecordDebt(ctx, session.DriverID, session.DebtRecorded); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to record debt", err, map[string]interface{}{
				"driver_id": session.DriverID.String(),
				"amount":    session.DebtRecorded,
			})
		}
	}

	s.clearOvertimeFlag(session.ID)
	event := broadcast.SessionEvent(eventType, session.ID, session.SpotID, string(session.State))
	event.Message = message
	s.publisher.Publish(event)
	s.logger.LogSessionSettled(ctx, session.ID.String(), string(session.State), session.RefundAmount, session.Penalty)

	resp := ToSessionResponse(session, s.config.Engine, time.Now().UTC())
	return &resp, nil
}

func (s *service) CountLiveBySpot(ctx context.Context, spotID uuid.UUID) (int, error) {
	return s.repo.CountLiveSessionsBySpot(ctx, spotID)
}

// StartSweeper runs the lifecycle monitor until the context is canceled:
// it flags sessions that crossed into overtime and heals any drift between
// spot availability and the live session count.
func (s *service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.config.Engine.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *service) sweep(ctx context.Context) {
	live, err := s.repo.ListLiveSessions(ctx)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "sweep failed to list live sessions", err, nil)
		return
	}

	now := time.Now().UTC()
	liveBySpot := make(map[uuid.UUID]int)
	liveIDs := make(map[uuid.UUID]bool, len(live))
	for i := range live {
		session := &live[i]
		liveBySpot[session.SpotID]++
		liveIDs[session.ID] = true

		if session.EffectiveState(now) == StateOvertime && s.markOvertimeOnce(session.ID) {
			s.publisher.Publish(broadcast.SessionEvent(broadcast.EventSessionOvertime, session.ID, session.SpotID, string(StateOvertime)))
		}
	}

	s.pruneOvertimeFlags(liveIDs)

	known := make(map[uuid.UUID]bool)
	for _, spot := range s.spotSvc.Store().Snapshot() {
		known[spot.ID] = true
		if _, _, err := s.spotSvc.ReconcileSpot(ctx, spot.ID, liveBySpot[spot.ID]); err != nil {
			s.logger.ErrorWithContext(ctx, "sweep failed to reconcile spot", err, map[string]interface{}{
				"spot_id": spot.ID.String(),
			})
		}
	}

	// Sessions whose spot vanished from inventory cannot be checked out or
	// settled normally; end them so drivers get their deposits back.
	for spotID := range liveBySpot {
		if known[spotID] {
			continue
		}
		if _, err := s.ForceEndBySpot(ctx, spotID, "spot removed from inventory"); err != nil && !errors.Is(err, ErrNoActiveSession) {
			s.logger.ErrorWithContext(ctx, "sweep failed to end orphaned sessions", err, map[string]interface{}{
				"spot_id": spotID.String(),
			})
		}
	}
}

func (s *service) markOvertimeOnce(sessionID uuid.UUID) bool {
	s.overtimeMu.Lock()
	defer s.overtimeMu.Unlock()
	if s.overtimeNotified[sessionID] {
		return false
	}
	s.overtimeNotified[sessionID] = true
	return true
}

func (s *service) clearOvertimeFlag(sessionID uuid.UUID) {
	s.overtimeMu.Lock()
	delete(s.overtimeNotified, sessionID)
	s.overtimeMu.Unlock()
}

func (s *service) pruneOvertimeFlags(liveIDs map[uuid.UUID]bool) {
	s.overtimeMu.Lock()
	for id := range s.overtimeNotified {
		if !liveIDs[id] {
			delete(s.overtimeNotified, id)
		}
	}
	s.overtimeMu.Unlock()
}
