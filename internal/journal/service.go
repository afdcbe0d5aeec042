package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkwell/internal/drivers"
	"parkwell/internal/sessions"
	"parkwell/internal/spots"
	"parkwell/pkg/logger"
)

// Service routes every admin mutation, spot changes and session
// force-cancellations alike, through the action journal so each one can be
// undone and redone. History is linear: undoing and then applying a fresh
// action supersedes the undone tail.
type Service interface {
	AddSpot(ctx context.Context, actorID uuid.UUID, req *AddSpotRequest) (spots.SpotResponse, error)
	EditSpot(ctx context.Context, actorID, spotID uuid.UUID, req *EditSpotRequest) (spots.SpotResponse, error)
	DeleteSpot(ctx context.Context, actorID, spotID uuid.UUID) error

	ForceEndSession(ctx context.Context, actorID, sessionID uuid.UUID, reason string) (*sessions.SessionResponse, error)
	ForceEndSpot(ctx context.Context, actorID, spotID uuid.UUID, reason string) ([]sessions.SessionResponse, error)

	Undo(ctx context.Context, actorID uuid.UUID) (*ActionResponse, error)
	Redo(ctx context.Context, actorID uuid.UUID) (*ActionResponse, error)

	ListActions(ctx context.Context, limit int) ([]ActionResponse, error)
}

// SessionControl is the slice of the session service the journal needs to
// apply force-cancellations and their inverse.
type SessionControl interface {
	SessionRecord(ctx context.Context, sessionID uuid.UUID) (*sessions.Session, error)
	ListLiveBySpot(ctx context.Context, spotID uuid.UUID) ([]sessions.Session, error)
	ForceEnd(ctx context.Context, sessionID uuid.UUID, reason string) (*sessions.SessionResponse, error)
	Reinstate(ctx context.Context, sessionID uuid.UUID) error
}

type service struct {
	repo       Repository
	spotSvc    spots.Service
	sessionCtl SessionControl
	logger     *logger.Logger

	// One mutation or undo/redo at a time; the journal's order is the
	// source of truth and must match the order effects were applied.
	mu sync.Mutex
}

func NewService(repo Repository, spotSvc spots.Service, sessionCtl SessionControl, log *logger.Logger) Service {
	return &service{
		repo:       repo,
		spotSvc:    spotSvc,
		sessionCtl: sessionCtl,
		logger:     log,
	}
}

func (s *service) AddSpot(ctx context.Context, actorID uuid.UUID, req *AddSpotRequest) (spots.SpotResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot := spots.Spot{
		Name:        req.Name,
		HourlyPrice: req.HourlyPrice,
		Capacity:    req.Capacity,
		Available:   req.Capacity,
		Lat:         req.Lat,
		Lng:         req.Lng,
		VehicleType: spots.VehicleType(req.VehicleType),
		TrustLevel:  req.TrustLevel,
	}
	if spot.TrustLevel == 0 {
		spot.TrustLevel = 3
	}
	spot.SetBlockedDates(req.BlockedDates)
	spot.SetBlockedWeekdays(toWeekdays(req.BlockedWeekdays))

	created, err := s.spotSvc.AddSpot(ctx, spot)
	if err != nil {
		return spots.SpotResponse{}, err
	}

	after := SnapshotOf(&created)
	if err := s.append(ctx, actorID, KindAddSpot, created.ID, nil, &after); err != nil {
		return spots.SpotResponse{}, err
	}
	return spots.ToSpotResponse(&created), nil
}

func (s *service) EditSpot(ctx context.Context, actorID, spotID uuid.UUID, req *EditSpotRequest) (spots.SpotResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.spotSvc.Store().Get(spotID)
	if err != nil {
		return spots.SpotResponse{}, err
	}
	before := SnapshotOf(&current)

	attrs := spots.EditAttrs{
		Name:        req.Name,
		HourlyPrice: req.HourlyPrice,
		Capacity:    req.Capacity,
		Lat:         req.Lat,
		Lng:         req.Lng,
		TrustLevel:  req.TrustLevel,
	}
	if req.VehicleType != nil {
		vt := spots.VehicleType(*req.VehicleType)
		attrs.VehicleType = &vt
	}
	if req.BlockedDates != nil {
		attrs.BlockedDates = req.BlockedDates
	}
	if req.BlockedWeekdays != nil {
		attrs.BlockedWeekdays = toWeekdays(req.BlockedWeekdays)
	}

	updated, err := s.spotSvc.EditSpot(ctx, spotID, attrs)
	if err != nil {
		return spots.SpotResponse{}, err
	}

	after := SnapshotOf(&updated)
	if err := s.append(ctx, actorID, KindEditSpot, spotID, &before, &after); err != nil {
		return spots.SpotResponse{}, err
	}
	return spots.ToSpotResponse(&updated), nil
}

func (s *service) DeleteSpot(ctx context.Context, actorID, spotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.spotSvc.DeleteSpot(ctx, spotID)
	if err != nil {
		return err
	}

	before := SnapshotOf(&removed)
	return s.append(ctx, actorID, KindDeleteSpot, spotID, &before, nil)
}

// append records an applied spot action and retires any undone tail.
func (s *service) append(ctx context.Context, actorID uuid.UUID, kind ActionKind, spotID uuid.UUID, before, after *SpotSnapshot) error {
	return s.appendAction(ctx, &AdminAction{
		Kind:    kind,
		SpotID:  spotID,
		ActorID: actorID,
		Before:  encodeSnapshot(before),
		After:   encodeSnapshot(after),
	})
}

func (s *service) appendAction(ctx context.Context, action *AdminAction) error {
	if err := s.repo.SupersedeUndone(ctx); err != nil {
		return fmt.Errorf("failed to supersede undone actions: %w", err)
	}
	if err := s.repo.CreateAction(ctx, action); err != nil {
		return fmt.Errorf("failed to journal admin action: %w", err)
	}

	s.logger.LogAdminAction(ctx, string(action.Kind), action.SpotID.String(), action.Seq)
	return nil
}

func (s *service) ForceEndSession(ctx context.Context, actorID, sessionID uuid.UUID, reason string) (*sessions.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.sessionCtl.SessionRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Repeats return the stored settlement without journaling again.
	if record.State.IsTerminal() {
		return s.sessionCtl.ForceEnd(ctx, sessionID, reason)
	}
	return s.forceEndOne(ctx, actorID, record, reason)
}

func (s *service) ForceEndSpot(ctx context.Context, actorID, spotID uuid.UUID, reason string) ([]sessions.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.sessionCtl.ListLiveBySpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, sessions.ErrNoActiveSession
	}

	responses := make([]sessions.SessionResponse, 0, len(live))
	for i := range live {
		resp, err := s.forceEndOne(ctx, actorID, &live[i], reason)
		if err != nil {
			return responses, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (s *service) forceEndOne(ctx context.Context, actorID uuid.UUID, record *sessions.Session, reason string) (*sessions.SessionResponse, error) {
	before := SessionSnapshotOf(record, reason)

	resp, err := s.sessionCtl.ForceEnd(ctx, record.ID, reason)
	if err != nil {
		return nil, err
	}

	err = s.appendAction(ctx, &AdminAction{
		Kind:      KindForceCancelSession,
		SpotID:    record.SpotID,
		SessionID: record.ID,
		ActorID:   actorID,
		Before:    encodeSessionSnapshot(&before),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *service) Undo(ctx context.Context, actorID uuid.UUID) (*ActionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := s.repo.LatestApplied(ctx)
	if err != nil {
		if errors.Is(err, ErrActionNotFound) {
			return nil, ErrNothingToUndo
		}
		return nil, err
	}

	if err := s.applyInverse(ctx, action); err != nil {
		return nil, err
	}

	if err := s.repo.SetUndone(ctx, action.ID, true); err != nil {
		return nil, err
	}
	action.Undone = true

	s.logger.LogAdminAction(ctx, "UNDO_"+string(action.Kind), action.SpotID.String(), action.Seq)
	resp := ToActionResponse(action)
	return &resp, nil
}

func (s *service) Redo(ctx context.Context, actorID uuid.UUID) (*ActionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := s.repo.OldestUndone(ctx)
	if err != nil {
		if errors.Is(err, ErrActionNotFound) {
			return nil, ErrNothingToRedo
		}
		return nil, err
	}

	if err := s.applyForward(ctx, action); err != nil {
		return nil, err
	}

	if err := s.repo.SetUndone(ctx, action.ID, false); err != nil {
		return nil, err
	}
	action.Undone = false

	s.logger.LogAdminAction(ctx, "REDO_"+string(action.Kind), action.SpotID.String(), action.Seq)
	resp := ToActionResponse(action)
	return &resp, nil
}

func (s *service) ListActions(ctx context.Context, limit int) ([]ActionResponse, error) {
	actions, err := s.repo.ListActions(ctx, limit)
	if err != nil {
		return nil, err
	}
	responses := make([]ActionResponse, 0, len(actions))
	for i := range actions {
		responses = append(responses, ToActionResponse(&actions[i]))
	}
	return responses, nil
}

func (s *service) applyInverse(ctx context.Context, action *AdminAction) error {
	switch action.Kind {
	case KindAddSpot:
		// Undoing an add deletes the spot again.
		if _, err := s.spotSvc.DeleteSpot(ctx, action.SpotID); err != nil {
			return asConflict(err)
		}
		return nil

	case KindEditSpot:
		before, err := action.BeforeSnapshot()
		if err != nil || before == nil {
			return fmt.Errorf("%w: corrupt journal payload", ErrUndoConflict)
		}
		if _, err := s.spotSvc.EditSpot(ctx, action.SpotID, attrsFromSnapshot(before)); err != nil {
			return asConflict(err)
		}
		return nil

	case KindDeleteSpot:
		before, err := action.BeforeSnapshot()
		if err != nil || before == nil {
			return fmt.Errorf("%w: corrupt journal payload", ErrUndoConflict)
		}
		if _, err := s.spotSvc.AddSpot(ctx, spotFromSnapshot(before)); err != nil {
			return asConflict(err)
		}
		return nil

	case KindForceCancelSession:
		// Restoring only applies while the spot still exists with a free
		// unit and the driver can cover the clawed-back deposit.
		if err := s.sessionCtl.Reinstate(ctx, action.SessionID); err != nil {
			return asConflict(err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrUndoConflict, action.Kind)
	}
}

func (s *service) applyForward(ctx context.Context, action *AdminAction) error {
	switch action.Kind {
	case KindAddSpot:
		after, err := action.AfterSnapshot()
		if err != nil || after == nil {
			return fmt.Errorf("%w: corrupt journal payload", ErrUndoConflict)
		}
		if _, err := s.spotSvc.AddSpot(ctx, spotFromSnapshot(after)); err != nil {
			return asConflict(err)
		}
		return nil

	case KindEditSpot:
		after, err := action.AfterSnapshot()
		if err != nil || after == nil {
			return fmt.Errorf("%w: corrupt journal payload", ErrUndoConflict)
		}
		if _, err := s.spotSvc.EditSpot(ctx, action.SpotID, attrsFromSnapshot(after)); err != nil {
			return asConflict(err)
		}
		return nil

	case KindDeleteSpot:
		if _, err := s.spotSvc.DeleteSpot(ctx, action.SpotID); err != nil {
			return asConflict(err)
		}
		return nil

	case KindForceCancelSession:
		snap, err := action.CancelledSession()
		if err != nil || snap == nil {
			return fmt.Errorf("%w: corrupt journal payload", ErrUndoConflict)
		}
		if _, err := s.sessionCtl.ForceEnd(ctx, action.SessionID, snap.Reason); err != nil {
			return asConflict(err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrUndoConflict, action.Kind)
	}
}

// asConflict maps inventory- and session-state failures to ErrUndoConflict
// and passes infrastructure errors through untouched.
func asConflict(err error) error {
	switch {
	case errors.Is(err, spots.ErrSpotNotFound),
		errors.Is(err, spots.ErrSpotAlreadyExists),
		errors.Is(err, spots.ErrSpotHasActiveSession),
		errors.Is(err, spots.ErrCapacityBelowLive),
		errors.Is(err, spots.ErrInsufficientCapacity),
		errors.Is(err, sessions.ErrSessionNotFound),
		errors.Is(err, sessions.ErrSessionNotRestorable),
		errors.Is(err, drivers.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrUndoConflict, err)
	default:
		return err
	}
}

func attrsFromSnapshot(snap *SpotSnapshot) spots.EditAttrs {
	name := snap.Name
	price := snap.HourlyPrice
	capacity := snap.Capacity
	lat := snap.Lat
	lng := snap.Lng
	vt := snap.VehicleType
	trust := snap.TrustLevel
	blockedDates := snap.BlockedDates
	if blockedDates == nil {
		blockedDates = []string{}
	}
	return spots.EditAttrs{
		Name:            &name,
		HourlyPrice:     &price,
		Capacity:        &capacity,
		Lat:             &lat,
		Lng:             &lng,
		VehicleType:     &vt,
		TrustLevel:      &trust,
		BlockedDates:    blockedDates,
		BlockedWeekdays: toWeekdays(snap.BlockedWeekdays),
	}
}

func spotFromSnapshot(snap *SpotSnapshot) spots.Spot {
	spot := spots.Spot{
		ID:          snap.ID,
		Name:        snap.Name,
		HourlyPrice: snap.HourlyPrice,
		Capacity:    snap.Capacity,
		Available:   snap.Capacity,
		Lat:         snap.Lat,
		Lng:         snap.Lng,
		VehicleType: snap.VehicleType,
		TrustLevel:  snap.TrustLevel,
	}
	spot.SetBlockedDates(snap.BlockedDates)
	spot.SetBlockedWeekdays(toWeekdays(snap.BlockedWeekdays))
	return spot
}

func toWeekdays(days []int) []time.Weekday {
	if days == nil {
		return []time.Weekday{}
	}
	weekdays := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		weekdays = append(weekdays, time.Weekday(d))
	}
	return weekdays
}
