package spots

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"parkwell/internal/broadcast"
	"parkwell/internal/shared/constants"
	"parkwell/pkg/cache"
	"parkwell/pkg/logger"
)

// Service is the inventory facade. Reads go through the redis snapshot
// cache; mutations hit the authoritative store, invalidate the cache and
// fan out a broadcast event.
type Service interface {
	ListSpots(ctx context.Context) ([]SpotResponse, error)
	GetSpot(ctx context.Context, id uuid.UUID) (SpotResponse, error)

	// Reservation-path operations, called by the session orchestrator.
	ReserveUnit(ctx context.Context, id uuid.UUID) (int, error)
	ReleaseUnit(ctx context.Context, id uuid.UUID) (int, error)
	ReconcileSpot(ctx context.Context, id uuid.UUID, live int) (int, bool, error)

	// Admin operations, called through the action journal.
	AddSpot(ctx context.Context, spot Spot) (Spot, error)
	EditSpot(ctx context.Context, id uuid.UUID, attrs EditAttrs) (Spot, error)
	DeleteSpot(ctx context.Context, id uuid.UUID) (Spot, error)

	Store() *Store
}

type service struct {
	store     *Store
	cache     cache.Service
	publisher broadcast.Publisher
	logger    *logger.Logger
}

func NewService(store *Store, cacheService cache.Service, publisher broadcast.Publisher, log *logger.Logger) Service {
	return &service{
		store:     store,
		cache:     cacheService,
		publisher: publisher,
		logger:    log,
	}
}

func (s *service) Store() *Store {
	return s.store
}

func (s *service) ListSpots(ctx context.Context) ([]SpotResponse, error) {
	var cached []SpotResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, constants.CACHE_KEY_SPOTS_SNAPSHOT, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnWithContext(ctx, "spot snapshot cache read failed", map[string]interface{}{"error": err})
		}
	}

	snapshot := s.store.Snapshot()
	responses := make([]SpotResponse, 0, len(snapshot))
	for i := range snapshot {
		responses = append(responses, ToSpotResponse(&snapshot[i]))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, constants.CACHE_KEY_SPOTS_SNAPSHOT, responses, constants.TTL_SPOT_SNAPSHOT); err != nil {
			s.logger.WarnWithContext(ctx, "spot snapshot cache write failed", map[string]interface{}{"error": err})
		}
	}
	return responses, nil
}

func (s *service) GetSpot(ctx context.Context, id uuid.UUID) (SpotResponse, error) {
	spot, err := s.store.Get(id)
	if err != nil {
		return SpotResponse{}, err
	}
	return ToSpotResponse(&spot), nil
}

func (s *service) ReserveUnit(ctx context.Context, id uuid.UUID) (int, error) {
	available, err := s.store.ReserveOne(ctx, id)
	if err != nil {
		return available, err
	}
	s.afterAvailabilityChange(ctx, id, available)
	return available, nil
}

func (s *service) ReleaseUnit(ctx context.Context, id uuid.UUID) (int, error) {
	available, err := s.store.ReleaseOne(ctx, id)
	if err != nil {
		return available, err
	}
	s.afterAvailabilityChange(ctx, id, available)
	return available, nil
}

func (s *service) ReconcileSpot(ctx context.Context, id uuid.UUID, live int) (int, bool, error) {
	available, changed, err := s.store.Reconcile(ctx, id, live)
	if err != nil {
		return available, false, err
	}
	if changed {
		s.logger.WarnWithContext(ctx, "healed spot availability drift", map[string]interface{}{
			"spot_id":   id.String(),
			"available": available,
			"live":      live,
		})
		s.afterAvailabilityChange(ctx, id, available)
	}
	return available, changed, nil
}

func (s *service) AddSpot(ctx context.Context, spot Spot) (Spot, error) {
	created, err := s.store.Add(ctx, spot)
	if err != nil {
		return Spot{}, err
	}
	s.invalidateSnapshot(ctx)
	s.publish(broadcast.SpotEvent(broadcast.EventSpotAdded, created.ID))
	return created, nil
}

func (s *service) EditSpot(ctx context.Context, id uuid.UUID, attrs EditAttrs) (Spot, error) {
	updated, err := s.store.Edit(ctx, id, attrs)
	if err != nil {
		return Spot{}, err
	}
	s.invalidateSnapshot(ctx)
	s.publish(broadcast.SpotEvent(broadcast.EventSpotUpdated, id))
	return updated, nil
}

func (s *service) DeleteSpot(ctx context.Context, id uuid.UUID) (Spot, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return Spot{}, err
	}
	s.invalidateSnapshot(ctx)
	s.publish(broadcast.SpotEvent(broadcast.EventSpotDeleted, id))
	return removed, nil
}

func (s *service) afterAvailabilityChange(ctx context.Context, id uuid.UUID, available int) {
	s.invalidateSnapshot(ctx)
	s.publish(broadcast.SpotAvailability(id, available))
}

func (s *service) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, constants.CACHE_KEY_SPOTS_SNAPSHOT); err != nil {
		s.logger.WarnWithContext(ctx, "spot snapshot cache invalidation failed", map[string]interface{}{"error": err})
	}
}

func (s *service) publish(event broadcast.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// blockedDateLayout is the wire format for blocked dates
const blockedDateLayout = "2006-01-02"

// ParseBlockedDate validates an admin-supplied blocked date string
func ParseBlockedDate(value string) (string, error) {
	t, err := time.Parse(blockedDateLayout, value)
	if err != nil {
		return "", ErrInvalidSpotAttributes
	}
	return t.Format(blockedDateLayout), nil
}
