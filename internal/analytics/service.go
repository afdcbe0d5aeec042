package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parkwell/internal/shared/constants"
	"parkwell/internal/spots"
	"parkwell/pkg/cache"
)

const recentSessionLimit = 10

type Service interface {
	GetDashboardAnalytics(ctx context.Context) (*DashboardAnalytics, error)
	GetSpotAnalytics(ctx context.Context, spotID uuid.UUID) (*SpotAnalytics, error)
	SetCacheService(cacheService cache.Service)
}

type service struct {
	repo         Repository
	spotSvc      spots.Service
	cacheService cache.Service
}

func NewService(repo Repository, spotSvc spots.Service) Service {
	return &service{
		repo:    repo,
		spotSvc: spotSvc,
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) GetDashboardAnalytics(ctx context.Context) (*DashboardAnalytics, error) {
	cacheKey := constants.CACHE_KEY_ANALYTICS_DASHBOARD

	if s.cacheService != nil {
		var cached DashboardAnalytics
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	dashboard, err := s.buildDashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard analytics: %w", err)
	}

	if s.cacheService != nil {
		_ = s.cacheService.Set(ctx, cacheKey, dashboard, constants.TTL_ANALYTICS_DASHBOARD)
	}
	return dashboard, nil
}

func (s *service) buildDashboard(ctx context.Context) (*DashboardAnalytics, error) {
	agg, err := s.repo.GetSessionAggregates(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentSessions(ctx, recentSessionLimit)
	if err != nil {
		return nil, err
	}

	unresolved, err := s.repo.CountUnresolvedReconciliations(ctx)
	if err != nil {
		return nil, err
	}

	dashboard := &DashboardAnalytics{
		TotalSessions:             agg.TotalSessions,
		TotalRevenue:              agg.TotalRevenue,
		TotalRefunds:              agg.TotalRefunds,
		TotalPenalties:            agg.TotalPenalties,
		TotalDebt:                 agg.TotalDebt,
		UnresolvedReconciliations: unresolved,
		RecentSessions:            recent,
		GeneratedAt:               time.Now().UTC(),
	}

	overtime, err := s.repo.CountOvertimeSessions(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	dashboard.OvertimeSessions = int(overtime)

	// Inventory numbers come from the authoritative store so the
	// dashboard matches what drivers see on the map.
	for _, spot := range s.spotSvc.Store().Snapshot() {
		dashboard.TotalSpots++
		dashboard.TotalCapacity += spot.Capacity
		dashboard.TotalAvailable += spot.Available
		dashboard.LiveSessions += spot.Capacity - spot.Available
	}

	return dashboard, nil
}

func (s *service) GetSpotAnalytics(ctx context.Context, spotID uuid.UUID) (*SpotAnalytics, error) {
	if !s.spotSvc.Store().Exists(spotID) {
		return nil, spots.ErrSpotNotFound
	}
	return s.repo.GetSpotAnalytics(ctx, spotID)
}
