package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parkwell/internal/payments"
	"parkwell/internal/sessions"
)

type Repository interface {
	GetSessionAggregates(ctx context.Context) (*sessionAggregates, error)
	GetRecentSessions(ctx context.Context, limit int) ([]RecentSession, error)
	GetSpotAnalytics(ctx context.Context, spotID uuid.UUID) (*SpotAnalytics, error)
	CountOvertimeSessions(ctx context.Context, now time.Time) (int64, error)
	CountUnresolvedReconciliations(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetSessionAggregates(ctx context.Context) (*sessionAggregates, error) {
	var agg sessionAggregates

	err := r.db.WithContext(ctx).Model(&sessions.Session{}).
		Select(`COUNT(*) AS total_sessions,
			COALESCE(SUM(CASE WHEN state IN ('CHECKED_OUT','FORCE_ENDED') THEN deposit - refund_amount ELSE 0 END), 0) AS total_revenue,
			COALESCE(SUM(refund_amount), 0) AS total_refunds,
			COALESCE(SUM(penalty), 0) AS total_penalties,
			COALESCE(SUM(debt_recorded), 0) AS total_debt`).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *repository) GetRecentSessions(ctx context.Context, limit int) ([]RecentSession, error) {
	var rows []sessions.Session
	err := r.db.WithContext(ctx).Model(&sessions.Session{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	recent := make([]RecentSession, 0, len(rows))
	for i := range rows {
		recent = append(recent, RecentSession{
			SessionID: rows[i].ID,
			SpotID:    rows[i].SpotID,
			State:     string(rows[i].State),
			Penalty:   rows[i].Penalty,
			Refund:    rows[i].RefundAmount,
			StartedAt: rows[i].StartedAt,
			EndedAt:   rows[i].EndedAt,
		})
	}
	return recent, nil
}

func (r *repository) GetSpotAnalytics(ctx context.Context, spotID uuid.UUID) (*SpotAnalytics, error) {
	result := SpotAnalytics{SpotID: spotID}

	err := r.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("spot_id = ?", spotID).
		Select(`COUNT(*) AS total_sessions,
			COALESCE(SUM(CASE WHEN state = 'ACTIVE' THEN 1 ELSE 0 END), 0) AS live_sessions,
			COALESCE(SUM(CASE WHEN state IN ('CHECKED_OUT','FORCE_ENDED') THEN deposit - refund_amount ELSE 0 END), 0) AS total_revenue,
			COALESCE(SUM(penalty), 0) AS total_penalty`).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *repository) CountOvertimeSessions(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&sessions.Session{}).
		Where("state = ? AND expires_at < ?", sessions.StateActive, now).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CountUnresolvedReconciliations(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&payments.RefundReconciliation{}).
		Where("resolved = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
