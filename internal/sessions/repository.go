package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settlement carries the terminal fields written when a session ends.
type Settlement struct {
	State        State
	EndedAt      time.Time
	RefundAmount float64
	Penalty      float64
	DebtRecorded float64
}

type Repository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessionsByDriver(ctx context.Context, driverID uuid.UUID) ([]Session, error)
	ListLiveSessions(ctx context.Context) ([]Session, error)
	ListLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) ([]Session, error)
	CountLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) (int, error)

	// MarkTerminal applies the settlement only if the session is still
	// ACTIVE. Returns false when another settlement won the race; the
	// stored row is then authoritative.
	MarkTerminal(ctx context.Context, id uuid.UUID, settlement Settlement) (bool, error)

	// Reactivate reverses a force-end: the session returns to ACTIVE with
	// its settlement fields cleared. Returns false unless the stored state
	// is FORCE_ENDED.
	Reactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSession(ctx context.Context, session *Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListSessionsByDriver(ctx context.Context, driverID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) ListLiveSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("state = ?", StateActive).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) ListLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("spot_id = ? AND state = ?", spotID, StateActive).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) CountLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Session{}).
		Where("spot_id = ? AND state = ?", spotID, StateActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repository) MarkTerminal(ctx context.Context, id uuid.UUID, settlement Settlement) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND state = ?", id, StateActive).
		Updates(map[string]interface{}{
			"state":         settlement.State,
			"ended_at":      settlement.EndedAt,
			"refund_amount": settlement.RefundAmount,
			"penalty":       settlement.Penalty,
			"debt_recorded": settlement.DebtRecorded,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Reactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND state = ?", id, StateForceEnded).
		Updates(map[string]interface{}{
			"state":         StateActive,
			"ended_at":      nil,
			"refund_amount": 0.0,
			"penalty":       0.0,
			"debt_recorded": 0.0,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
