package journal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateAction(ctx context.Context, action *AdminAction) error
	ListActions(ctx context.Context, limit int) ([]AdminAction, error)

	// LatestApplied returns the newest action that is applied (not undone,
	// not superseded); OldestUndone returns the next redo candidate.
	LatestApplied(ctx context.Context) (*AdminAction, error)
	OldestUndone(ctx context.Context) (*AdminAction, error)

	SetUndone(ctx context.Context, id uuid.UUID, undone bool) error
	SupersedeUndone(ctx context.Context) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateAction(ctx context.Context, action *AdminAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *repository) ListActions(ctx context.Context, limit int) ([]AdminAction, error) {
	var actions []AdminAction
	query := r.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *repository) LatestApplied(ctx context.Context) (*AdminAction, error) {
	var action AdminAction
	err := r.db.WithContext(ctx).
		Where("undone = ? AND superseded = ?", false, false).
		Order("seq DESC").
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (r *repository) OldestUndone(ctx context.Context) (*AdminAction, error) {
	var action AdminAction
	err := r.db.WithContext(ctx).
		Where("undone = ? AND superseded = ?", true, false).
		Order("seq ASC").
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (r *repository) SetUndone(ctx context.Context, id uuid.UUID, undone bool) error {
	result := r.db.WithContext(ctx).Model(&AdminAction{}).
		Where("id = ?", id).
		Update("undone", undone)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrActionNotFound
	}
	return nil
}

func (r *repository) SupersedeUndone(ctx context.Context) error {
	return r.db.WithContext(ctx).Model(&AdminAction{}).
		Where("undone = ? AND superseded = ?", true, false).
		Update("superseded", true).Error
}
