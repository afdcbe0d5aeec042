package spots

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists spot records; the in-memory Store is authoritative at
// runtime and writes through here so inventory survives restarts.
type Repository interface {
	List(ctx context.Context) ([]Spot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Spot, error)
	Create(ctx context.Context, spot *Spot) error
	Update(ctx context.Context, spot *Spot) error
	UpdateAvailable(ctx context.Context, id uuid.UUID, available int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Spot, error) {
	var out []Spot
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Spot, error) {
	var spot Spot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&spot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return &spot, nil
}

func (r *repository) Create(ctx context.Context, spot *Spot) error {
	return r.db.WithContext(ctx).Create(spot).Error
}

func (r *repository) Update(ctx context.Context, spot *Spot) error {
	return r.db.WithContext(ctx).Save(spot).Error
}

func (r *repository) UpdateAvailable(ctx context.Context, id uuid.UUID, available int) error {
	res := r.db.WithContext(ctx).
		Model(&Spot{}).
		Where("id = ?", id).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSpotNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Spot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSpotNotFound
	}
	return nil
}
