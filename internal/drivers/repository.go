package drivers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateDriver(ctx context.Context, driver *Driver) error
	GetDriverByEmail(ctx context.Context, email string) (*Driver, error)
	GetDriverByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	UpdateDriverPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	EmailExists(ctx context.Context, email string) (bool, error)

	// Wallet mutations are single conditional UPDATEs so concurrent
	// reservations cannot overdraw a balance.
	DebitWallet(ctx context.Context, id uuid.UUID, amount float64) error
	CreditWallet(ctx context.Context, id uuid.UUID, amount float64) error
	AddDebt(ctx context.Context, id uuid.UUID, amount float64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) CreateDriver(ctx context.Context, driver *Driver) error {
	if err := r.db.WithContext(ctx).Create(driver).Error; err != nil {
		return err
	}
	return nil
}

func (r *repository) GetDriverByEmail(ctx context.Context, email string) (*Driver, error) {
	var driver Driver
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return &driver, nil
}

func (r *repository) GetDriverByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	var driver Driver
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return &driver, nil
}

func (r *repository) UpdateDriverPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	result := r.db.WithContext(ctx).Model(&Driver{}).
		Where("id = ?", id).
		Update("password", hashedPassword)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrDriverNotFound
	}

	return nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Driver{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) DebitWallet(ctx context.Context, id uuid.UUID, amount float64) error {
	result := r.db.WithContext(ctx).Model(&Driver{}).
		Where("id = ? AND wallet_balance >= ?", id, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Either the driver is missing or the balance is short; recheck
		// existence so callers get the right sentinel.
		if _, err := r.GetDriverByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}

	return nil
}

func (r *repository) CreditWallet(ctx context.Context, id uuid.UUID, amount float64) error {
	result := r.db.WithContext(ctx).Model(&Driver{}).
		Where("id = ?", id).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrDriverNotFound
	}

	return nil
}

func (r *repository) AddDebt(ctx context.Context, id uuid.UUID, amount float64) error {
	result := r.db.WithContext(ctx).Model(&Driver{}).
		Where("id = ?", id).
		Update("outstanding_debt", gorm.Expr("outstanding_debt + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrDriverNotFound
	}

	return nil
}
