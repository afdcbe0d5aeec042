package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreatePayment(ctx context.Context, payment *PaymentRecord) error
	GetPaymentByReference(ctx context.Context, reference string) (*PaymentRecord, error)

	// Conditional transitions; RowsAffected == 0 means the record was not
	// in the expected state, which the service maps to a typed error.
	ConfirmPayment(ctx context.Context, reference string) (bool, error)
	ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) (bool, error)

	CreateReconciliation(ctx context.Context, rec *RefundReconciliation) error
	ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]RefundReconciliation, error)
	ResolveReconciliation(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePayment(ctx context.Context, payment *PaymentRecord) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) GetPaymentByReference(ctx context.Context, reference string) (*PaymentRecord, error) {
	var payment PaymentRecord
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ConfirmPayment(ctx context.Context, reference string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&PaymentRecord{}).
		Where("reference = ? AND status = ?", reference, StatusPending).
		Update("status", StatusConfirmed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) (bool, error) {
	updates := map[string]interface{}{"status": StatusConsumed}
	if sessionID != nil {
		updates["session_id"] = *sessionID
	}
	result := r.db.WithContext(ctx).Model(&PaymentRecord{}).
		Where("reference = ? AND status = ?", reference, StatusConfirmed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateReconciliation(ctx context.Context, rec *RefundReconciliation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]RefundReconciliation, error) {
	var records []RefundReconciliation
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ResolveReconciliation(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&RefundReconciliation{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReconciliationNotFound
	}
	return nil
}
