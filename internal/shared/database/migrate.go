package database

import (
	"parkwell/internal/drivers"
	"parkwell/internal/journal"
	"parkwell/internal/payments"
	"parkwell/internal/sessions"
	"parkwell/internal/spots"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&drivers.Driver{},
		&spots.Spot{},
		&sessions.Session{},
		&payments.PaymentRecord{},
		&payments.RefundReconciliation{},
		&journal.AdminAction{},
	)
}
