package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes the hot paths rely on
func MigrateConstraints(db *gorm.DB) error {
	// Live-session lookups by spot drive the inventory invariant checks.
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_spot_live
		ON sessions (spot_id)
		WHERE state = 'ACTIVE';
	`).Error
	if err != nil {
		return err
	}

	// The sweeper scans for sessions crossing into overtime.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_live_expiry
		ON sessions (expires_at)
		WHERE state = 'ACTIVE';
	`).Error
	if err != nil {
		return err
	}

	// Reconciliation queue is worked oldest-first while unresolved.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reconciliations_unresolved
		ON refund_reconciliations (created_at)
		WHERE resolved = false;
	`).Error
	if err != nil {
		return err
	}

	return nil
}
