package postgres

import (
	"fmt"

	"ota-fleet-manager/internal/infrastructure/database/postgres/models"
	"ota-fleet-manager/internal/logger"
)

// Migrate applies the schema and the partial unique index backing the
// single-active-rollout invariant (AutoMigrate cannot express a partial
// index, so it is created by hand).
func Migrate(db *DB) error {
	if err := db.AutoMigrate(
		&models.DeviceModel{},
		&models.FirmwareModel{},
		&models.RolloutModel{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rollout_single_active
		ON rollout_records (device_id)
		WHERE status IN ('Scheduled', 'In Progress')
	`).Error; err != nil {
		return fmt.Errorf("failed to create active rollout index: %w", err)
	}

	logger.Info("Database schema migrated")
	return nil
}
