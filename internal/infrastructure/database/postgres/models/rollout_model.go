package models

import (
	"time"

	"github.com/google/uuid"
)

// RolloutModel is the database row for rollout records. Version fields are
// denormalized snapshots so terminal history stays readable after the
// firmware or device row is deleted. The partial unique index on device_id
// enforces the single-active-rollout invariant at the storage layer.
type RolloutModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DeviceID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	FleetID         string     `gorm:"type:varchar(64);not null"`
	FirmwareID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	PreviousVersion *string    `gorm:"type:varchar(100)"`
	TargetVersion   string     `gorm:"type:varchar(100);not null"`
	Status          string     `gorm:"type:varchar(20);not null"`
	Progress        int        `gorm:"not null;default:0"`
	FailureReason   *string    `gorm:"type:varchar(255)"`
	StartedAt       time.Time  `gorm:"not null;index"`
	CompletedAt     *time.Time `gorm:"type:timestamp"`
}

func (RolloutModel) TableName() string {
	return "rollout_records"
}
