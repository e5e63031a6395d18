package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceModel is the database row for registered devices.
type DeviceModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FleetID        string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name           string     `gorm:"type:varchar(255);not null"`
	Status         string     `gorm:"type:varchar(20);not null;default:'offline'"`
	CurrentVersion *string    `gorm:"type:varchar(100)"`
	LastSeenAt     *time.Time `gorm:"type:timestamp"`
	CreatedAt      time.Time  `gorm:"not null;index"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

func (DeviceModel) TableName() string {
	return "devices"
}
