package models

import (
	"time"

	"github.com/google/uuid"
)

// FirmwareModel is the database row for uploaded firmware images. Version is
// unique per target device, exact string match. DeviceID is deliberately not
// a foreign key constraint: a removed device leaves its firmwares behind and
// listings render the raw fleet id instead of a name.
type FirmwareModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DeviceID         uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_firmware_device_version,priority:1"`
	Version          string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_firmware_device_version,priority:2"`
	Description      string    `gorm:"type:text"`
	BinaryRef        string    `gorm:"type:varchar(255);not null"`
	OriginalFileName string    `gorm:"type:varchar(255)"`
	SizeBytes        int64     `gorm:"not null;default:0"`
	Checksum         string    `gorm:"type:varchar(64)"`
	UploadedAt       time.Time `gorm:"not null;index"`
}

func (FirmwareModel) TableName() string {
	return "firmwares"
}
