package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	"ota-fleet-manager/internal/infrastructure/database/postgres/models"
)

// FirmwareRepository implements the firmware catalog persistence contract.
type FirmwareRepository struct {
	db *DB
}

func NewFirmwareRepository(db *DB) domainFirmware.Repository {
	return &FirmwareRepository{db: db}
}

// firmwareRow carries a firmware row joined with its device's display fields.
type firmwareRow struct {
	models.FirmwareModel
	DeviceName    *string
	DeviceFleetID *string
}

func (r *FirmwareRepository) Create(ctx context.Context, fw *domainFirmware.Firmware) error {
	fw.ID = uuid.New()
	fw.UploadedAt = time.Now()

	dbModel := toFirmwareModel(fw)
	if err := r.db.WithContext(ctx).Create(dbModel).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key value") {
			return domainFirmware.ErrDuplicateVersion
		}
		return fmt.Errorf("failed to create firmware: %w", err)
	}

	fw.ID = dbModel.ID
	return nil
}

func (r *FirmwareRepository) GetByID(ctx context.Context, id uuid.UUID) (*domainFirmware.Firmware, error) {
	var row firmwareRow
	err := r.db.WithContext(ctx).
		Model(&models.FirmwareModel{}).
		Select("firmwares.*, d.name AS device_name, d.fleet_id AS device_fleet_id").
		Joins("LEFT JOIN devices d ON d.id = firmwares.device_id").
		Where("firmwares.id = ?", id).
		First(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainFirmware.ErrFirmwareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get firmware: %w", err)
	}

	return toFirmwareEntity(&row), nil
}

func (r *FirmwareRepository) ExistsVersion(ctx context.Context, deviceID uuid.UUID, version string) (bool, error) {
	var count int64
	// Case-sensitive exact match, scoped to the target device.
	err := r.db.WithContext(ctx).
		Model(&models.FirmwareModel{}).
		Where("device_id = ? AND version = ?", deviceID, version).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check firmware version: %w", err)
	}

	return count > 0, nil
}

func (r *FirmwareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.FirmwareModel{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete firmware: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainFirmware.ErrFirmwareNotFound
	}

	return nil
}

func (r *FirmwareRepository) ListForDevice(ctx context.Context, deviceID uuid.UUID) ([]*domainFirmware.Firmware, error) {
	var dbModels []models.FirmwareModel
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("uploaded_at DESC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list firmwares for device: %w", err)
	}

	firmwares := make([]*domainFirmware.Firmware, len(dbModels))
	for i := range dbModels {
		firmwares[i] = toFirmwareEntity(&firmwareRow{FirmwareModel: dbModels[i]})
	}

	return firmwares, nil
}

func (r *FirmwareRepository) List(ctx context.Context, filter *domainFirmware.Filter) ([]*domainFirmware.Firmware, int64, error) {
	var rows []firmwareRow
	var total int64

	db := r.db.WithContext(ctx).
		Model(&models.FirmwareModel{}).
		Joins("LEFT JOIN devices d ON d.id = firmwares.device_id")

	if filter.DeviceID != nil {
		db = db.Where("firmwares.device_id = ?", *filter.DeviceID)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		// The upload date matches the way the client renders it.
		db = db.Where(
			"firmwares.version ILIKE ? OR d.name ILIKE ? OR to_char(firmwares.uploaded_at, 'MM/DD/YYYY') LIKE ?",
			search, search, search,
		)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count firmwares: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	err := db.Select("firmwares.*, d.name AS device_name, d.fleet_id AS device_fleet_id").
		Order("firmwares.uploaded_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list firmwares: %w", err)
	}

	firmwares := make([]*domainFirmware.Firmware, len(rows))
	for i := range rows {
		firmwares[i] = toFirmwareEntity(&rows[i])
	}

	return firmwares, total, nil
}

func toFirmwareModel(fw *domainFirmware.Firmware) *models.FirmwareModel {
	return &models.FirmwareModel{
		ID:               fw.ID,
		DeviceID:         fw.DeviceID,
		Version:          fw.Version,
		Description:      fw.Description,
		BinaryRef:        fw.BinaryRef,
		OriginalFileName: fw.OriginalFileName,
		SizeBytes:        fw.SizeBytes,
		Checksum:         fw.Checksum,
		UploadedAt:       fw.UploadedAt,
	}
}

func toFirmwareEntity(row *firmwareRow) *domainFirmware.Firmware {
	fw := &domainFirmware.Firmware{
		ID:               row.ID,
		DeviceID:         row.DeviceID,
		Version:          row.Version,
		Description:      row.Description,
		BinaryRef:        row.BinaryRef,
		OriginalFileName: row.OriginalFileName,
		SizeBytes:        row.SizeBytes,
		Checksum:         row.Checksum,
		UploadedAt:       row.UploadedAt,
	}
	if row.DeviceName != nil {
		fw.DeviceName = *row.DeviceName
	}
	if row.DeviceFleetID != nil {
		fw.DeviceFleetID = *row.DeviceFleetID
	}
	return fw
}
