package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/infrastructure/database/postgres/models"
)

var activeStatuses = []string{
	string(domainRollout.StatusScheduled),
	string(domainRollout.StatusInProgress),
}

// RolloutRepository implements the rollout record persistence contract.
type RolloutRepository struct {
	db *DB
}

func NewRolloutRepository(db *DB) domainRollout.Repository {
	return &RolloutRepository{db: db}
}

func (r *RolloutRepository) Create(ctx context.Context, rec *domainRollout.Record) error {
	rec.ID = uuid.New()
	rec.StartedAt = time.Now()

	dbModel := toRolloutModel(rec)
	if err := r.db.WithContext(ctx).Create(dbModel).Error; err != nil {
		// The partial unique index rejects a second active record for
		// the same device even across processes.
		if strings.Contains(err.Error(), "duplicate key value") {
			return domainRollout.ErrRolloutAlreadyActive
		}
		return fmt.Errorf("failed to create rollout record: %w", err)
	}

	rec.ID = dbModel.ID
	return nil
}

func (r *RolloutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domainRollout.Record, error) {
	var dbModel models.RolloutModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainRollout.ErrRolloutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rollout record: %w", err)
	}

	return toRolloutEntity(&dbModel), nil
}

func (r *RolloutRepository) GetActiveForDevice(ctx context.Context, deviceID uuid.UUID) (*domainRollout.Record, error) {
	var dbModel models.RolloutModel
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND status IN ?", deviceID, activeStatuses).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainRollout.ErrRolloutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active rollout: %w", err)
	}

	return toRolloutEntity(&dbModel), nil
}

func (r *RolloutRepository) Update(ctx context.Context, rec *domainRollout.Record) error {
	result := r.db.WithContext(ctx).
		Model(&models.RolloutModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":         string(rec.Status),
			"progress":       rec.Progress,
			"failure_reason": rec.FailureReason,
			"completed_at":   rec.CompletedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update rollout record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainRollout.ErrRolloutNotFound
	}

	return nil
}

func (r *RolloutRepository) HasActiveForDevice(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RolloutModel{}).
		Where("device_id = ? AND status IN ?", deviceID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active rollouts: %w", err)
	}

	return count > 0, nil
}

func (r *RolloutRepository) HasActiveForFirmware(ctx context.Context, firmwareID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RolloutModel{}).
		Where("firmware_id = ? AND status IN ?", firmwareID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active rollouts: %w", err)
	}

	return count > 0, nil
}

func (r *RolloutRepository) List(ctx context.Context, filter *domainRollout.Filter) ([]*domainRollout.Record, int64, error) {
	var dbModels []models.RolloutModel
	var total int64

	db := r.db.WithContext(ctx).Model(&models.RolloutModel{})

	if filter.DeviceID != nil {
		db = db.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", string(*filter.Status))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rollout records: %w", err)
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

	err := db.Order("started_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rollout records: %w", err)
	}

	records := make([]*domainRollout.Record, len(dbModels))
	for i := range dbModels {
		records[i] = toRolloutEntity(&dbModels[i])
	}

	return records, total, nil
}

func (r *RolloutRepository) CountByStatus(ctx context.Context, deviceID *uuid.UUID) (map[domainRollout.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	db := r.db.WithContext(ctx).
		Model(&models.RolloutModel{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if deviceID != nil {
		db = db.Where("device_id = ?", *deviceID)
	}

	var rows []statusCount
	if err := db.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count rollouts by status: %w", err)
	}

	counts := make(map[domainRollout.Status]int64, len(rows))
	for _, row := range rows {
		counts[domainRollout.Status(row.Status)] = row.Count
	}

	return counts, nil
}

func toRolloutModel(rec *domainRollout.Record) *models.RolloutModel {
	return &models.RolloutModel{
		ID:              rec.ID,
		DeviceID:        rec.DeviceID,
		FleetID:         rec.FleetID,
		FirmwareID:      rec.FirmwareID,
		PreviousVersion: rec.PreviousVersion,
		TargetVersion:   rec.TargetVersion,
		Status:          string(rec.Status),
		Progress:        rec.Progress,
		FailureReason:   rec.FailureReason,
		StartedAt:       rec.StartedAt,
		CompletedAt:     rec.CompletedAt,
	}
}

func toRolloutEntity(m *models.RolloutModel) *domainRollout.Record {
	return &domainRollout.Record{
		ID:              m.ID,
		DeviceID:        m.DeviceID,
		FleetID:         m.FleetID,
		FirmwareID:      m.FirmwareID,
		PreviousVersion: m.PreviousVersion,
		TargetVersion:   m.TargetVersion,
		Status:          domainRollout.Status(m.Status),
		Progress:        m.Progress,
		FailureReason:   m.FailureReason,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
	}
}
