package rollout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/logger"
	appErrors "ota-fleet-manager/pkg/errors"
	"ota-fleet-manager/pkg/utils"
)

// CommandPublisher pushes OTA update commands towards devices. Publishing is
// best effort: rollout state never depends on delivery.
type CommandPublisher interface {
	PublishUpdateCommand(fleetID string, cmd *UpdateCommand) error
}

// Service drives the OTA rollout state machine and owns the
// single-active-rollout invariant.
type Service struct {
	rolloutRepo  domainRollout.Repository
	deviceRepo   domainDevice.Repository
	firmwareRepo domainFirmware.Repository
	publisher    CommandPublisher
	locks        *deviceLocks
}

func NewService(
	rolloutRepo domainRollout.Repository,
	deviceRepo domainDevice.Repository,
	firmwareRepo domainFirmware.Repository,
	publisher CommandPublisher,
) *Service {
	return &Service{
		rolloutRepo:  rolloutRepo,
		deviceRepo:   deviceRepo,
		firmwareRepo: firmwareRepo,
		publisher:    publisher,
		locks:        newDeviceLocks(),
	}
}

// Schedule creates a new rollout for the device unless one is already in
// flight. The check-and-set runs under the per-device lock so two concurrent
// schedules for one device yield exactly one success.
func (s *Service) Schedule(ctx context.Context, req *ScheduleRequest) (*RolloutResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid input", err)
	}

	device, err := s.deviceRepo.GetByID(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeUnknownDevice, "Device not found", err)
		}
		return nil, err
	}

	fw, err := s.firmwareRepo.GetByID(ctx, req.FirmwareID)
	if err != nil {
		if errors.Is(err, domainFirmware.ErrFirmwareNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Firmware not found", err)
		}
		return nil, err
	}
	if fw.DeviceID != device.ID {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Firmware targets a different device", domainRollout.ErrFirmwareMismatch)
	}

	lock := s.locks.forDevice(device.ID.String())
	lock.Lock()
	defer lock.Unlock()

	active, err := s.rolloutRepo.HasActiveForDevice(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, appErrors.NewAppError(appErrors.CodeRolloutAlreadyActive, "Device already has an active rollout", domainRollout.ErrRolloutAlreadyActive)
	}

	record := &domainRollout.Record{
		DeviceID:        device.ID,
		FleetID:         device.FleetID,
		FirmwareID:      fw.ID,
		PreviousVersion: device.CurrentVersion,
		TargetVersion:   fw.Version,
		Status:          domainRollout.StatusScheduled,
		Progress:        0,
	}

	if err := s.rolloutRepo.Create(ctx, record); err != nil {
		if errors.Is(err, domainRollout.ErrRolloutAlreadyActive) {
			return nil, appErrors.NewAppError(appErrors.CodeRolloutAlreadyActive, "Device already has an active rollout", err)
		}
		return nil, err
	}

	logger.Info("Rollout scheduled",
		zap.String("rollout_id", record.ID.String()),
		zap.String("fleet_id", device.FleetID),
		zap.String("target_version", fw.Version),
		zap.String("event", "rollout_scheduled"),
	)

	s.notifyDevice(device.FleetID, record, fw)

	return ToRolloutResponse(record), nil
}

// Start moves a scheduled rollout into progress and flips the device to
// updating.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*RolloutResponse, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.locks.forDevice(record.DeviceID.String())
	lock.Lock()
	defer lock.Unlock()

	record, err = s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domainRollout.ValidateTransition(record.Status, domainRollout.StatusInProgress); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInvalidTransition, err.Error(), err)
	}

	record.Status = domainRollout.StatusInProgress
	if err := s.rolloutRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	if err := s.deviceRepo.UpdateStatus(ctx, record.DeviceID, domainDevice.StatusUpdating); err != nil {
		logger.Warn("Failed to flag device as updating",
			zap.String("rollout_id", record.ID.String()),
			zap.Error(err),
		)
	}

	logger.Info("Rollout started",
		zap.String("rollout_id", record.ID.String()),
		zap.String("fleet_id", record.FleetID),
		zap.String("event", "rollout_started"),
	)

	return ToRolloutResponse(record), nil
}

// Advance records device-reported progress. Progress may not decrease and
// only an in-progress rollout accepts it.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, req *AdvanceRequest) (*RolloutResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid input", err)
	}

	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.locks.forDevice(record.DeviceID.String())
	lock.Lock()
	defer lock.Unlock()

	record, err = s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != domainRollout.StatusInProgress {
		return nil, appErrors.NewAppError(appErrors.CodeInvalidTransition, "Progress is only accepted while a rollout is in progress", domainRollout.ErrInvalidTransition)
	}
	if req.Progress < record.Progress {
		return nil, appErrors.NewAppError(appErrors.CodeNonMonotonicProgress, "Progress may not decrease", domainRollout.ErrNonMonotonicProgress)
	}

	record.Progress = req.Progress
	if err := s.rolloutRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	return ToRolloutResponse(record), nil
}

// Complete finishes an in-progress rollout. Success promotes the target
// version to the device's current version and brings it back online; failure
// returns the device online without touching its version (the sweeper flips
// it offline again if it stays silent).
func (s *Service) Complete(ctx context.Context, id uuid.UUID, req *CompleteRequest) (*RolloutResponse, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.locks.forDevice(record.DeviceID.String())
	lock.Lock()
	defer lock.Unlock()

	record, err = s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	target := domainRollout.StatusSuccess
	if !req.Success {
		target = domainRollout.StatusFailed
	}
	if record.Status != domainRollout.StatusInProgress {
		return nil, appErrors.NewAppError(appErrors.CodeInvalidTransition, "Only an in-progress rollout can complete", domainRollout.ErrInvalidTransition)
	}
	if err := domainRollout.ValidateTransition(record.Status, target); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInvalidTransition, err.Error(), err)
	}

	now := time.Now()
	record.Status = target
	record.CompletedAt = &now
	if req.Success {
		record.Progress = 100
	} else if req.Reason != nil {
		record.FailureReason = req.Reason
	}

	if err := s.rolloutRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	if req.Success {
		if err := s.deviceRepo.SetCurrentVersion(ctx, record.DeviceID, record.TargetVersion); err != nil {
			logger.Warn("Failed to promote device firmware version",
				zap.String("rollout_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}
	if err := s.deviceRepo.UpdateStatus(ctx, record.DeviceID, domainDevice.StatusOnline); err != nil {
		logger.Warn("Failed to restore device status",
			zap.String("rollout_id", record.ID.String()),
			zap.Error(err),
		)
	}

	logger.Info("Rollout completed",
		zap.String("rollout_id", record.ID.String()),
		zap.String("fleet_id", record.FleetID),
		zap.String("status", string(record.Status)),
		zap.String("event", "rollout_completed"),
	)

	return ToRolloutResponse(record), nil
}

// Cancel aborts a rollout that has not started yet. The record is kept as
// failed history with reason Cancelled. In-flight rollouts cannot be
// cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*RolloutResponse, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.locks.forDevice(record.DeviceID.String())
	lock.Lock()
	defer lock.Unlock()

	record, err = s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != domainRollout.StatusScheduled {
		return nil, appErrors.NewAppError(appErrors.CodeInvalidTransition, "Only a scheduled rollout can be cancelled", domainRollout.ErrInvalidTransition)
	}

	now := time.Now()
	reason := domainRollout.ReasonCancelled
	record.Status = domainRollout.StatusFailed
	record.FailureReason = &reason
	record.CompletedAt = &now

	if err := s.rolloutRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	logger.Info("Rollout cancelled",
		zap.String("rollout_id", record.ID.String()),
		zap.String("fleet_id", record.FleetID),
		zap.String("event", "rollout_cancelled"),
	)

	return ToRolloutResponse(record), nil
}

// List pages through rollout history, newest first. Without a device filter
// it is an identity passthrough over the whole history.
func (s *Service) List(ctx context.Context, filter *RolloutFilterRequest) (*RolloutListResponse, error) {
	if err := utils.ValidateStruct(filter); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid query parameters", err)
	}

	page, pageSize := utils.NormalizePage(filter.Page, filter.PageSize)

	records, total, err := s.rolloutRepo.List(ctx, &domainRollout.Filter{
		DeviceID: filter.DeviceID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]RolloutResponse, len(records))
	for i, r := range records {
		responses[i] = *ToRolloutResponse(r)
	}

	return &RolloutListResponse{
		Rollouts:   responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: utils.TotalPages(total, pageSize),
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*RolloutResponse, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToRolloutResponse(record), nil
}

// Summary aggregates rollout counts per status, fleet-wide or per device.
func (s *Service) Summary(ctx context.Context, deviceID *uuid.UUID) (*SummaryResponse, error) {
	counts, err := s.rolloutRepo.CountByStatus(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	return &SummaryResponse{
		Scheduled:  counts[domainRollout.StatusScheduled],
		InProgress: counts[domainRollout.StatusInProgress],
		Success:    counts[domainRollout.StatusSuccess],
		Failed:     counts[domainRollout.StatusFailed],
	}, nil
}

func (s *Service) getRecord(ctx context.Context, id uuid.UUID) (*domainRollout.Record, error) {
	record, err := s.rolloutRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainRollout.ErrRolloutNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Rollout not found", err)
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) notifyDevice(fleetID string, record *domainRollout.Record, fw *domainFirmware.Firmware) {
	if s.publisher == nil {
		return
	}

	cmd := &UpdateCommand{
		RolloutID:  record.ID,
		FirmwareID: fw.ID,
		Version:    fw.Version,
		SizeBytes:  fw.SizeBytes,
		Checksum:   fw.Checksum,
	}
	if err := s.publisher.PublishUpdateCommand(fleetID, cmd); err != nil {
		logger.Warn("Failed to publish OTA command",
			zap.String("rollout_id", record.ID.String()),
			zap.String("fleet_id", fleetID),
			zap.Error(err),
		)
	}
}
