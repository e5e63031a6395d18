package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/logger"
	appErrors "ota-fleet-manager/pkg/errors"
	"ota-fleet-manager/pkg/utils"
)

// Service implements the device registry use cases.
type Service struct {
	deviceRepo  domainDevice.Repository
	rolloutRepo domainRollout.Repository
}

func NewService(deviceRepo domainDevice.Repository, rolloutRepo domainRollout.Repository) *Service {
	return &Service{
		deviceRepo:  deviceRepo,
		rolloutRepo: rolloutRepo,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterDeviceRequest) (*DeviceResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid input", err)
	}

	device := &domainDevice.Device{
		FleetID: req.FleetID,
		Name:    req.Name,
		Status:  domainDevice.StatusOffline,
	}

	if err := s.deviceRepo.Create(ctx, device); err != nil {
		if errors.Is(err, domainDevice.ErrDuplicateFleetID) {
			return nil, appErrors.NewAppError(appErrors.CodeDuplicateDeviceID, "A device with this ID is already registered", err)
		}
		return nil, err
	}

	logger.Info("Device registered",
		zap.String("device_id", device.ID.String()),
		zap.String("fleet_id", device.FleetID),
		zap.String("event", "device_registered"),
	)

	return ToDeviceResponse(device), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DeviceResponse, error) {
	device, err := s.deviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
		}
		return nil, err
	}

	return ToDeviceResponse(device), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateDeviceRequest) (*DeviceResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid input", err)
	}

	device, err := s.deviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
		}
		return nil, err
	}

	if req.Name != nil {
		device.Name = *req.Name
	}
	if req.FleetID != nil && *req.FleetID != device.FleetID {
		// The new fleet id must not belong to another device.
		existing, err := s.deviceRepo.GetByFleetID(ctx, *req.FleetID)
		if err != nil && !errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != device.ID {
			return nil, appErrors.NewAppError(appErrors.CodeDuplicateDeviceID, "A device with this ID is already registered", nil)
		}
		device.FleetID = *req.FleetID
	}

	if err := s.deviceRepo.Update(ctx, device); err != nil {
		if errors.Is(err, domainDevice.ErrDuplicateFleetID) {
			return nil, appErrors.NewAppError(appErrors.CodeDuplicateDeviceID, "A device with this ID is already registered", err)
		}
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
		}
		return nil, err
	}

	logger.Info("Device updated",
		zap.String("device_id", device.ID.String()),
		zap.String("fleet_id", device.FleetID),
		zap.String("event", "device_updated"),
	)

	return ToDeviceResponse(device), nil
}

// Remove deletes a device. Historical rollout records are kept orphaned;
// they carry a denormalized fleet id and version snapshot so they remain
// renderable.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.deviceRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
		}
		return err
	}

	active, err := s.rolloutRepo.HasActiveForDevice(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return appErrors.NewAppError(appErrors.CodeHasActiveRollout, "Device has an active rollout", domainDevice.ErrHasActiveRollout)
	}

	if err := s.deviceRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
		}
		return err
	}

	logger.Info("Device removed",
		zap.String("device_id", id.String()),
		zap.String("event", "device_removed"),
	)

	return nil
}

func (s *Service) List(ctx context.Context, filter *DeviceFilterRequest) (*DeviceListResponse, error) {
	if err := utils.ValidateStruct(filter); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid query parameters", err)
	}

	page, pageSize := utils.NormalizePage(filter.Page, filter.PageSize)

	domainFilter := &domainDevice.Filter{
		Search:   filter.Search,
		Page:     page,
		PageSize: pageSize,
	}
	if filter.Status != "" {
		status := domainDevice.DeviceStatus(filter.Status)
		domainFilter.Status = &status
	}

	devices, total, err := s.deviceRepo.List(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		responses[i] = *ToDeviceResponse(d)
	}

	return &DeviceListResponse{
		Devices:    responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: utils.TotalPages(total, pageSize),
	}, nil
}

// Heartbeat records a liveness signal. Offline devices come back online;
// a device mid rollout stays in updating until the rollout completes.
func (s *Service) Heartbeat(ctx context.Context, fleetID string) error {
	device, err := s.deviceRepo.GetByFleetID(ctx, fleetID)
	if err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return appErrors.NewAppError(appErrors.CodeUnknownDevice, "Unknown device", err)
		}
		return err
	}

	if err := s.deviceRepo.TouchLastSeen(ctx, device.ID); err != nil {
		return err
	}

	if device.Status == domainDevice.StatusOffline {
		if err := s.deviceRepo.UpdateStatus(ctx, device.ID, domainDevice.StatusOnline); err != nil {
			return err
		}
		logger.Debug("Device back online",
			zap.String("fleet_id", fleetID),
			zap.String("event", "device_online"),
		)
	}

	return nil
}

// StartLivenessSweeper periodically flips silent devices to offline until the
// context is cancelled.
func (s *Service) StartLivenessSweeper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.deviceRepo.MarkStaleOffline(ctx, window)
			if err != nil {
				logger.Error("Liveness sweep failed", zap.Error(err))
				continue
			}
			if changed > 0 {
				logger.Info("Marked silent devices offline",
					zap.Int64("count", changed),
					zap.String("event", "devices_offline"),
				)
			}
		}
	}
}
