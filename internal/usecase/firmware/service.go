package firmware

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/infrastructure/storage"
	"ota-fleet-manager/internal/logger"
	rolloutUC "ota-fleet-manager/internal/usecase/rollout"
	appErrors "ota-fleet-manager/pkg/errors"
	"ota-fleet-manager/pkg/utils"
)

// Service implements the firmware catalog use cases.
type Service struct {
	firmwareRepo domainFirmware.Repository
	deviceRepo   domainDevice.Repository
	rolloutRepo  domainRollout.Repository
	store        storage.BinaryStore
	rollouts     *rolloutUC.Service
}

func NewService(
	firmwareRepo domainFirmware.Repository,
	deviceRepo domainDevice.Repository,
	rolloutRepo domainRollout.Repository,
	store storage.BinaryStore,
	rollouts *rolloutUC.Service,
) *Service {
	return &Service{
		firmwareRepo: firmwareRepo,
		deviceRepo:   deviceRepo,
		rolloutRepo:  rolloutRepo,
		store:        store,
		rollouts:     rollouts,
	}
}

// Upload stores a firmware image for the named device and schedules the
// push. Having a binary and pushing it are separate concerns in the catalog;
// the operator workflow bundles them, so a failed schedule rolls the catalog
// entry back.
func (s *Service) Upload(ctx context.Context, req *UploadRequest, fileName string, file io.Reader) (*UploadResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid input", err)
	}

	device, err := s.deviceRepo.GetByFleetID(ctx, req.FleetID)
	if err != nil {
		if errors.Is(err, domainDevice.ErrDeviceNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeUnknownDevice, "Unknown target device", err)
		}
		return nil, err
	}

	exists, err := s.firmwareRepo.ExistsVersion(ctx, device.ID, req.Version)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.NewAppError(appErrors.CodeDuplicateVersion, "Version already exists for this device", domainFirmware.ErrDuplicateVersion)
	}

	ref, size, checksum, err := s.store.Save(fileName, file)
	if err != nil {
		return nil, err
	}

	fw := &domainFirmware.Firmware{
		DeviceID:         device.ID,
		Version:          req.Version,
		Description:      req.Description,
		BinaryRef:        ref,
		OriginalFileName: fileName,
		SizeBytes:        size,
		Checksum:         checksum,
	}

	if err := s.firmwareRepo.Create(ctx, fw); err != nil {
		_ = s.store.Delete(ref)
		if errors.Is(err, domainFirmware.ErrDuplicateVersion) {
			return nil, appErrors.NewAppError(appErrors.CodeDuplicateVersion, "Version already exists for this device", err)
		}
		return nil, err
	}

	rollout, err := s.rollouts.Schedule(ctx, &rolloutUC.ScheduleRequest{
		DeviceID:   device.ID,
		FirmwareID: fw.ID,
	})
	if err != nil {
		// The operator workflow treats upload+schedule as one action;
		// roll the catalog entry back so a retry starts clean.
		_ = s.firmwareRepo.Delete(ctx, fw.ID)
		_ = s.store.Delete(ref)
		return nil, err
	}

	logger.Info("Firmware uploaded",
		zap.String("firmware_id", fw.ID.String()),
		zap.String("fleet_id", device.FleetID),
		zap.String("version", fw.Version),
		zap.Int64("size_bytes", size),
		zap.String("event", "firmware_uploaded"),
	)

	fw.DeviceName = device.Name
	fw.DeviceFleetID = device.FleetID

	return &UploadResponse{
		Firmware: *ToFirmwareResponse(fw),
		Rollout:  rollout,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FirmwareResponse, error) {
	fw, err := s.firmwareRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainFirmware.ErrFirmwareNotFound) {
			return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Firmware not found", err)
		}
		return nil, err
	}

	return ToFirmwareResponse(fw), nil
}

// Delete removes a catalog entry and its stored binary. A firmware still
// referenced by a non-terminal rollout cannot go; terminal history keeps its
// own version snapshots and survives the deletion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	fw, err := s.firmwareRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainFirmware.ErrFirmwareNotFound) {
			return appErrors.NewAppError(appErrors.CodeNotFound, "Firmware not found", err)
		}
		return err
	}

	active, err := s.rolloutRepo.HasActiveForFirmware(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return appErrors.NewAppError(appErrors.CodeFirmwareInUse, "Firmware is referenced by an active rollout", domainFirmware.ErrFirmwareInUse)
	}

	if err := s.firmwareRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domainFirmware.ErrFirmwareNotFound) {
			return appErrors.NewAppError(appErrors.CodeNotFound, "Firmware not found", err)
		}
		return err
	}

	if err := s.store.Delete(fw.BinaryRef); err != nil {
		logger.Warn("Failed to delete firmware binary",
			zap.String("firmware_id", id.String()),
			zap.String("binary_ref", fw.BinaryRef),
			zap.Error(err),
		)
	}

	logger.Info("Firmware deleted",
		zap.String("firmware_id", id.String()),
		zap.String("version", fw.Version),
		zap.String("event", "firmware_deleted"),
	)

	return nil
}

func (s *Service) List(ctx context.Context, filter *FirmwareFilterRequest) (*FirmwareListResponse, error) {
	if err := utils.ValidateStruct(filter); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid query parameters", err)
	}

	page, pageSize := utils.NormalizePage(filter.Page, filter.PageSize)

	firmwares, total, err := s.firmwareRepo.List(ctx, &domainFirmware.Filter{
		Search:   filter.Search,
		DeviceID: filter.DeviceID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]FirmwareResponse, len(firmwares))
	for i, fw := range firmwares {
		responses[i] = *ToFirmwareResponse(fw)
	}

	return &FirmwareListResponse{
		Firmwares:  responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: utils.TotalPages(total, pageSize),
	}, nil
}

func (s *Service) ListForDevice(ctx context.Context, deviceID uuid.UUID) ([]FirmwareResponse, error) {
	firmwares, err := s.firmwareRepo.ListForDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	responses := make([]FirmwareResponse, len(firmwares))
	for i, fw := range firmwares {
		responses[i] = *ToFirmwareResponse(fw)
	}

	return responses, nil
}

// Download opens the stored binary for streaming. A catalog entry whose
// binary is missing or unreadable surfaces as DownloadFailed.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *DownloadMeta, error) {
	fw, err := s.firmwareRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainFirmware.ErrFirmwareNotFound) {
			return nil, nil, appErrors.NewAppError(appErrors.CodeNotFound, "Firmware not found", err)
		}
		return nil, nil, err
	}

	reader, err := s.store.Open(fw.BinaryRef)
	if err != nil {
		return nil, nil, appErrors.NewAppError(appErrors.CodeDownloadFailed, "Firmware binary missing or unreadable", domainFirmware.ErrBinaryUnreadable)
	}

	meta := &DownloadMeta{
		OriginalFileName: fw.OriginalFileName,
		SizeBytes:        fw.SizeBytes,
		Checksum:         fw.Checksum,
	}

	return reader, meta, nil
}
