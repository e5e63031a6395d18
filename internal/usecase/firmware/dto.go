package firmware

import (
	"time"

	"github.com/google/uuid"

	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	rolloutUC "ota-fleet-manager/internal/usecase/rollout"
)

type UploadRequest struct {
	FleetID     string `form:"device_id" validate:"required,fleet_id"`
	Version     string `form:"version" validate:"required,min=1,max=100"`
	Description string `form:"description" validate:"omitempty,max=2000"`
}

type FirmwareFilterRequest struct {
	Search   string     `form:"search"`
	DeviceID *uuid.UUID `form:"device_id"`
	Page     int        `form:"page" validate:"omitempty,min=1"`
	PageSize int        `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type FirmwareResponse struct {
	ID               uuid.UUID `json:"id"`
	DeviceID         uuid.UUID `json:"device_id"`
	DeviceName       string    `json:"device_name,omitempty"`
	DeviceFleetID    string    `json:"device_fleet_id,omitempty"`
	Version          string    `json:"version"`
	Description      string    `json:"description"`
	OriginalFileName string    `json:"original_file_name"`
	SizeBytes        int64     `json:"size_bytes"`
	Checksum         string    `json:"checksum"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

type FirmwareListResponse struct {
	Firmwares  []FirmwareResponse `json:"firmwares"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// UploadResponse carries the new catalog entry plus the rollout the upload
// implicitly scheduled.
type UploadResponse struct {
	Firmware FirmwareResponse           `json:"firmware"`
	Rollout  *rolloutUC.RolloutResponse `json:"rollout"`
}

// DownloadMeta describes a stored binary a collaborator is about to stream.
type DownloadMeta struct {
	OriginalFileName string
	SizeBytes        int64
	Checksum         string
}

func ToFirmwareResponse(fw *domainFirmware.Firmware) *FirmwareResponse {
	if fw == nil {
		return nil
	}
	return &FirmwareResponse{
		ID:               fw.ID,
		DeviceID:         fw.DeviceID,
		DeviceName:       fw.DeviceName,
		DeviceFleetID:    fw.DeviceFleetID,
		Version:          fw.Version,
		Description:      fw.Description,
		OriginalFileName: fw.OriginalFileName,
		SizeBytes:        fw.SizeBytes,
		Checksum:         fw.Checksum,
		UploadedAt:       fw.UploadedAt,
	}
}
