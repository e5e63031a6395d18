package device

import (
	"time"

	"github.com/google/uuid"

	domainDevice "ota-fleet-manager/internal/domain/device"
)

type RegisterDeviceRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=255"`
	FleetID string `json:"device_id" validate:"required,fleet_id"`
}

type UpdateDeviceRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	FleetID *string `json:"device_id" validate:"omitempty,fleet_id"`
}

type DeviceFilterRequest struct {
	Search   string `form:"search"`
	Status   string `form:"status" validate:"omitempty,oneof=online offline updating"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type DeviceResponse struct {
	ID             uuid.UUID                 `json:"id"`
	FleetID        string                    `json:"device_id"`
	Name           string                    `json:"name"`
	Status         domainDevice.DeviceStatus `json:"status"`
	CurrentVersion *string                   `json:"current_version"`
	LastSeenAt     *time.Time                `json:"last_seen_at"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

type DeviceListResponse struct {
	Devices    []DeviceResponse `json:"devices"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

func ToDeviceResponse(d *domainDevice.Device) *DeviceResponse {
	if d == nil {
		return nil
	}
	return &DeviceResponse{
		ID:             d.ID,
		FleetID:        d.FleetID,
		Name:           d.Name,
		Status:         d.Status,
		CurrentVersion: d.CurrentVersion,
		LastSeenAt:     d.LastSeenAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
