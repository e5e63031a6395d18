package rollout

import (
	"time"

	"github.com/google/uuid"

	domainRollout "ota-fleet-manager/internal/domain/rollout"
)

type ScheduleRequest struct {
	DeviceID   uuid.UUID `json:"device_id" validate:"required"`
	FirmwareID uuid.UUID `json:"firmware_id" validate:"required"`
}

type AdvanceRequest struct {
	Progress int `json:"progress" validate:"min=0,max=100"`
}

type CompleteRequest struct {
	Success bool    `json:"success"`
	Reason  *string `json:"reason" validate:"omitempty,max=255"`
}

type RolloutFilterRequest struct {
	DeviceID *uuid.UUID `form:"device_id"`
	Page     int        `form:"page" validate:"omitempty,min=1"`
	PageSize int        `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type RolloutResponse struct {
	ID              uuid.UUID            `json:"id"`
	DeviceID        uuid.UUID            `json:"device_id"`
	FleetID         string               `json:"fleet_device_id"`
	FirmwareID      uuid.UUID            `json:"firmware_id"`
	PreviousVersion *string              `json:"previous_version"`
	TargetVersion   string               `json:"target_version"`
	Status          domainRollout.Status `json:"status"`
	Progress        int                  `json:"progress"`
	FailureReason   *string              `json:"failure_reason,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
}

type RolloutListResponse struct {
	Rollouts   []RolloutResponse `json:"rollouts"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// SummaryResponse reports rollout counts per status for the summary cards.
type SummaryResponse struct {
	Scheduled  int64 `json:"scheduled"`
	InProgress int64 `json:"in_progress"`
	Success    int64 `json:"success"`
	Failed     int64 `json:"failed"`
}

// UpdateCommand is the OTA instruction published to a device when a rollout
// is scheduled for it.
type UpdateCommand struct {
	RolloutID  uuid.UUID `json:"rollout_id"`
	FirmwareID uuid.UUID `json:"firmware_id"`
	Version    string    `json:"version"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
}

func ToRolloutResponse(r *domainRollout.Record) *RolloutResponse {
	if r == nil {
		return nil
	}
	return &RolloutResponse{
		ID:              r.ID,
		DeviceID:        r.DeviceID,
		FleetID:         r.FleetID,
		FirmwareID:      r.FirmwareID,
		PreviousVersion: r.PreviousVersion,
		TargetVersion:   r.TargetVersion,
		Status:          r.Status,
		Progress:        r.Progress,
		FailureReason:   r.FailureReason,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	}
}
