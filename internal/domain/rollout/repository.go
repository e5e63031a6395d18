package rollout

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for rollout records.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// GetActiveForDevice returns the device's single non-terminal record,
	// or ErrRolloutNotFound when the slot is free.
	GetActiveForDevice(ctx context.Context, deviceID uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	HasActiveForDevice(ctx context.Context, deviceID uuid.UUID) (bool, error)
	HasActiveForFirmware(ctx context.Context, firmwareID uuid.UUID) (bool, error)
	// List returns one page of records, newest first. A nil DeviceID is an
	// identity passthrough over the whole history.
	List(ctx context.Context, filter *Filter) ([]*Record, int64, error)
	// CountByStatus aggregates record counts per status, fleet-wide or for
	// one device.
	CountByStatus(ctx context.Context, deviceID *uuid.UUID) (map[Status]int64, error)
}

type Filter struct {
	DeviceID *uuid.UUID
	Status   *Status
	Page     int
	PageSize int
}
