package firmware

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the firmware catalog.
type Repository interface {
	Create(ctx context.Context, fw *Firmware) error
	GetByID(ctx context.Context, id uuid.UUID) (*Firmware, error)
	// ExistsVersion reports whether the device already has a firmware with
	// exactly this version string (case-sensitive).
	ExistsVersion(ctx context.Context, deviceID uuid.UUID, version string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForDevice(ctx context.Context, deviceID uuid.UUID) ([]*Firmware, error)
	// List returns one page of firmwares, newest first, with device name
	// and fleet id resolved. Search matches version, upload date
	// (MM/DD/YYYY) or device name, case-insensitive substring.
	List(ctx context.Context, filter *Filter) ([]*Firmware, int64, error)
}

type Filter struct {
	Search   string
	DeviceID *uuid.UUID
	Page     int
	PageSize int
}
