package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the device registry.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	GetByFleetID(ctx context.Context, fleetID string) (*Device, error)
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status DeviceStatus) error
	SetCurrentVersion(ctx context.Context, id uuid.UUID, version string) error
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
	// List returns one page of devices in registration order plus the
	// total match count.
	List(ctx context.Context, filter *Filter) ([]*Device, int64, error)
	// MarkStaleOffline flips online devices silent for longer than the
	// window to offline and returns how many rows changed. Devices mid
	// rollout (status updating) are left alone.
	MarkStaleOffline(ctx context.Context, silentFor time.Duration) (int64, error)
}

// Filter narrows and pages the device listing. Search matches name or fleet
// id, case-insensitive substring.
type Filter struct {
	Search   string
	Status   *DeviceStatus
	Page     int
	PageSize int
}
