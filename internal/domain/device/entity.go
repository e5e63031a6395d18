package device

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered fleet member.
type Device struct {
	ID uuid.UUID
	// FleetID is the stable identifier the device announces itself with
	// (e.g. "esp-01"). Unique across the fleet.
	FleetID string
	Name    string
	Status  DeviceStatus
	// CurrentVersion is the firmware version of the last successful
	// rollout, nil until a first rollout succeeds.
	CurrentVersion *string
	LastSeenAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DeviceStatus string

const (
	StatusOnline   DeviceStatus = "online"
	StatusOffline  DeviceStatus = "offline"
	StatusUpdating DeviceStatus = "updating"
)

// Stale reports whether the device has been silent for longer than the
// given window.
func (d *Device) Stale(window time.Duration) bool {
	if d.LastSeenAt == nil {
		return true
	}
	return time.Since(*d.LastSeenAt) > window
}
