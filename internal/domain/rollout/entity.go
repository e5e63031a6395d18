package rollout

import (
	"time"

	"github.com/google/uuid"
)

// Record is one attempt to push a firmware version to a device. Terminal
// records are immutable history: version fields are denormalized snapshots
// so they stay renderable after the firmware or device row is gone.
type Record struct {
	ID       uuid.UUID
	DeviceID uuid.UUID
	// FleetID is copied from the device at schedule time so history
	// survives device removal.
	FleetID    string
	FirmwareID uuid.UUID
	// PreviousVersion is the device's last known successful version at
	// schedule time, nil for a first rollout.
	PreviousVersion *string
	TargetVersion   string
	Status          Status
	// Progress is meaningful only while InProgress: 0 at Scheduled,
	// monotonically non-decreasing, 100 at Success.
	Progress      int
	FailureReason *string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusSuccess    Status = "Success"
	StatusFailed     Status = "Failed"
)

// ReasonCancelled marks a Scheduled record cancelled before start.
const ReasonCancelled = "Cancelled"

// Active reports whether the record still holds the device's single active
// rollout slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// Terminal reports whether the record reached an immutable end state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}
