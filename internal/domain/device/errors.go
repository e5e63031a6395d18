package device

import "errors"

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDuplicateFleetID   = errors.New("device id already registered")
	ErrHasActiveRollout   = errors.New("device has an active rollout")
	ErrInvalidStatus      = errors.New("invalid device status")
)
