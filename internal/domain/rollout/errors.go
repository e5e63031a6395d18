package rollout

import "errors"

var (
	ErrRolloutNotFound      = errors.New("rollout not found")
	ErrRolloutAlreadyActive = errors.New("device already has an active rollout")
	ErrInvalidTransition    = errors.New("invalid rollout transition")
	ErrNonMonotonicProgress = errors.New("progress may not decrease")
	ErrFirmwareMismatch     = errors.New("firmware does not target this device")
)
