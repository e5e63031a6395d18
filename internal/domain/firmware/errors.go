package firmware

import "errors"

var (
	ErrFirmwareNotFound = errors.New("firmware not found")
	ErrDuplicateVersion = errors.New("version already exists for this device")
	ErrFirmwareInUse    = errors.New("firmware referenced by an active rollout")
	ErrBinaryUnreadable = errors.New("firmware binary missing or unreadable")
)
