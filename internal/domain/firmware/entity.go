package firmware

import (
	"time"

	"github.com/google/uuid"
)

// Firmware is an uploaded image bound to one target device. The bytes
// themselves live in the binary store under BinaryRef; the catalog never
// inspects them.
type Firmware struct {
	ID          uuid.UUID
	DeviceID    uuid.UUID
	Version     string
	Description string
	// BinaryRef is the opaque storage key for the image bytes.
	BinaryRef        string
	OriginalFileName string
	SizeBytes        int64
	Checksum         string
	UploadedAt       time.Time

	// DeviceName and DeviceFleetID are resolved for listings; empty when
	// the row is loaded without the device join.
	DeviceName    string
	DeviceFleetID string
}
