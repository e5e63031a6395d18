package ingestion

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HeartbeatMessage represents a device liveness ping
type HeartbeatMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressMessage represents an OTA download/flash progress report
type ProgressMessage struct {
	RolloutID uuid.UUID `json:"rollout_id"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultMessage represents the terminal outcome of an OTA attempt
type ResultMessage struct {
	RolloutID uuid.UUID `json:"rollout_id"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseHeartbeat parses JSON payload to HeartbeatMessage
func ParseHeartbeat(payload []byte) (*HeartbeatMessage, error) {
	var msg HeartbeatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return &msg, nil
}

// ParseProgress parses JSON payload to ProgressMessage
func ParseProgress(payload []byte) (*ProgressMessage, error) {
	var msg ProgressMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return &msg, nil
}

// ParseResult parses JSON payload to ResultMessage
func ParseResult(payload []byte) (*ResultMessage, error) {
	var msg ResultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return &msg, nil
}

// FleetIDFromTopic extracts the device segment from topics of the form
// fleet/{fleetID}/... Returns "" when the topic does not match.
func FleetIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != "fleet" {
		return ""
	}
	return parts[1]
}
