package ingestion

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeartbeatDefaultsTimestamp(t *testing.T) {
	msg, err := ParseHeartbeat([]byte(`{"device_id":"esp-01"}`))
	require.NoError(t, err)

	assert.Equal(t, "esp-01", msg.DeviceID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestParseProgress(t *testing.T) {
	id := uuid.New()
	msg, err := ParseProgress([]byte(`{"rollout_id":"` + id.String() + `","progress":42}`))
	require.NoError(t, err)

	assert.Equal(t, id, msg.RolloutID)
	assert.Equal(t, 42, msg.Progress)
}

func TestParseResultWithError(t *testing.T) {
	id := uuid.New()
	msg, err := ParseResult([]byte(`{"rollout_id":"` + id.String() + `","success":false,"error":"checksum mismatch"}`))
	require.NoError(t, err)

	assert.False(t, msg.Success)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "checksum mismatch", *msg.Error)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseHeartbeat([]byte("not json"))
	assert.Error(t, err)
	_, err = ParseProgress([]byte("{"))
	assert.Error(t, err)
	_, err = ParseResult([]byte(""))
	assert.Error(t, err)
}

func TestFleetIDFromTopic(t *testing.T) {
	assert.Equal(t, "esp-01", FleetIDFromTopic("fleet/esp-01/heartbeat"))
	assert.Equal(t, "esp-02", FleetIDFromTopic("fleet/esp-02/ota/progress"))
	assert.Equal(t, "", FleetIDFromTopic("other/esp-01/heartbeat"))
	assert.Equal(t, "", FleetIDFromTopic("fleet/esp-01"))
}
