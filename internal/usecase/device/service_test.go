package device_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/testutil"
	"ota-fleet-manager/internal/usecase/device"
	appErrors "ota-fleet-manager/pkg/errors"
)

func newService() (*device.Service, *testutil.DeviceRepo, *testutil.RolloutRepo) {
	devices := testutil.NewDeviceRepo()
	rollouts := testutil.NewRolloutRepo()
	return device.NewService(devices, rollouts), devices, rollouts
}

func TestRegisterStartsOffline(t *testing.T) {
	svc, _, _ := newService()

	resp, err := svc.Register(context.Background(), &device.RegisterDeviceRequest{
		Name:    "Greenhouse sensor",
		FleetID: "esp-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "esp-01", resp.FleetID)
	assert.Equal(t, domainDevice.StatusOffline, resp.Status)
	assert.Nil(t, resp.CurrentVersion)
	assert.Nil(t, resp.LastSeenAt)
}

func TestRegisterDuplicateFleetID(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "First", FleetID: "esp-01"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Second", FleetID: "esp-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeDuplicateDeviceID, appErrors.CodeOf(err))
}

func TestRegisterRejectsBadFleetID(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Register(context.Background(), &device.RegisterDeviceRequest{
		Name:    "Bad",
		FleetID: "esp 01/with spaces",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidationError, appErrors.CodeOf(err))
}

func TestUpdateFleetIDCollision(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	first, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "First", FleetID: "esp-01"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Second", FleetID: "esp-02"})
	require.NoError(t, err)

	taken := "esp-02"
	_, err = svc.Update(ctx, first.ID, &device.UpdateDeviceRequest{FleetID: &taken})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeDuplicateDeviceID, appErrors.CodeOf(err))
}

func TestUpdateRename(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Old name", FleetID: "esp-01"})
	require.NoError(t, err)

	newName := "New name"
	updated, err := svc.Update(ctx, created.ID, &device.UpdateDeviceRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)
	assert.Equal(t, "esp-01", updated.FleetID)
}

func TestRemoveBlockedByActiveRollout(t *testing.T) {
	svc, devices, rollouts := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Sensor", FleetID: "esp-01"})
	require.NoError(t, err)

	require.NoError(t, rollouts.Create(ctx, &domainRollout.Record{
		DeviceID:      created.ID,
		FleetID:       "esp-01",
		FirmwareID:    uuid.New(),
		TargetVersion: "1.0.0",
		Status:        domainRollout.StatusInProgress,
	}))

	err = svc.Remove(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeHasActiveRollout, appErrors.CodeOf(err))

	// Still registered.
	_, err = devices.GetByID(ctx, created.ID)
	require.NoError(t, err)
}

func TestRemoveKeepsHistory(t *testing.T) {
	svc, _, rollouts := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Sensor", FleetID: "esp-01"})
	require.NoError(t, err)

	require.NoError(t, rollouts.Create(ctx, &domainRollout.Record{
		DeviceID:      created.ID,
		FleetID:       "esp-01",
		FirmwareID:    uuid.New(),
		TargetVersion: "1.0.0",
		Status:        domainRollout.StatusSuccess,
	}))

	require.NoError(t, svc.Remove(ctx, created.ID))

	records, total, err := rollouts.List(ctx, &domainRollout.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "esp-01", records[0].FleetID)
}

func TestListInsertionOrderAndPaging(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	for _, fleetID := range []string{"esp-01", "esp-02", "esp-03"} {
		_, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Sensor " + fleetID, FleetID: fleetID})
		require.NoError(t, err)
	}

	page1, err := svc.List(ctx, &device.DeviceFilterRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1.Devices, 2)
	assert.Equal(t, "esp-01", page1.Devices[0].FleetID)
	assert.Equal(t, "esp-02", page1.Devices[1].FleetID)
	assert.Equal(t, int64(3), page1.Total)
	assert.Equal(t, 2, page1.TotalPages)

	page2, err := svc.List(ctx, &device.DeviceFilterRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2.Devices, 1)
	assert.Equal(t, "esp-03", page2.Devices[0].FleetID)

	page3, err := svc.List(ctx, &device.DeviceFilterRequest{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page3.Devices)
}

func TestListSearchByNameOrFleetID(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Greenhouse sensor", FleetID: "esp-01"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Warehouse sensor", FleetID: "esp-02"})
	require.NoError(t, err)

	byName, err := svc.List(ctx, &device.DeviceFilterRequest{Search: "warehouse"})
	require.NoError(t, err)
	require.Len(t, byName.Devices, 1)
	assert.Equal(t, "esp-02", byName.Devices[0].FleetID)

	byFleetID, err := svc.List(ctx, &device.DeviceFilterRequest{Search: "esp-01"})
	require.NoError(t, err)
	require.Len(t, byFleetID.Devices, 1)
	assert.Equal(t, "Greenhouse sensor", byFleetID.Devices[0].Name)
}

func TestHeartbeatBringsDeviceOnline(t *testing.T) {
	svc, devices, _ := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Sensor", FleetID: "esp-01"})
	require.NoError(t, err)

	require.NoError(t, svc.Heartbeat(ctx, "esp-01"))

	d, err := devices.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domainDevice.StatusOnline, d.Status)
	assert.NotNil(t, d.LastSeenAt)
}

func TestHeartbeatKeepsUpdatingStatus(t *testing.T) {
	svc, devices, _ := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &device.RegisterDeviceRequest{Name: "Sensor", FleetID: "esp-01"})
	require.NoError(t, err)
	require.NoError(t, devices.UpdateStatus(ctx, created.ID, domainDevice.StatusUpdating))

	require.NoError(t, svc.Heartbeat(ctx, "esp-01"))

	d, err := devices.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domainDevice.StatusUpdating, d.Status, "heartbeat must not end an update")
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	svc, _, _ := newService()

	err := svc.Heartbeat(context.Background(), "esp-99")
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeUnknownDevice, appErrors.CodeOf(err))
}
