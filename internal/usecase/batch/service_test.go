package batch_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDevice "ota-fleet-manager/internal/domain/device"
	"ota-fleet-manager/internal/infrastructure/storage"
	"ota-fleet-manager/internal/testutil"
	"ota-fleet-manager/internal/usecase/batch"
	"ota-fleet-manager/internal/usecase/firmware"
	"ota-fleet-manager/internal/usecase/rollout"
	appErrors "ota-fleet-manager/pkg/errors"
)

type fixture struct {
	devices   *testutil.DeviceRepo
	firmwares *testutil.FirmwareRepo
	store     *storage.FileBinaryStore
	rolloutSv *rollout.Service
	firmwareS *firmware.Service
	service   *batch.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	devices := testutil.NewDeviceRepo()
	firmwares := testutil.NewFirmwareRepo(devices)
	rollouts := testutil.NewRolloutRepo()
	store := storage.NewMemBinaryStore()

	rolloutService := rollout.NewService(rollouts, devices, firmwares, nil)
	firmwareService := firmware.NewService(firmwares, devices, rollouts, store, rolloutService)

	return &fixture{
		devices:   devices,
		firmwares: firmwares,
		store:     store,
		rolloutSv: rolloutService,
		firmwareS: firmwareService,
		service:   batch.NewService(firmwareService),
	}
}

// seedFirmwares uploads n firmware versions for distinct devices and cancels
// the implicit rollouts so deletes are not blocked.
func (f *fixture) seedFirmwares(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	ctx := context.Background()

	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		fleetID := "esp-0" + string(rune('1'+i))
		d := &domainDevice.Device{FleetID: fleetID, Name: "Sensor " + fleetID, Status: domainDevice.StatusOnline}
		require.NoError(t, f.devices.Create(ctx, d))

		resp, err := f.firmwareS.Upload(ctx,
			&firmware.UploadRequest{FleetID: fleetID, Version: "1.0.0"},
			"image.bin", strings.NewReader("bytes"))
		require.NoError(t, err)
		_, err = f.rolloutSv.Cancel(ctx, resp.Rollout.ID)
		require.NoError(t, err)

		ids = append(ids, resp.Firmware.ID)
	}
	return ids
}

func TestBatchDeletePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seedFirmwares(t, 3)

	// One of the selection is already gone.
	require.NoError(t, f.firmwareS.Delete(ctx, ids[1]))

	result, err := f.service.Run(ctx, &batch.RunRequest{IDs: ids, Op: batch.OpDelete})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ids[1], result.Failed[0].ID)
	assert.Equal(t, appErrors.CodeNotFound, result.Failed[0].Code)
}

func TestBatchDeleteBlockedItemIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seedFirmwares(t, 2)

	// Re-arm an active rollout for the first firmware only.
	fw, err := f.firmwares.GetByID(ctx, ids[0])
	require.NoError(t, err)
	_, err = f.rolloutSv.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: fw.DeviceID, FirmwareID: fw.ID})
	require.NoError(t, err)

	result, err := f.service.Run(ctx, &batch.RunRequest{IDs: ids, Op: batch.OpDelete})
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ids[0], result.Failed[0].ID)
	assert.Equal(t, appErrors.CodeFirmwareInUse, result.Failed[0].Code)
}

func TestBatchDownloadMissingBinaryIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seedFirmwares(t, 2)

	fw, err := f.firmwares.GetByID(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(fw.BinaryRef))

	result, err := f.service.Run(ctx, &batch.RunRequest{IDs: ids, Op: batch.OpDownload})
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ids[0], result.Failed[0].ID)
	assert.Equal(t, appErrors.CodeDownloadFailed, result.Failed[0].Code)
}

func TestBatchDeduplicatesSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seedFirmwares(t, 1)
	doubled := []uuid.UUID{ids[0], ids[0], ids[0]}

	result, err := f.service.Run(ctx, &batch.RunRequest{IDs: doubled, Op: batch.OpDelete})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)
}

func TestBatchResultsAreDeterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seedFirmwares(t, 3)

	first, err := f.service.Run(ctx, &batch.RunRequest{IDs: ids, Op: batch.OpDownload})
	require.NoError(t, err)
	second, err := f.service.Run(ctx, &batch.RunRequest{IDs: ids, Op: batch.OpDownload})
	require.NoError(t, err)

	assert.Equal(t, first.Succeeded, second.Succeeded, "same selection must report the same order")
}

func TestBatchRejectsUnknownOp(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Run(context.Background(), &batch.RunRequest{IDs: []uuid.UUID{uuid.New()}, Op: "purge"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidationError, appErrors.CodeOf(err))
}
