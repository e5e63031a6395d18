package rollout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
	"ota-fleet-manager/internal/testutil"
	"ota-fleet-manager/internal/usecase/rollout"
	appErrors "ota-fleet-manager/pkg/errors"
)

type fixture struct {
	devices   *testutil.DeviceRepo
	firmwares *testutil.FirmwareRepo
	rollouts  *testutil.RolloutRepo
	service   *rollout.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	devices := testutil.NewDeviceRepo()
	firmwares := testutil.NewFirmwareRepo(devices)
	rollouts := testutil.NewRolloutRepo()

	return &fixture{
		devices:   devices,
		firmwares: firmwares,
		rollouts:  rollouts,
		service:   rollout.NewService(rollouts, devices, firmwares, nil),
	}
}

func (f *fixture) seedDevice(t *testing.T, fleetID string) *domainDevice.Device {
	t.Helper()

	d := &domainDevice.Device{FleetID: fleetID, Name: "Sensor " + fleetID, Status: domainDevice.StatusOnline}
	require.NoError(t, f.devices.Create(context.Background(), d))
	return d
}

func (f *fixture) seedFirmware(t *testing.T, deviceID uuid.UUID, version string) *domainFirmware.Firmware {
	t.Helper()

	fw := &domainFirmware.Firmware{
		DeviceID:         deviceID,
		Version:          version,
		BinaryRef:        uuid.New().String() + ".bin",
		OriginalFileName: "fw-" + version + ".bin",
		SizeBytes:        1024,
		Checksum:         "deadbeef",
	}
	require.NoError(t, f.firmwares.Create(context.Background(), fw))
	return fw
}

func TestScheduleCreatesScheduledRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	resp, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)

	assert.Equal(t, domainRollout.StatusScheduled, resp.Status)
	assert.Equal(t, "esp-01", resp.FleetID)
	assert.Equal(t, "1.2.0", resp.TargetVersion)
	assert.Nil(t, resp.PreviousVersion)
	assert.Equal(t, 0, resp.Progress)
}

func TestScheduleRejectsSecondActiveRollout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	first := f.seedFirmware(t, device.ID, "1.2.0")
	second := f.seedFirmware(t, device.ID, "1.3.0")

	_, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: first.ID})
	require.NoError(t, err)

	_, err = f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: second.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeRolloutAlreadyActive, appErrors.CodeOf(err))
}

func TestScheduleConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fwA := f.seedFirmware(t, device.ID, "1.2.0")
	fwB := f.seedFirmware(t, device.ID, "1.3.0")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, fwID := range []uuid.UUID{fwA.ID, fwB.ID} {
		wg.Add(1)
		go func(slot int, id uuid.UUID) {
			defer wg.Done()
			_, errs[slot] = f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: id})
		}(i, fwID)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, appErrors.CodeRolloutAlreadyActive, appErrors.CodeOf(err))
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of two concurrent schedules must lose")
}

func TestScheduleRejectsFirmwareForOtherDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.seedDevice(t, "esp-01")
	other := f.seedDevice(t, "esp-02")
	fw := f.seedFirmware(t, other.ID, "1.2.0")

	_, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: target.ID, FirmwareID: fw.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidationError, appErrors.CodeOf(err))
}

func TestScheduleUnknownDevice(t *testing.T) {
	f := newFixture(t)

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	_, err := f.service.Schedule(context.Background(), &rollout.ScheduleRequest{DeviceID: uuid.New(), FirmwareID: fw.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeUnknownDevice, appErrors.CodeOf(err))
}

func TestStartFlipsDeviceToUpdating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)

	started, err := f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, domainRollout.StatusInProgress, started.Status)

	updated, err := f.devices.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, domainDevice.StatusUpdating, updated.Status)
}

func TestStartTwiceIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)

	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	_, err = f.service.Start(ctx, scheduled.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
}

func TestAdvanceRejectsDecreasingProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	advanced, err := f.service.Advance(ctx, scheduled.ID, &rollout.AdvanceRequest{Progress: 60})
	require.NoError(t, err)
	assert.Equal(t, 60, advanced.Progress)

	_, err = f.service.Advance(ctx, scheduled.ID, &rollout.AdvanceRequest{Progress: 40})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeNonMonotonicProgress, appErrors.CodeOf(err))

	current, err := f.rollouts.GetByID(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, current.Progress, "rejected report must not change progress")
}

func TestAdvanceRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)

	_, err = f.service.Advance(ctx, scheduled.ID, &rollout.AdvanceRequest{Progress: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
}

func TestCompleteSuccessPromotesVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	done, err := f.service.Complete(ctx, scheduled.ID, &rollout.CompleteRequest{Success: true})
	require.NoError(t, err)
	assert.Equal(t, domainRollout.StatusSuccess, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)

	updated, err := f.devices.GetByID(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentVersion)
	assert.Equal(t, "1.2.0", *updated.CurrentVersion)
	assert.Equal(t, domainDevice.StatusOnline, updated.Status)
}

func TestCompleteFailureKeepsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	reason := "flash verification failed"
	done, err := f.service.Complete(ctx, scheduled.ID, &rollout.CompleteRequest{Success: false, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, domainRollout.StatusFailed, done.Status)
	require.NotNil(t, done.FailureReason)
	assert.Equal(t, reason, *done.FailureReason)

	updated, err := f.devices.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.CurrentVersion, "failed rollout must not promote the version")
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, scheduled.ID, &rollout.CompleteRequest{Success: true})
	require.NoError(t, err)

	_, err = f.service.Start(ctx, scheduled.ID)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))

	_, err = f.service.Advance(ctx, scheduled.ID, &rollout.AdvanceRequest{Progress: 100})
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))

	_, err = f.service.Complete(ctx, scheduled.ID, &rollout.CompleteRequest{Success: false})
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))

	_, err = f.service.Cancel(ctx, scheduled.ID)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
}

func TestCancelScheduledOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, domainRollout.StatusFailed, cancelled.Status)
	require.NotNil(t, cancelled.FailureReason)
	assert.Equal(t, domainRollout.ReasonCancelled, *cancelled.FailureReason)

	// The slot is free again after cancellation.
	fw2 := f.seedFirmware(t, device.ID, "1.3.0")
	_, err = f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw2.ID})
	require.NoError(t, err)
}

func TestCancelInProgressRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, scheduled.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
}

func TestSecondRolloutRecordsPreviousVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw1 := f.seedFirmware(t, device.ID, "1.2.0")
	fw2 := f.seedFirmware(t, device.ID, "1.3.0")

	first, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw1.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, first.ID, &rollout.CompleteRequest{Success: true})
	require.NoError(t, err)

	second, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw2.ID})
	require.NoError(t, err)
	require.NotNil(t, second.PreviousVersion)
	assert.Equal(t, "1.2.0", *second.PreviousVersion)
	assert.Equal(t, "1.3.0", second.TargetVersion)
}

func TestSummaryCountsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw1 := f.seedFirmware(t, device.ID, "1.2.0")
	fw2 := f.seedFirmware(t, device.ID, "1.3.0")

	first, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw1.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, first.ID, &rollout.CompleteRequest{Success: true})
	require.NoError(t, err)

	_, err = f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw2.ID})
	require.NoError(t, err)

	summary, err := f.service.Summary(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Success)
	assert.Equal(t, int64(1), summary.Scheduled)
	assert.Equal(t, int64(0), summary.InProgress)
	assert.Equal(t, int64(0), summary.Failed)
}

func TestHistorySurvivesDeviceRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	device := f.seedDevice(t, "esp-01")
	fw := f.seedFirmware(t, device.ID, "1.2.0")

	scheduled, err := f.service.Schedule(ctx, &rollout.ScheduleRequest{DeviceID: device.ID, FirmwareID: fw.ID})
	require.NoError(t, err)
	_, err = f.service.Start(ctx, scheduled.ID)
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, scheduled.ID, &rollout.CompleteRequest{Success: true})
	require.NoError(t, err)

	require.NoError(t, f.devices.Delete(ctx, device.ID))

	listed, err := f.service.List(ctx, &rollout.RolloutFilterRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Rollouts, 1)
	assert.Equal(t, "esp-01", listed.Rollouts[0].FleetID)
	assert.Equal(t, "1.2.0", listed.Rollouts[0].TargetVersion)
}
