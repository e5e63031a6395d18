// Package testutil provides in-memory repository implementations for
// use case tests that do not need a running database.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainDevice "ota-fleet-manager/internal/domain/device"
	domainFirmware "ota-fleet-manager/internal/domain/firmware"
	domainRollout "ota-fleet-manager/internal/domain/rollout"
)

// DeviceRepo is an in-memory device.Repository.
type DeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*domainDevice.Device
	order   []uuid.UUID
}

func NewDeviceRepo() *DeviceRepo {
	return &DeviceRepo{devices: make(map[uuid.UUID]*domainDevice.Device)}
}

func (r *DeviceRepo) Create(_ context.Context, d *domainDevice.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.devices {
		if existing.FleetID == d.FleetID {
			return domainDevice.ErrDuplicateFleetID
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	cp := *d
	r.devices[d.ID] = &cp
	r.order = append(r.order, d.ID)
	return nil
}

func (r *DeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*domainDevice.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, domainDevice.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DeviceRepo) GetByFleetID(_ context.Context, fleetID string) (*domainDevice.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.FleetID == fleetID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domainDevice.ErrDeviceNotFound
}

func (r *DeviceRepo) Update(_ context.Context, d *domainDevice.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.devices[d.ID]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	for _, other := range r.devices {
		if other.ID != d.ID && other.FleetID == d.FleetID {
			return domainDevice.ErrDuplicateFleetID
		}
	}
	cp := *d
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	r.devices[d.ID] = &cp
	return nil
}

func (r *DeviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return domainDevice.ErrDeviceNotFound
	}
	delete(r.devices, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *DeviceRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domainDevice.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DeviceRepo) SetCurrentVersion(_ context.Context, id uuid.UUID, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	d.CurrentVersion = &version
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DeviceRepo) TouchLastSeen(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	now := time.Now()
	d.LastSeenAt = &now
	d.UpdatedAt = now
	return nil
}

func (r *DeviceRepo) List(_ context.Context, filter *domainDevice.Filter) ([]*domainDevice.Device, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*domainDevice.Device, 0, len(r.order))
	for _, id := range r.order {
		d := r.devices[id]
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(d.Name), s) &&
				!strings.Contains(strings.ToLower(d.FleetID), s) {
				continue
			}
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		cp := *d
		matched = append(matched, &cp)
	}

	total := int64(len(matched))
	return page(matched, filter.Page, filter.PageSize), total, nil
}

func (r *DeviceRepo) MarkStaleOffline(_ context.Context, silentFor time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, d := range r.devices {
		if d.Status != domainDevice.StatusOnline {
			continue
		}
		if d.LastSeenAt == nil || time.Since(*d.LastSeenAt) > silentFor {
			d.Status = domainDevice.StatusOffline
			n++
		}
	}
	return n, nil
}

// FirmwareRepo is an in-memory firmware.Repository. Device names in
// listings resolve through the linked DeviceRepo.
type FirmwareRepo struct {
	mu        sync.Mutex
	firmwares map[uuid.UUID]*domainFirmware.Firmware
	devices   *DeviceRepo
}

func NewFirmwareRepo(devices *DeviceRepo) *FirmwareRepo {
	return &FirmwareRepo{
		firmwares: make(map[uuid.UUID]*domainFirmware.Firmware),
		devices:   devices,
	}
}

func (r *FirmwareRepo) Create(_ context.Context, fw *domainFirmware.Firmware) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.firmwares {
		if existing.DeviceID == fw.DeviceID && existing.Version == fw.Version {
			return domainFirmware.ErrDuplicateVersion
		}
	}
	if fw.ID == uuid.Nil {
		fw.ID = uuid.New()
	}
	if fw.UploadedAt.IsZero() {
		fw.UploadedAt = time.Now()
	}
	cp := *fw
	r.firmwares[fw.ID] = &cp
	return nil
}

func (r *FirmwareRepo) GetByID(_ context.Context, id uuid.UUID) (*domainFirmware.Firmware, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fw, ok := r.firmwares[id]
	if !ok {
		return nil, domainFirmware.ErrFirmwareNotFound
	}
	cp := *fw
	r.resolveDevice(&cp)
	return &cp, nil
}

func (r *FirmwareRepo) ExistsVersion(_ context.Context, deviceID uuid.UUID, version string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fw := range r.firmwares {
		if fw.DeviceID == deviceID && fw.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (r *FirmwareRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.firmwares[id]; !ok {
		return domainFirmware.ErrFirmwareNotFound
	}
	delete(r.firmwares, id)
	return nil
}

func (r *FirmwareRepo) ListForDevice(_ context.Context, deviceID uuid.UUID) ([]*domainFirmware.Firmware, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domainFirmware.Firmware, 0)
	for _, fw := range r.firmwares {
		if fw.DeviceID != deviceID {
			continue
		}
		cp := *fw
		r.resolveDevice(&cp)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *FirmwareRepo) List(_ context.Context, filter *domainFirmware.Filter) ([]*domainFirmware.Firmware, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*domainFirmware.Firmware, 0, len(r.firmwares))
	for _, fw := range r.firmwares {
		cp := *fw
		r.resolveDevice(&cp)

		if filter.DeviceID != nil && cp.DeviceID != *filter.DeviceID {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			date := fmt.Sprintf("%02d/%02d/%04d", cp.UploadedAt.Month(), cp.UploadedAt.Day(), cp.UploadedAt.Year())
			if !strings.Contains(strings.ToLower(cp.Version), s) &&
				!strings.Contains(strings.ToLower(cp.DeviceName), s) &&
				!strings.Contains(date, filter.Search) {
				continue
			}
		}
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UploadedAt.After(matched[j].UploadedAt) })

	total := int64(len(matched))
	return page(matched, filter.Page, filter.PageSize), total, nil
}

func (r *FirmwareRepo) resolveDevice(fw *domainFirmware.Firmware) {
	if r.devices == nil {
		return
	}
	if d, ok := r.devices.devices[fw.DeviceID]; ok {
		fw.DeviceName = d.Name
		fw.DeviceFleetID = d.FleetID
	}
}

// RolloutRepo is an in-memory rollout.Repository enforcing the single
// active record per device rule the way the partial unique index does.
type RolloutRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domainRollout.Record
}

func NewRolloutRepo() *RolloutRepo {
	return &RolloutRepo{records: make(map[uuid.UUID]*domainRollout.Record)}
}

func (r *RolloutRepo) Create(_ context.Context, rec *domainRollout.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.DeviceID == rec.DeviceID && existing.Status.Active() {
			return domainRollout.ErrRolloutAlreadyActive
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *RolloutRepo) GetByID(_ context.Context, id uuid.UUID) (*domainRollout.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, domainRollout.ErrRolloutNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *RolloutRepo) GetActiveForDevice(_ context.Context, deviceID uuid.UUID) (*domainRollout.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.DeviceID == deviceID && rec.Status.Active() {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domainRollout.ErrRolloutNotFound
}

func (r *RolloutRepo) Update(_ context.Context, rec *domainRollout.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; !ok {
		return domainRollout.ErrRolloutNotFound
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *RolloutRepo) HasActiveForDevice(_ context.Context, deviceID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.DeviceID == deviceID && rec.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *RolloutRepo) HasActiveForFirmware(_ context.Context, firmwareID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.FirmwareID == firmwareID && rec.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *RolloutRepo) List(_ context.Context, filter *domainRollout.Filter) ([]*domainRollout.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*domainRollout.Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter.DeviceID != nil && rec.DeviceID != *filter.DeviceID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	total := int64(len(matched))
	return page(matched, filter.Page, filter.PageSize), total, nil
}

func (r *RolloutRepo) CountByStatus(_ context.Context, deviceID *uuid.UUID) (map[domainRollout.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[domainRollout.Status]int64)
	for _, rec := range r.records {
		if deviceID != nil && rec.DeviceID != *deviceID {
			continue
		}
		counts[rec.Status]++
	}
	return counts, nil
}

func page[T any](items []T, pageNum, pageSize int) []T {
	if pageNum <= 0 {
		pageNum = 1
	}
	if pageSize <= 0 {
		return items
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
