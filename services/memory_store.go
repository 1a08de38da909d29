package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coopwatch/config"
	"coopwatch/models"
)

// MemoryStore implements every store interface in process memory. It backs
// local runs (seeded from a facility file) and tests.
type MemoryStore struct {
	loc *time.Location

	mu         sync.RWMutex
	lotStart   models.DayKey
	devices    map[string]models.Device
	thresholds map[models.AlertKind]models.ThresholdTable
	water      map[models.DayKey]float64
	alerts     []models.AlertRecord
	jobs       map[string]models.DayKey
}

func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryStore{
		loc:        loc,
		devices:    make(map[string]models.Device),
		thresholds: make(map[models.AlertKind]models.ThresholdTable),
		water:      make(map[models.DayKey]float64),
		jobs:       make(map[string]models.DayKey),
	}
}

// NewMemoryStoreFromFacility seeds a store from a parsed facility file
func NewMemoryStoreFromFacility(f *config.FacilityFile, loc *time.Location) (*MemoryStore, error) {
	ms := NewMemoryStore(loc)
	if f == nil {
		return ms, nil
	}

	if f.LotStart != "" {
		start, err := models.ParseDayKey(f.LotStart)
		if err != nil {
			return nil, err
		}
		ms.lotStart = start
	}
	for _, d := range f.Devices {
		ms.devices[d.ID] = d
	}
	for kind, table := range f.Thresholds {
		ms.thresholds[kind] = table
	}
	for raw, total := range f.Water {
		day, err := models.ParseDayKey(raw)
		if err != nil {
			return nil, err
		}
		ms.water[day] = total
	}
	return ms, nil
}

func (ms *MemoryStore) SetLotStart(day models.DayKey) {
	ms.mu.Lock()
	ms.lotStart = day
	ms.mu.Unlock()
}

func (ms *MemoryStore) CurrentAge(_ context.Context, now time.Time) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.lotStart.IsZero() {
		return 0, fmt.Errorf("lot start: %w", ErrNotFound)
	}
	return models.NewDayKey(now, ms.loc).DaysSince(ms.lotStart), nil
}

func (ms *MemoryStore) PutDevice(device models.Device) {
	ms.mu.Lock()
	ms.devices[device.ID] = device
	ms.mu.Unlock()
}

func (ms *MemoryStore) Device(_ context.Context, deviceID string) (models.Device, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	device, ok := ms.devices[deviceID]
	if !ok {
		return models.Device{}, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	return device, nil
}

// SetDeviceState records a toggle; unknown devices are added with their ID as name
func (ms *MemoryStore) SetDeviceState(_ context.Context, deviceID string, on bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	device, ok := ms.devices[deviceID]
	if !ok {
		device = models.Device{ID: deviceID, Name: deviceID}
	}
	device.On = on
	ms.devices[deviceID] = device
	return nil
}

func (ms *MemoryStore) SetThresholdTable(kind models.AlertKind, table models.ThresholdTable) {
	ms.mu.Lock()
	ms.thresholds[kind] = table
	ms.mu.Unlock()
}

func (ms *MemoryStore) ThresholdTable(_ context.Context, kind models.AlertKind) (models.ThresholdTable, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	table, ok := ms.thresholds[kind]
	if !ok {
		return nil, fmt.Errorf("thresholds for %s: %w", kind, ErrNotFound)
	}
	return append(models.ThresholdTable(nil), table...), nil
}

func (ms *MemoryStore) SetWaterTotal(day models.DayKey, total float64) {
	ms.mu.Lock()
	ms.water[day] = total
	ms.mu.Unlock()
}

func (ms *MemoryStore) WaterTotal(_ context.Context, day models.DayKey) (float64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	total, ok := ms.water[day]
	if !ok {
		return 0, fmt.Errorf("water total %s: %w", day, ErrNotFound)
	}
	return total, nil
}

func (ms *MemoryStore) WriteAlert(_ context.Context, record models.AlertRecord) error {
	ms.mu.Lock()
	ms.alerts = append(ms.alerts, record)
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) WriteAlerts(_ context.Context, records []models.AlertRecord) error {
	ms.mu.Lock()
	ms.alerts = append(ms.alerts, records...)
	ms.mu.Unlock()
	return nil
}

// Alerts returns a copy of the stored alert records in write order
func (ms *MemoryStore) Alerts() []models.AlertRecord {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return append([]models.AlertRecord(nil), ms.alerts...)
}

func (ms *MemoryStore) LastRun(_ context.Context, job string) (models.DayKey, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	day, ok := ms.jobs[job]
	if !ok {
		return models.DayKey{}, fmt.Errorf("last run of %s: %w", job, ErrNotFound)
	}
	return day, nil
}

func (ms *MemoryStore) MarkRun(_ context.Context, job string, day models.DayKey) error {
	ms.mu.Lock()
	ms.jobs[job] = day
	ms.mu.Unlock()
	return nil
}
