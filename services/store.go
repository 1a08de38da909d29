package services

import (
	"context"
	"errors"
	"time"

	"coopwatch/models"
)

// ErrNotFound is returned by stores when a facility record does not exist
var ErrNotFound = errors.New("not found")

// FacilityReader exposes the current facility state on demand
type FacilityReader interface {
	// CurrentAge returns the active lot age in days as of now
	CurrentAge(ctx context.Context, now time.Time) (int, error)
	Device(ctx context.Context, deviceID string) (models.Device, error)
	ThresholdTable(ctx context.Context, kind models.AlertKind) (models.ThresholdTable, error)
}

// ConsumptionReader returns aggregate water consumption per calendar day
type ConsumptionReader interface {
	WaterTotal(ctx context.Context, day models.DayKey) (float64, error)
}

// AlertRecordWriter persists emitted alerts. Implementations are best-effort.
type AlertRecordWriter interface {
	WriteAlert(ctx context.Context, record models.AlertRecord) error
}

// AlertBatchSink accepts several records at once
type AlertBatchSink interface {
	WriteAlerts(ctx context.Context, records []models.AlertRecord) error
}

// JobLedger remembers the last calendar day each daily job completed
type JobLedger interface {
	LastRun(ctx context.Context, job string) (models.DayKey, error)
	MarkRun(ctx context.Context, job string, day models.DayKey) error
}

// DeviceStateWriter is implemented by stores that track device state from toggle events
type DeviceStateWriter interface {
	SetDeviceState(ctx context.Context, deviceID string, on bool) error
}
