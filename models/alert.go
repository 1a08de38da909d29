package models

import (
	"time"
)

// AlertKind identifies a class of condition the operator can be notified about
type AlertKind string

const (
	AlertHeat              AlertKind = "heat"
	AlertHumidityHigh      AlertKind = "humidity_high"
	AlertTankFull          AlertKind = "tank_full"
	AlertTankLow           AlertKind = "tank_low"
	AlertTankCritical      AlertKind = "tank_critical"
	AlertPumpLeftRunning   AlertKind = "pump_left_running"
	AlertFeedStockLow      AlertKind = "feed_stock_low"
	AlertDailyTask         AlertKind = "daily_task"
	AlertDailyWaterSummary AlertKind = "daily_water_summary"

	// Informational, never gated
	AlertDeviceOn  AlertKind = "device_on"
	AlertDeviceOff AlertKind = "device_off"
)

// CooldownKey indexes cooldown state per condition instance. SubKey is empty for
// facility-wide conditions and holds a tank, silo, device or sensor identifier otherwise.
type CooldownKey struct {
	Kind   AlertKind
	SubKey string
}

// NewCooldownKey builds a key for kind, optionally narrowed by subKey
func NewCooldownKey(kind AlertKind, subKey string) CooldownKey {
	return CooldownKey{Kind: kind, SubKey: subKey}
}

func (k CooldownKey) String() string {
	if k.SubKey == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "/" + k.SubKey
}

// DeliveryResult is the outcome of one channel send
type DeliveryResult struct {
	Channel   string
	Delivered bool
	Err       error
}

// AlertRecord is what gets persisted for every emitted notification
type AlertRecord struct {
	ID                string    `json:"id"`
	Kind              AlertKind `json:"kind"`
	SubKey            string    `json:"sub_key,omitempty"`
	Message           string    `json:"message"`
	ChannelsAttempted []string  `json:"channels_attempted"`
	ChannelsDelivered []string  `json:"channels_delivered"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewAlertRecord folds per-channel delivery results into a record
func NewAlertRecord(id string, kind AlertKind, subKey, message string, results []DeliveryResult, at time.Time) AlertRecord {
	rec := AlertRecord{
		ID:                id,
		Kind:              kind,
		SubKey:            subKey,
		Message:           message,
		ChannelsAttempted: make([]string, 0, len(results)),
		ChannelsDelivered: make([]string, 0, len(results)),
		Timestamp:         at,
	}
	for _, r := range results {
		rec.ChannelsAttempted = append(rec.ChannelsAttempted, r.Channel)
		if r.Delivered {
			rec.ChannelsDelivered = append(rec.ChannelsDelivered, r.Channel)
		}
	}
	return rec
}

// GetAlertEmoji returns the emoji shown in front of alert titles
func (k AlertKind) GetAlertEmoji() string {
	switch k {
	case AlertHeat:
		return "🔥"
	case AlertHumidityHigh:
		return "💧"
	case AlertTankFull:
		return "🟦"
	case AlertTankLow:
		return "🟡"
	case AlertTankCritical:
		return "🔴"
	case AlertPumpLeftRunning:
		return "⏱️"
	case AlertFeedStockLow:
		return "🌾"
	case AlertDailyTask:
		return "💉"
	case AlertDailyWaterSummary:
		return "📊"
	case AlertDeviceOn:
		return "🟢"
	case AlertDeviceOff:
		return "⚪"
	default:
		return "⚠️"
	}
}
