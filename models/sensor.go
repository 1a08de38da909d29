package models

import (
	"time"
)

// EventType tags the payload carried by a FacilityEvent
type EventType string

const (
	EventReading          EventType = "reading"
	EventTankLevel        EventType = "tank_level"
	EventDeviceToggle     EventType = "device_toggle"
	EventFeedStock        EventType = "feed_stock"
	EventStockReplenished EventType = "stock_replenished"
)

// FacilityEvent is the JSON envelope published by house controllers and sensors
type FacilityEvent struct {
	Type      EventType `json:"type"`
	Kind      AlertKind `json:"kind,omitempty"`
	SubKey    string    `json:"sub_key,omitempty"`
	Value     float64   `json:"value,omitempty"`
	TankID    string    `json:"tank_id,omitempty"`
	Percent   float64   `json:"percent,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	On        bool      `json:"on,omitempty"`
	SiloID    string    `json:"silo_id,omitempty"`
	Kg        float64   `json:"kg,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
