package services

import (
	"testing"
	"time"

	"coopwatch/models"

	"github.com/stretchr/testify/assert"
)

func TestActivationMessage_HourBuckets(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{4, ""},
		{5, "Morning cleaning"},
		{8, "Morning cleaning"},
		{9, ""},
		{12, ""},
		{15, "Late-afternoon"},
		{18, "Late-afternoon"},
		{19, ""},
		{0, ""},
	}

	for _, tt := range tests {
		msg := ActivationMessage("Nebulizer", tt.hour)
		assert.Contains(t, msg, "Nebulizer activated", "hour %d", tt.hour)
		if tt.want == "" {
			assert.NotContains(t, msg, "\n", "hour %d has no extra line", tt.hour)
		} else {
			assert.Contains(t, msg, tt.want, "hour %d", tt.hour)
		}
	}
}

func TestActivationMessage_EscapesName(t *testing.T) {
	msg := ActivationMessage("Pump <north>", 12)
	assert.Contains(t, msg, "Pump &lt;north&gt;")
}

func TestDeactivationMessage(t *testing.T) {
	assert.Contains(t, DeactivationMessage("Pump", 95*time.Second, true), "Task finished after 1 min 35 sec")
	assert.Contains(t, DeactivationMessage("Pump", 0, false), "✅ Task finished")
	assert.NotContains(t, DeactivationMessage("Pump", 0, false), "after")
}

func TestThresholdMessage(t *testing.T) {
	at := time.Date(2026, 5, 1, 14, 5, 0, 0, time.UTC)

	heat := ThresholdMessage(models.AlertHeat, "house-1", 33.26, 32, "early", 12, at)
	assert.Contains(t, heat, "HIGH TEMPERATURE")
	assert.Contains(t, heat, "33.3°C (limit 32.0°C)")
	assert.Contains(t, heat, "early, day 12")
	assert.Contains(t, heat, "2026-05-01 14:05:00")

	humidity := ThresholdMessage(models.AlertHumidityHigh, "", 80, 75, UnknownStage, -1, at)
	assert.Contains(t, humidity, "HIGH HUMIDITY")
	assert.Contains(t, humidity, "80.0% (limit 75.0%)")
	assert.NotContains(t, humidity, "day -1")
	assert.NotContains(t, humidity, "Sensor")
}

func TestTankMessage(t *testing.T) {
	at := time.Now()
	assert.Contains(t, TankMessage(models.AlertTankFull, "t1", 100, at), "TANK FULL")
	assert.Contains(t, TankMessage(models.AlertTankCritical, "t1", 8, at), "TANK CRITICAL")
	assert.Contains(t, TankMessage(models.AlertTankLow, "t1", 18, at), "18%")
}

func TestWaterDelta(t *testing.T) {
	assert.InDelta(t, 20.0, WaterDelta(120, 100), 0.0001)
	assert.InDelta(t, -25.0, WaterDelta(75, 100), 0.0001)
	assert.Zero(t, WaterDelta(50, 0))
}

func TestWaterSummaryMessage(t *testing.T) {
	day := models.DayKey{Year: 2026, Month: time.May, Day: 1}

	assert.Contains(t, WaterSummaryMessage(day, 120, 100), "+20.0%")
	assert.Contains(t, WaterSummaryMessage(day, 80, 100), "-20.0%")
	assert.Contains(t, WaterSummaryMessage(day, 80, 0), "+0.0%")
	assert.Contains(t, WaterSummaryMessage(day, 80, 0), "2026-05-01")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45 seconds"},
		{12 * time.Minute, "12 min 0 sec"},
		{2*time.Hour + 5*time.Minute, "2 hr 5 min"},
		{50 * time.Hour, "2 days 2 hr"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
