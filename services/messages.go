package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"coopwatch/models"
)

const timeLayout = "2006-01-02 15:04:05"

// ActivationMessage returns the operator text for a device turning on at the given
// local hour
func ActivationMessage(deviceName string, hour int) string {
	name := html.EscapeString(deviceName)
	switch {
	case hour >= 5 && hour <= 8:
		return fmt.Sprintf("%s <b>%s activated</b>\n🧹 Morning cleaning cycle started. Check drinker lines and remove wet litter.",
			models.AlertDeviceOn.GetAlertEmoji(), name)
	case hour >= 15 && hour <= 18:
		return fmt.Sprintf("%s <b>%s activated</b>\n🌤️ Late-afternoon irrigation/cooling cycle started.",
			models.AlertDeviceOn.GetAlertEmoji(), name)
	default:
		return fmt.Sprintf("%s <b>%s activated</b>", models.AlertDeviceOn.GetAlertEmoji(), name)
	}
}

// DeactivationMessage reports a device turning off; elapsed is included when the
// activation time is known
func DeactivationMessage(deviceName string, elapsed time.Duration, known bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s deactivated</b>\n", models.AlertDeviceOff.GetAlertEmoji(), html.EscapeString(deviceName)))
	if known {
		sb.WriteString(fmt.Sprintf("✅ Task finished after %s", formatDuration(elapsed)))
	} else {
		sb.WriteString("✅ Task finished")
	}
	return sb.String()
}

// ThresholdMessage formats a heat or humidity breach
func ThresholdMessage(kind models.AlertKind, subKey string, value, limit float64, stage string, age int, at time.Time) string {
	var sb strings.Builder

	title, unit := "HIGH TEMPERATURE", "°C"
	if kind == models.AlertHumidityHigh {
		title, unit = "HIGH HUMIDITY", "%"
	}

	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", kind.GetAlertEmoji(), title))
	if subKey != "" {
		sb.WriteString(fmt.Sprintf("📍 <b>Sensor:</b> %s\n", html.EscapeString(subKey)))
	}
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n", at.Format(timeLayout)))
	sb.WriteString(fmt.Sprintf("📊 <b>Reading:</b> %.1f%s (limit %.1f%s)\n", value, unit, limit, unit))
	if age >= 0 {
		sb.WriteString(fmt.Sprintf("🐔 <b>Stage:</b> %s, day %d\n", stage, age))
	} else {
		sb.WriteString(fmt.Sprintf("🐔 <b>Stage:</b> %s\n", stage))
	}
	sb.WriteString("\n💡 Check ventilation, fans and nebulizers.")
	return sb.String()
}

// TankMessage formats one tank tier notification
func TankMessage(kind models.AlertKind, tankID string, percent float64, at time.Time) string {
	var title, advice string
	switch kind {
	case models.AlertTankFull:
		title, advice = "TANK FULL", "Stop the fill pump if it is still running."
	case models.AlertTankCritical:
		title, advice = "TANK CRITICAL", "Birds may run out of water. Refill immediately."
	default:
		title, advice = "TANK LOW", "Schedule a refill."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", kind.GetAlertEmoji(), title))
	sb.WriteString(fmt.Sprintf("🛢️ <b>Tank:</b> %s\n", html.EscapeString(tankID)))
	sb.WriteString(fmt.Sprintf("📊 <b>Level:</b> %.0f%%\n", percent))
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n\n", at.Format(timeLayout)))
	sb.WriteString("💡 " + advice)
	return sb.String()
}

// PumpLeftRunningMessage warns that a device has stayed on past the watchdog delay
func PumpLeftRunningMessage(deviceName string, elapsed time.Duration, at time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>PUMP LEFT RUNNING</b>\n\n", models.AlertPumpLeftRunning.GetAlertEmoji()))
	sb.WriteString(fmt.Sprintf("⚙️ <b>Device:</b> %s\n", html.EscapeString(deviceName)))
	sb.WriteString(fmt.Sprintf("⏱️ <b>Running for:</b> %d min\n", int(elapsed.Minutes())))
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n\n", at.Format(timeLayout)))
	sb.WriteString("🔴 <b>Status:</b> ATTENTION REQUIRED")
	return sb.String()
}

// FeedStockMessage warns that a silo dropped below the configured minimum
func FeedStockMessage(siloID string, kg, minKg float64, at time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>FEED STOCK LOW</b>\n\n", models.AlertFeedStockLow.GetAlertEmoji()))
	sb.WriteString(fmt.Sprintf("🏚️ <b>Silo:</b> %s\n", html.EscapeString(siloID)))
	sb.WriteString(fmt.Sprintf("📦 <b>Stock:</b> %.0f kg (minimum %.0f kg)\n", kg, minKg))
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n\n", at.Format(timeLayout)))
	sb.WriteString("💡 Order feed.")
	return sb.String()
}

// DailyTaskMessage announces the husbandry task due today
func DailyTaskMessage(day models.DayKey, age int, entry models.TaskCalendarEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>TODAY'S FLOCK TASK</b>\n\n", models.AlertDailyTask.GetAlertEmoji()))
	sb.WriteString(fmt.Sprintf("📅 <b>Date:</b> %s\n", day))
	sb.WriteString(fmt.Sprintf("🐔 <b>Lot age:</b> day %d (scheduled for day %d)\n\n", age, entry.Day))
	sb.WriteString("📋 " + html.EscapeString(entry.Task))
	return sb.String()
}

// WaterDelta is the percentage change from yesterday to today, 0 without a baseline
func WaterDelta(today, yesterday float64) float64 {
	if yesterday == 0 {
		return 0
	}
	return (today - yesterday) / yesterday * 100
}

// WaterSummaryMessage formats the evening consumption summary
func WaterSummaryMessage(day models.DayKey, today, yesterday float64) string {
	delta := WaterDelta(today, yesterday)
	trend := "➡️"
	switch {
	case delta > 0:
		trend = "📈"
	case delta < 0:
		trend = "📉"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>DAILY WATER SUMMARY</b>\n\n", models.AlertDailyWaterSummary.GetAlertEmoji()))
	sb.WriteString(fmt.Sprintf("📅 <b>Date:</b> %s\n", day))
	sb.WriteString(fmt.Sprintf("💧 <b>Today:</b> %.1f L\n", today))
	sb.WriteString(fmt.Sprintf("💧 <b>Yesterday:</b> %.1f L\n", yesterday))
	sb.WriteString(fmt.Sprintf("%s <b>Change:</b> %+.1f%%", trend, delta))
	return sb.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	} else if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%d min %d sec", minutes, seconds)
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%d days %d hr", days, hours)
}
