package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coopwatch/models"

	"go.uber.org/zap"
)

const (
	JobMidnightReset  = "midnight_reset"
	JobHealthCalendar = "health_calendar"
	JobWaterSummary   = "water_summary"
)

func (s *DailyScheduler) midnightReset(_ context.Context, day models.DayKey, _ time.Time) error {
	s.gate.ResetAll()
	s.logger.Info("Cooldown state reset", zap.String("day", day.String()))
	return nil
}

func (s *DailyScheduler) healthCalendar(ctx context.Context, day models.DayKey, now time.Time) error {
	age, err := s.facility.CurrentAge(ctx, now)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("No active lot, skipping today's flock task", zap.String("day", day.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve lot age: %w", err)
	}

	entry, ok := TaskForAge(models.TaskCalendar, age)
	if !ok {
		s.logger.Debug("No flock task scheduled", zap.Int("age", age))
		return nil
	}

	s.emitter.Notify(ctx, models.AlertDailyTask, day.String(), DailyTaskMessage(day, age, entry))
	return nil
}

func (s *DailyScheduler) waterSummary(ctx context.Context, day models.DayKey, _ time.Time) error {
	today, err := s.waterTotal(ctx, day)
	if err != nil {
		return err
	}
	yesterday, err := s.waterTotal(ctx, day.AddDays(-1))
	if err != nil {
		return err
	}

	s.logger.Info("Water summary",
		zap.String("day", day.String()),
		zap.Float64("today", today),
		zap.Float64("yesterday", yesterday),
		zap.Float64("delta_pct", WaterDelta(today, yesterday)))

	s.emitter.Notify(ctx, models.AlertDailyWaterSummary, day.String(), WaterSummaryMessage(day, today, yesterday))
	return nil
}

// waterTotal treats a day without readings as zero consumption
func (s *DailyScheduler) waterTotal(ctx context.Context, day models.DayKey) (float64, error) {
	total, err := s.consumption.WaterTotal(ctx, day)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read water total for %s: %w", day, err)
	}
	return total, nil
}

// TaskForAge returns the first calendar entry due at age. An entry stays due for
// its day and the day after.
func TaskForAge(calendar []models.TaskCalendarEntry, age int) (models.TaskCalendarEntry, bool) {
	if age < 0 {
		return models.TaskCalendarEntry{}, false
	}
	for _, entry := range calendar {
		if age >= entry.Day && age <= entry.Day+1 {
			return entry, true
		}
	}
	return models.TaskCalendarEntry{}, false
}
