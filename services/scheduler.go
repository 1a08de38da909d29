package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coopwatch/config"
	"coopwatch/models"

	"go.uber.org/zap"
)

// Emitter sends an ungated notification
type Emitter interface {
	Notify(ctx context.Context, kind models.AlertKind, subKey, message string)
}

type dailyJob struct {
	name         string
	hour, minute int
	run          func(ctx context.Context, day models.DayKey, now time.Time) error

	// serializes ledger check, run and mark
	mu sync.Mutex
}

// DailyScheduler runs each daily job once per facility calendar day, at or after
// its local trigger time
type DailyScheduler struct {
	clock Clock
	loc   *time.Location
	tick  time.Duration

	ledger      JobLedger
	facility    FacilityReader
	consumption ConsumptionReader
	gate        *CooldownGate
	emitter     Emitter
	logger      *zap.Logger

	jobs []*dailyJob
}

// NewDailyScheduler builds the midnight reset, health calendar and water summary jobs
func NewDailyScheduler(cfg *config.Config, clock Clock, ledger JobLedger, facility FacilityReader, consumption ConsumptionReader, gate *CooldownGate, emitter Emitter, logger *zap.Logger) (*DailyScheduler, error) {
	healthHour, healthMinute, err := config.ParseClock(cfg.HealthCalendarAt)
	if err != nil {
		return nil, fmt.Errorf("invalid health calendar time: %w", err)
	}
	summaryHour, summaryMinute, err := config.ParseClock(cfg.WaterSummaryAt)
	if err != nil {
		return nil, fmt.Errorf("invalid water summary time: %w", err)
	}

	s := &DailyScheduler{
		clock:       clock,
		loc:         cfg.Location,
		tick:        cfg.SchedulerTick,
		ledger:      ledger,
		facility:    facility,
		consumption: consumption,
		gate:        gate,
		emitter:     emitter,
		logger:      logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.tick <= 0 {
		s.tick = 30 * time.Second
	}

	s.jobs = []*dailyJob{
		{name: JobMidnightReset, hour: 0, minute: 0, run: s.midnightReset},
		{name: JobHealthCalendar, hour: healthHour, minute: healthMinute, run: s.healthCalendar},
		{name: JobWaterSummary, hour: summaryHour, minute: summaryMinute, run: s.waterSummary},
	}
	return s, nil
}

// Start runs due jobs immediately and then on every tick until ctx is cancelled
func (s *DailyScheduler) Start(ctx context.Context) {
	s.logger.Info("Daily scheduler started",
		zap.Duration("tick", s.tick),
		zap.String("timezone", s.loc.String()))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.RunDue(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Daily scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue runs every job whose trigger time has passed today and that has not
// completed today
func (s *DailyScheduler) RunDue(ctx context.Context) {
	now := s.clock.Now().In(s.loc)
	day := models.NewDayKey(now, s.loc)
	minuteOfDay := now.Hour()*60 + now.Minute()

	for _, job := range s.jobs {
		if minuteOfDay < job.hour*60+job.minute {
			continue
		}
		if _, err := s.execute(ctx, job, day, now); err != nil {
			s.logger.Error("Daily job failed, will retry",
				zap.String("job", job.name),
				zap.String("day", day.String()),
				zap.Error(err))
		}
	}
}

// RunJob runs the named job for today regardless of its trigger time. A job that
// already completed today is not repeated; ran reports whether it executed.
func (s *DailyScheduler) RunJob(ctx context.Context, name string) (ran bool, err error) {
	for _, job := range s.jobs {
		if job.name == name {
			now := s.clock.Now().In(s.loc)
			return s.execute(ctx, job, models.NewDayKey(now, s.loc), now)
		}
	}
	return false, fmt.Errorf("unknown job %q", name)
}

// JobNames lists the registered jobs in trigger order
func (s *DailyScheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.name)
	}
	return names
}

func (s *DailyScheduler) execute(ctx context.Context, job *dailyJob, day models.DayKey, now time.Time) (bool, error) {
	job.mu.Lock()
	defer job.mu.Unlock()

	last, err := s.ledger.LastRun(ctx, job.name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		dailyJobRunsTotal.WithLabelValues(job.name, "error").Inc()
		return false, fmt.Errorf("failed to read last run: %w", err)
	}
	if last == day {
		return false, nil
	}

	if err := job.run(ctx, day, now); err != nil {
		dailyJobRunsTotal.WithLabelValues(job.name, "error").Inc()
		return false, err
	}

	if err := s.ledger.MarkRun(ctx, job.name, day); err != nil {
		dailyJobRunsTotal.WithLabelValues(job.name, "error").Inc()
		return true, fmt.Errorf("failed to mark run: %w", err)
	}

	dailyJobRunsTotal.WithLabelValues(job.name, "ok").Inc()
	s.logger.Info("Daily job completed",
		zap.String("job", job.name),
		zap.String("day", day.String()))
	return true, nil
}
